package config

import (
	"testing"

	"github.com/zortos293/OpenNOW-sub000/decode"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Width != 1920 || cfg.Height != 1080 || cfg.FPS != 60 {
		t.Errorf("defaults = %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS)
	}
	if cfg.Codec != decode.CodecH264 || cfg.Preference != decode.PreferAuto {
		t.Errorf("codec = %v, preference = %v", cfg.Codec, cfg.Preference)
	}
	if cfg.MaxProtocolVersion != 3 {
		t.Errorf("protocol version = %d, want 3", cfg.MaxProtocolVersion)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENNOW_CODEC", "hevc")
	t.Setenv("OPENNOW_DECODER", "vaapi")
	t.Setenv("OPENNOW_WIDTH", "2560")
	t.Setenv("OPENNOW_STUN", "stun:a:3478, stun:b:3478")
	t.Setenv("OPENNOW_PROTOCOL_VERSION", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Codec != decode.CodecHEVC || cfg.Preference != decode.PreferVAAPI {
		t.Errorf("codec = %v, preference = %v", cfg.Codec, cfg.Preference)
	}
	if cfg.Width != 2560 {
		t.Errorf("width = %d", cfg.Width)
	}
	if len(cfg.STUNServers) != 2 || cfg.STUNServers[1] != "stun:b:3478" {
		t.Errorf("stun servers = %v", cfg.STUNServers)
	}
	if cfg.MaxProtocolVersion != 2 {
		t.Errorf("protocol version = %d", cfg.MaxProtocolVersion)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("OPENNOW_WIDTH", "wide")
	if _, err := Load(); err == nil {
		t.Error("Load accepted a non-numeric width")
	}
}

func TestParseCodec(t *testing.T) {
	t.Parallel()

	if c, err := ParseCodec("H265"); err != nil || c != decode.CodecHEVC {
		t.Errorf("ParseCodec(H265) = %v, %v", c, err)
	}
	if _, err := ParseCodec("vp9"); err == nil {
		t.Error("ParseCodec accepted vp9")
	}
}
