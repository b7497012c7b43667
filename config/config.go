// Package config reads session settings from the environment once at
// startup. Every knob has a default that works for a 1080p60 H.264 session
// against a local service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zortos293/OpenNOW-sub000/decode"
)

// Config is the resolved session configuration.
type Config struct {
	// ServerURL is the session API base (https://host:port).
	ServerURL string

	// SignalingURL, when set, skips the session API and connects straight
	// to a signaling endpoint.
	SignalingURL string

	AppID  string
	Width  int
	Height int
	FPS    int

	Codec      decode.Codec
	Preference decode.Preference

	// MaxProtocolVersion caps the input protocol handshake.
	MaxProtocolVersion uint8

	STUNServers []string

	// SRTAddr enables the local SRT source when non-empty, bypassing
	// signaling and WebRTC.
	SRTAddr string

	UseHTTP3   bool
	DisplayHDR bool
	Debug      bool
}

// Load reads the configuration from OPENNOW_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		ServerURL:          envOr("OPENNOW_SERVER_URL", "https://127.0.0.1:4443"),
		SignalingURL:       os.Getenv("OPENNOW_SIGNALING_URL"),
		AppID:              envOr("OPENNOW_APP_ID", "desktop"),
		SRTAddr:            os.Getenv("OPENNOW_SRT_ADDR"),
		UseHTTP3:           os.Getenv("OPENNOW_HTTP3") != "",
		DisplayHDR:         os.Getenv("OPENNOW_HDR") != "",
		Debug:              os.Getenv("DEBUG") != "",
		MaxProtocolVersion: 3,
	}

	var err error
	if cfg.Width, err = envInt("OPENNOW_WIDTH", 1920); err != nil {
		return cfg, err
	}
	if cfg.Height, err = envInt("OPENNOW_HEIGHT", 1080); err != nil {
		return cfg, err
	}
	if cfg.FPS, err = envInt("OPENNOW_FPS", 60); err != nil {
		return cfg, err
	}
	if v, err := envInt("OPENNOW_PROTOCOL_VERSION", 3); err != nil {
		return cfg, err
	} else if v < 1 || v > 255 {
		return cfg, fmt.Errorf("OPENNOW_PROTOCOL_VERSION %d out of range", v)
	} else {
		cfg.MaxProtocolVersion = uint8(v)
	}

	if cfg.Codec, err = ParseCodec(envOr("OPENNOW_CODEC", "h264")); err != nil {
		return cfg, err
	}
	if cfg.Preference, err = ParsePreference(envOr("OPENNOW_DECODER", "auto")); err != nil {
		return cfg, err
	}

	if stun := os.Getenv("OPENNOW_STUN"); stun != "" {
		for _, s := range strings.Split(stun, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.STUNServers = append(cfg.STUNServers, s)
			}
		}
	}
	return cfg, nil
}

// ParseCodec maps a codec name to its identifier.
func ParseCodec(name string) (decode.Codec, error) {
	switch strings.ToLower(name) {
	case "h264", "avc":
		return decode.CodecH264, nil
	case "hevc", "h265":
		return decode.CodecHEVC, nil
	case "av1":
		return decode.CodecAV1, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

// ParsePreference maps a decoder preference name to its identifier.
func ParsePreference(name string) (decode.Preference, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return decode.PreferAuto, nil
	case "software", "cpu":
		return decode.PreferSoftware, nil
	case "videotoolbox":
		return decode.PreferVideoToolbox, nil
	case "d3d11va":
		return decode.PreferD3D11VA, nil
	case "cuvid", "nvdec":
		return decode.PreferCUVID, nil
	case "qsv":
		return decode.PreferQSV, nil
	case "vaapi":
		return decode.PreferVAAPI, nil
	default:
		return 0, fmt.Errorf("unknown decoder preference %q", name)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
