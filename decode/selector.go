package decode

import (
	"fmt"
	"log/slog"
	"runtime"
)

// opener creates a decoder for one backend. Split out so selection logic is
// testable without FFmpeg.
type opener func(codec Codec, backend Backend, caps Capabilities) (Decoder, error)

// Candidates returns the ordered backend list for a codec, preference and
// capability set. The list always ends with the software fallback; every
// entry before it may fail and be skipped.
func Candidates(codec Codec, pref Preference, caps Capabilities, goos string) []Backend {
	if pref == PreferSoftware {
		return []Backend{BackendSoftware}
	}

	var out []Backend
	add := func(b Backend) {
		for _, have := range out {
			if have == b {
				return
			}
		}
		out = append(out, b)
	}

	// An explicit preference goes first; Auto starts with the platform's
	// native zero-copy path.
	switch pref {
	case PreferVideoToolbox:
		add(BackendVideoToolbox)
	case PreferD3D11VA:
		add(BackendD3D11VA)
	case PreferCUVID:
		add(BackendCUVID)
	case PreferQSV:
		add(BackendQSV)
	case PreferVAAPI:
		add(BackendVAAPI)
	}

	switch goos {
	case "darwin":
		add(BackendVideoToolbox)
	case "windows":
		// FFmpeg's D3D11VA path opens fine on NVIDIA but frame-pool setup
		// fails mid-decode, too late to fall back. Go straight to CUVID.
		if caps.Vendor != VendorNVIDIA {
			add(BackendD3D11VA)
		}
	default:
		if caps.Vendor != VendorNVIDIA && caps.RenderNodeAvailable {
			add(BackendVAAPI)
		}
	}

	// Vendor-specific accelerators.
	if goos != "darwin" {
		switch caps.Vendor {
		case VendorNVIDIA:
			add(BackendCUVID)
		case VendorIntel:
			if caps.QSVAvailable && (codec != CodecHEVC || caps.IntelHEVCCapable) {
				add(BackendQSV)
			}
		case VendorAMD:
			if goos == "windows" {
				add(BackendAMF)
			}
		}
	}

	add(BackendSoftware)
	return out
}

// Select walks the candidate list and returns the first backend that opens a
// working decoder. Failures before the software fallback are logged and
// skipped; a software-fallback failure is fatal.
func Select(codec Codec, pref Preference, caps Capabilities, log *slog.Logger) (Decoder, Selection, error) {
	return selectWith(codec, pref, caps, log, openBackend)
}

func selectWith(codec Codec, pref Preference, caps Capabilities, log *slog.Logger, open opener) (Decoder, Selection, error) {
	if log == nil {
		log = slog.Default()
	}
	candidates := Candidates(codec, pref, caps, runtime.GOOS)
	log.Info("decoder backend candidates", "codec", codec, "order", backendNames(candidates))

	for _, b := range candidates {
		dec, err := open(codec, b, caps)
		if err != nil {
			if b == BackendSoftware {
				return nil, Selection{}, fmt.Errorf("software decoder for %s: %w", codec, err)
			}
			log.Warn("decoder backend unavailable, trying next", "backend", b, "error", err)
			continue
		}
		sel := Selection{Backend: b, HardwareAccelerated: b != BackendSoftware}
		log.Info("decoder backend selected",
			"backend", b,
			"hardware", sel.HardwareAccelerated,
		)
		return dec, sel, nil
	}
	// Unreachable: BackendSoftware is always the last candidate.
	return nil, Selection{}, fmt.Errorf("no decoder backend for %s", codec)
}

func backendNames(bs []Backend) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.String()
	}
	return out
}
