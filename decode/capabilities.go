package decode

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// GPUVendor is the primary display adapter's vendor.
type GPUVendor int

const (
	VendorUnknown GPUVendor = iota
	VendorNVIDIA
	VendorIntel
	VendorAMD
	VendorApple
	VendorBroadcom // Raspberry Pi VideoCore
)

func (v GPUVendor) String() string {
	switch v {
	case VendorNVIDIA:
		return "nvidia"
	case VendorIntel:
		return "intel"
	case VendorAMD:
		return "amd"
	case VendorApple:
		return "apple"
	case VendorBroadcom:
		return "broadcom"
	default:
		return "unknown"
	}
}

// Capabilities are the process-wide hardware facts the selector needs.
// Computed once and passed into decoder construction so selection stays a
// pure function of its inputs.
type Capabilities struct {
	Vendor GPUVendor

	// QSVAvailable is true when the Intel media runtime is present.
	QSVAvailable bool

	// IntelHEVCCapable is false on pre-Gen-8 Intel hardware, which cannot
	// decode HEVC through QuickSync even with the runtime installed.
	IntelHEVCCapable bool

	// RenderNodeAvailable reports a usable DRM render node for VAAPI.
	RenderNodeAvailable bool

	// LowMemoryBoard is true on single-board computers where the software
	// fallback must run with fewer threads.
	LowMemoryBoard bool
}

var detectOnce = sync.OnceValue(func() Capabilities {
	caps := Capabilities{
		Vendor:              detectVendor(),
		RenderNodeAvailable: hasRenderNode(),
		LowMemoryBoard:      isLowMemoryBoard(),
	}
	caps.QSVAvailable = caps.Vendor == VendorIntel && hasQSVRuntime()
	caps.IntelHEVCCapable = caps.Vendor == VendorIntel && intelSupportsHEVC()
	slog.Info("gpu capabilities detected",
		"vendor", caps.Vendor,
		"qsv", caps.QSVAvailable,
		"intel_hevc", caps.IntelHEVCCapable,
		"render_node", caps.RenderNodeAvailable,
		"low_memory", caps.LowMemoryBoard,
	)
	return caps
})

// Detect returns the cached capability facts, probing on first call.
func Detect() Capabilities {
	return detectOnce()
}

// PCI vendor IDs as written by the kernel to sysfs.
const (
	pciVendorNVIDIA = "0x10de"
	pciVendorIntel  = "0x8086"
	pciVendorAMD    = "0x1002"
)

func detectVendor() GPUVendor {
	// Model-string check first so a Pi with a PCI slot is still Broadcom.
	if model, err := os.ReadFile("/proc/device-tree/model"); err == nil {
		m := strings.ToLower(string(bytes.TrimRight(model, "\x00")))
		if strings.Contains(m, "raspberry pi") {
			return VendorBroadcom
		}
	}

	cards, _ := filepath.Glob("/sys/class/drm/card*/device/vendor")
	best := VendorUnknown
	for _, card := range cards {
		raw, err := os.ReadFile(card)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(string(raw)) {
		case pciVendorNVIDIA:
			// Discrete NVIDIA outranks anything else present.
			return VendorNVIDIA
		case pciVendorAMD:
			best = VendorAMD
		case pciVendorIntel:
			if best == VendorUnknown {
				best = VendorIntel
			}
		}
	}
	return best
}

func hasRenderNode() bool {
	nodes, _ := filepath.Glob("/dev/dri/renderD*")
	return len(nodes) > 0
}

// hasQSVRuntime looks for the Intel media SDK / oneVPL dispatcher library.
func hasQSVRuntime() bool {
	for _, lib := range []string{
		"/usr/lib/x86_64-linux-gnu/libmfx.so.1",
		"/usr/lib/x86_64-linux-gnu/libvpl.so.2",
		"/usr/lib64/libmfx.so.1",
		"/usr/lib64/libvpl.so.2",
	} {
		if _, err := os.Stat(lib); err == nil {
			return true
		}
	}
	return false
}

// intelSupportsHEVC gates HEVC on GPU generation. Gen 7 (Ivy Bridge, HD
// 2000-4000) and older have no HEVC fixed-function hardware.
func intelSupportsHEVC() bool {
	names, _ := filepath.Glob("/sys/class/drm/card*/device/label")
	for _, p := range names {
		raw, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if intelGenerationBlocksHEVC(string(raw)) {
			return false
		}
	}
	return true
}

// intelGenerationBlocksHEVC recognizes pre-Gen-8 marketing names.
func intelGenerationBlocksHEVC(gpuName string) bool {
	n := strings.ToLower(gpuName)
	for _, old := range []string{
		"hd graphics 2000", "hd graphics 2500", "hd graphics 3000", "hd graphics 4000",
		"ivy bridge", "sandy bridge",
	} {
		if strings.Contains(n, old) {
			return true
		}
	}
	return false
}

func isLowMemoryBoard() bool {
	model, err := os.ReadFile("/proc/device-tree/model")
	if err != nil {
		return false
	}
	m := strings.ToLower(string(bytes.TrimRight(model, "\x00")))
	return strings.Contains(m, "raspberry pi") || strings.Contains(m, "rockchip") ||
		strings.Contains(m, "orange pi")
}
