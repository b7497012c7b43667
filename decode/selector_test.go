package decode

import (
	"errors"
	"testing"
)

func TestCandidatesSoftwarePreference(t *testing.T) {
	t.Parallel()

	got := Candidates(CodecH264, PreferSoftware, Capabilities{Vendor: VendorNVIDIA}, "windows")
	if len(got) != 1 || got[0] != BackendSoftware {
		t.Errorf("software preference candidates = %v, want [software]", backendNames(got))
	}
}

func TestCandidatesSkipD3D11OnNvidia(t *testing.T) {
	t.Parallel()

	got := Candidates(CodecH264, PreferAuto, Capabilities{Vendor: VendorNVIDIA}, "windows")
	for _, b := range got {
		if b == BackendD3D11VA {
			t.Errorf("candidates %v include d3d11va on an NVIDIA GPU", backendNames(got))
		}
	}
	if got[0] != BackendCUVID {
		t.Errorf("first candidate = %s, want cuvid", got[0])
	}
}

func TestCandidatesD3D11FirstOnIntelWindows(t *testing.T) {
	t.Parallel()

	caps := Capabilities{Vendor: VendorIntel, QSVAvailable: true, IntelHEVCCapable: true}
	got := Candidates(CodecH264, PreferAuto, caps, "windows")
	if got[0] != BackendD3D11VA {
		t.Errorf("first candidate = %s, want d3d11va", got[0])
	}
	if got[len(got)-1] != BackendSoftware {
		t.Errorf("last candidate = %s, want software", got[len(got)-1])
	}
	found := false
	for _, b := range got {
		if b == BackendQSV {
			found = true
		}
	}
	if !found {
		t.Errorf("candidates %v missing qsv fallback", backendNames(got))
	}
}

func TestCandidatesIntelHEVCGate(t *testing.T) {
	t.Parallel()

	// Pre-Gen-8 Intel hardware cannot decode HEVC via QSV even with the
	// runtime present.
	caps := Capabilities{Vendor: VendorIntel, QSVAvailable: true, IntelHEVCCapable: false}
	got := Candidates(CodecHEVC, PreferAuto, caps, "linux")
	for _, b := range got {
		if b == BackendQSV {
			t.Errorf("candidates %v include qsv for HEVC on pre-Gen-8 Intel", backendNames(got))
		}
	}

	// H.264 is still allowed through.
	got = Candidates(CodecH264, PreferAuto, caps, "linux")
	found := false
	for _, b := range got {
		if b == BackendQSV {
			found = true
		}
	}
	if !found {
		t.Errorf("candidates %v missing qsv for H.264", backendNames(got))
	}
}

func TestCandidatesDarwin(t *testing.T) {
	t.Parallel()

	got := Candidates(CodecHEVC, PreferAuto, Capabilities{Vendor: VendorApple}, "darwin")
	if got[0] != BackendVideoToolbox {
		t.Errorf("first candidate = %s, want videotoolbox", got[0])
	}
	if got[len(got)-1] != BackendSoftware {
		t.Errorf("last candidate = %s, want software", got[len(got)-1])
	}
}

func TestCandidatesExplicitPreferenceFirst(t *testing.T) {
	t.Parallel()

	caps := Capabilities{Vendor: VendorIntel, QSVAvailable: true, IntelHEVCCapable: true, RenderNodeAvailable: true}
	got := Candidates(CodecH264, PreferQSV, caps, "linux")
	if got[0] != BackendQSV {
		t.Errorf("first candidate = %s, want explicitly preferred qsv", got[0])
	}
	// No duplicate when the vendor path would add it again.
	count := 0
	for _, b := range got {
		if b == BackendQSV {
			count++
		}
	}
	if count != 1 {
		t.Errorf("qsv appears %d times in %v", count, backendNames(got))
	}
}

func TestSelectFallsThroughFailures(t *testing.T) {
	t.Parallel()

	var tried []Backend
	open := func(codec Codec, b Backend, caps Capabilities) (Decoder, error) {
		tried = append(tried, b)
		if b != BackendSoftware {
			return nil, errors.New("device missing")
		}
		return &fakeDecoder{}, nil
	}

	caps := Capabilities{Vendor: VendorIntel, QSVAvailable: true, IntelHEVCCapable: true, RenderNodeAvailable: true}
	dec, sel, err := selectWith(CodecH264, PreferAuto, caps, nil, open)
	if err != nil {
		t.Fatalf("selectWith: %v", err)
	}
	defer dec.Close()

	if sel.Backend != BackendSoftware || sel.HardwareAccelerated {
		t.Errorf("selection = %+v, want software, not accelerated", sel)
	}
	if len(tried) < 2 {
		t.Errorf("tried %v, want hardware attempts before software", backendNames(tried))
	}
	if tried[len(tried)-1] != BackendSoftware {
		t.Errorf("last attempt = %s, want software", tried[len(tried)-1])
	}
}

func TestSelectSoftwareFailureIsFatal(t *testing.T) {
	t.Parallel()

	open := func(codec Codec, b Backend, caps Capabilities) (Decoder, error) {
		return nil, errors.New("boom")
	}
	_, _, err := selectWith(CodecH264, PreferSoftware, Capabilities{}, nil, open)
	if err == nil {
		t.Fatal("selectWith succeeded with every backend failing")
	}
}

func TestSoftwareThreads(t *testing.T) {
	t.Parallel()

	if n := softwareThreads(Capabilities{}); n != 4 {
		t.Errorf("desktop threads = %d, want 4", n)
	}
	if n := softwareThreads(Capabilities{LowMemoryBoard: true}); n != 2 {
		t.Errorf("low-memory threads = %d, want 2", n)
	}
	if n := softwareThreads(Capabilities{Vendor: VendorBroadcom}); n != 2 {
		t.Errorf("broadcom threads = %d, want 2", n)
	}
}
