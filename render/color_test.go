package render

import (
	"math"
	"testing"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// convert applies the full parameter set to one normalized YUV sample.
func convert(p ShaderParams, y, u, v float32) (r, g, b float32) {
	y -= p.YOffset
	u -= p.UVOffset
	v -= p.UVOffset
	r = p.Matrix[0]*y + p.Matrix[1]*u + p.Matrix[2]*v
	g = p.Matrix[3]*y + p.Matrix[4]*u + p.Matrix[5]*v
	b = p.Matrix[6]*y + p.Matrix[7]*u + p.Matrix[8]*v
	r2 := p.Gamut[0]*r + p.Gamut[1]*g + p.Gamut[2]*b
	g2 := p.Gamut[3]*r + p.Gamut[4]*g + p.Gamut[5]*b
	b2 := p.Gamut[6]*r + p.Gamut[7]*g + p.Gamut[8]*b
	return r2, g2, b2
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 0.005
}

func TestLimitedRangeBlackAndWhite(t *testing.T) {
	t.Parallel()

	f := &media.VideoFrame{Space: media.ColorSpaceBT709, Range: media.ColorRangeLimited}
	p := ParamsFor(f, false)

	// Video black: Y=16, neutral chroma.
	r, g, b := convert(p, 16.0/255.0, 128.0/255.0, 128.0/255.0)
	if !near(r, 0) || !near(g, 0) || !near(b, 0) {
		t.Errorf("limited black = (%f, %f, %f), want (0, 0, 0)", r, g, b)
	}

	// Video white: Y=235.
	r, g, b = convert(p, 235.0/255.0, 128.0/255.0, 128.0/255.0)
	if !near(r, 1) || !near(g, 1) || !near(b, 1) {
		t.Errorf("limited white = (%f, %f, %f), want (1, 1, 1)", r, g, b)
	}
}

func TestFullRangeIdentityLuma(t *testing.T) {
	t.Parallel()

	f := &media.VideoFrame{Space: media.ColorSpaceBT709, Range: media.ColorRangeFull}
	p := ParamsFor(f, false)

	if p.YOffset != 0 {
		t.Errorf("full-range YOffset = %f, want 0", p.YOffset)
	}
	r, g, b := convert(p, 1, 128.0/255.0, 128.0/255.0)
	if !near(r, 1) || !near(g, 1) || !near(b, 1) {
		t.Errorf("full white = (%f, %f, %f), want (1, 1, 1)", r, g, b)
	}
	r, g, b = convert(p, 0, 128.0/255.0, 128.0/255.0)
	if !near(r, 0) || !near(g, 0) || !near(b, 0) {
		t.Errorf("full black = (%f, %f, %f), want (0, 0, 0)", r, g, b)
	}
}

func TestMatrixCoefficientsPerSpace(t *testing.T) {
	t.Parallel()

	m709 := yuvMatrix(media.ColorSpaceBT709, media.ColorRangeFull)
	m601 := yuvMatrix(media.ColorSpaceBT601, media.ColorRangeFull)
	m2020 := yuvMatrix(media.ColorSpaceBT2020, media.ColorRangeFull)

	if !near(m709[2], 1.5748) || !near(m601[2], 1.4020) || !near(m2020[2], 1.4746) {
		t.Errorf("R/V coefficients = %f, %f, %f", m709[2], m601[2], m2020[2])
	}
	if m709 == m601 || m709 == m2020 {
		t.Error("color spaces share an identical matrix")
	}
}

func TestHDRFrameOnSDRDisplay(t *testing.T) {
	t.Parallel()

	f := &media.VideoFrame{
		Format:   media.PixelFormatP010,
		Space:    media.ColorSpaceBT2020,
		Range:    media.ColorRangeLimited,
		Transfer: media.TransferPQ,
	}
	p := ParamsFor(f, false)

	if !p.ToneMap {
		t.Error("PQ frame on SDR display not flagged for tone mapping")
	}
	if p.Gamut == identity {
		t.Error("BT.2020 frame on SDR display kept identity gamut")
	}
	if !p.TenBit {
		t.Error("P010 frame not flagged as ten-bit")
	}
	if p.Transfer != media.TransferPQ {
		t.Errorf("transfer = %v, want PQ", p.Transfer)
	}
}

func TestHDRFrameOnHDRDisplay(t *testing.T) {
	t.Parallel()

	f := &media.VideoFrame{
		Format:   media.PixelFormatP010,
		Space:    media.ColorSpaceBT2020,
		Range:    media.ColorRangeLimited,
		Transfer: media.TransferPQ,
	}
	p := ParamsFor(f, true)

	if p.ToneMap {
		t.Error("PQ frame on HDR display flagged for tone mapping")
	}
	if p.Gamut != identity {
		t.Error("BT.2020 frame on HDR display had gamut remapped")
	}
}

func TestSDRFrameNeverToneMapped(t *testing.T) {
	t.Parallel()

	f := &media.VideoFrame{Space: media.ColorSpaceBT709, Range: media.ColorRangeLimited}
	if p := ParamsFor(f, false); p.ToneMap || p.Gamut != identity {
		t.Errorf("SDR BT.709 frame got ToneMap=%v Gamut=%v", p.ToneMap, p.Gamut)
	}
}
