// Package render consumes decoded frames from the frame slot, imports
// zero-copy GPU surfaces or uploads CPU planes, and derives the color
// conversion parameters the composite shader needs.
package render

import "github.com/zortos293/OpenNOW-sub000/media"

// ShaderParams is everything the YUV composite pass needs to convert one
// frame to display RGB. Three separate transforms compose: the YUV-to-RGB
// matrix for the signaled color space and range, a 3x3 gamut matrix when
// the stream's primaries exceed the display's, and the transfer-function
// remap for HDR content.
type ShaderParams struct {
	// Matrix is the row-major YUV-to-RGB matrix.
	Matrix [9]float32

	// YOffset and UVOffset are subtracted from the normalized samples
	// before the matrix is applied.
	YOffset  float32
	UVOffset float32

	// Gamut is the row-major RGB-to-RGB primaries conversion, identity when
	// no gamut mapping is needed.
	Gamut [9]float32

	// Transfer selects the EOTF the shader linearizes with.
	Transfer media.TransferFunction

	// ToneMap is set when HDR content must be compressed to an SDR display.
	ToneMap bool

	// TenBit is set for P010 input, where samples sit in the top 10 bits of
	// 16-bit words.
	TenBit bool
}

var identity = [9]float32{
	1, 0, 0,
	0, 1, 0,
	0, 0, 1,
}

// bt2020ToBT709 converts BT.2020 primaries to BT.709 for SDR displays.
var bt2020ToBT709 = [9]float32{
	1.6605, -0.5876, -0.0728,
	-0.1246, 1.1329, -0.0083,
	-0.0182, -0.1006, 1.1187,
}

// yuvMatrix returns the row-major conversion matrix for a color space and
// quantization range.
func yuvMatrix(space media.ColorSpace, rng media.ColorRange) [9]float32 {
	// Chroma coefficients per space; luma scale depends only on range.
	var rv, gu, gv, bu float32
	switch space {
	case media.ColorSpaceBT601:
		rv, gu, gv, bu = 1.4020, -0.3441, -0.7141, 1.7720
	case media.ColorSpaceBT2020:
		rv, gu, gv, bu = 1.4746, -0.1646, -0.5714, 1.8814
	default: // BT.709
		rv, gu, gv, bu = 1.5748, -0.1873, -0.4681, 1.8556
	}

	y := float32(1.0)
	if rng == media.ColorRangeLimited {
		// Expand 16-235 luma and 16-240 chroma to full scale.
		y = 255.0 / 219.0
		c := float32(255.0 / 224.0)
		rv *= c
		gu *= c
		gv *= c
		bu *= c
	}
	return [9]float32{
		y, 0, rv,
		y, gu, gv,
		y, bu, 0,
	}
}

// ParamsFor derives the shader parameters for a frame on a display with the
// given capabilities.
func ParamsFor(f *media.VideoFrame, displayHDR bool) ShaderParams {
	p := ShaderParams{
		Matrix:   yuvMatrix(f.Space, f.Range),
		UVOffset: 128.0 / 255.0,
		Gamut:    identity,
		Transfer: f.Transfer,
		TenBit:   f.Format == media.PixelFormatP010,
	}
	if f.Range == media.ColorRangeLimited {
		p.YOffset = 16.0 / 255.0
	}
	if f.Space == media.ColorSpaceBT2020 && !displayHDR {
		p.Gamut = bt2020ToBT709
	}
	if f.IsHDR() && !displayHDR {
		p.ToneMap = true
	}
	return p
}
