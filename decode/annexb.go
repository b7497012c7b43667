package decode

import "encoding/binary"

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// NormalizeAccessUnit puts an access unit into the framing the decoder
// expects: Annex B start-code prefixes for H.264/HEVC, pass-through for
// AV1's self-delimited OBU format. Length-prefixed (AVCC-style) units are
// rewritten; units already carrying start codes pass unchanged.
func NormalizeAccessUnit(codec Codec, au []byte) []byte {
	if codec == CodecAV1 || len(au) < 4 {
		return au
	}
	if hasStartCode(au) {
		return au
	}
	if converted, ok := lengthPrefixedToAnnexB(au); ok {
		return converted
	}
	// Raw NAL payload with no framing at all.
	out := make([]byte, 0, len(au)+4)
	out = append(out, startCode...)
	return append(out, au...)
}

func hasStartCode(b []byte) bool {
	if len(b) >= 3 && b[0] == 0 && b[1] == 0 && b[2] == 1 {
		return true
	}
	return len(b) >= 4 && b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == 1
}

// lengthPrefixedToAnnexB converts 4-byte length-prefixed NAL units. Returns
// ok=false when the lengths do not tile the buffer exactly, meaning the unit
// was not length-prefixed after all.
func lengthPrefixedToAnnexB(au []byte) ([]byte, bool) {
	// Validate before allocating.
	for off := 0; off != len(au); {
		if off+4 > len(au) {
			return nil, false
		}
		n := int(binary.BigEndian.Uint32(au[off:]))
		if n == 0 || off+4+n > len(au) {
			return nil, false
		}
		off += 4 + n
	}

	out := make([]byte, 0, len(au)+8)
	for off := 0; off != len(au); {
		n := int(binary.BigEndian.Uint32(au[off:]))
		out = append(out, startCode...)
		out = append(out, au[off+4:off+4+n]...)
		off += 4 + n
	}
	return out, true
}
