package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HEVC payload structures from RFC 7798.
const (
	hevcNALTypeAP  = 48
	hevcNALTypeFU  = 49
	hevcFUStartBit = 0x80
	hevcFUEndBit   = 0x40
)

var errShortHEVCPayload = errors.New("hevc payload too short")

var annexBStartCode = []byte{0, 0, 0, 1}

// hevcDepacketizer converts RFC 7798 payloads to Annex B byte stream. It
// implements the pion rtp.Depacketizer interface so the generic Annex B
// assembler can drive it the same way as the H.264 one.
type hevcDepacketizer struct {
	// fu holds the NAL under reconstruction across fragmentation units.
	fu []byte
}

func hevcNALType(b byte) byte { return (b >> 1) & 0x3F }

func (d *hevcDepacketizer) Unmarshal(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, errShortHEVCPayload
	}

	switch hevcNALType(payload[0]) {
	case hevcNALTypeAP:
		return d.unmarshalAggregation(payload[2:])
	case hevcNALTypeFU:
		return d.unmarshalFragment(payload)
	default:
		// Single NAL unit packet.
		out := make([]byte, 0, len(annexBStartCode)+len(payload))
		out = append(out, annexBStartCode...)
		return append(out, payload...), nil
	}
}

func (d *hevcDepacketizer) unmarshalAggregation(p []byte) ([]byte, error) {
	var out []byte
	for len(p) > 0 {
		if len(p) < 2 {
			return nil, errShortHEVCPayload
		}
		size := int(binary.BigEndian.Uint16(p))
		p = p[2:]
		if size == 0 || size > len(p) {
			return nil, fmt.Errorf("hevc aggregation unit size %d exceeds payload", size)
		}
		out = append(out, annexBStartCode...)
		out = append(out, p[:size]...)
		p = p[size:]
	}
	return out, nil
}

func (d *hevcDepacketizer) unmarshalFragment(payload []byte) ([]byte, error) {
	if len(payload) < 3 {
		return nil, errShortHEVCPayload
	}
	fuHeader := payload[2]
	frag := payload[3:]

	if fuHeader&hevcFUStartBit != 0 {
		// Rebuild the original NAL header from the FU type and the outer
		// header's layer/TID bits.
		nalType := fuHeader & 0x3F
		d.fu = d.fu[:0]
		d.fu = append(d.fu, (payload[0]&0x81)|(nalType<<1), payload[1])
	} else if len(d.fu) == 0 {
		// Mid-NAL fragment with no start seen: the start packet was lost.
		return nil, nil
	}
	d.fu = append(d.fu, frag...)

	if fuHeader&hevcFUEndBit == 0 {
		return nil, nil
	}
	out := make([]byte, 0, len(annexBStartCode)+len(d.fu))
	out = append(out, annexBStartCode...)
	out = append(out, d.fu...)
	d.fu = d.fu[:0]
	return out, nil
}

func (d *hevcDepacketizer) IsPartitionHead(payload []byte) bool {
	if len(payload) < 3 {
		return false
	}
	if hevcNALType(payload[0]) == hevcNALTypeFU {
		return payload[2]&hevcFUStartBit != 0
	}
	return true
}

func (d *hevcDepacketizer) IsPartitionTail(marker bool, payload []byte) bool {
	return marker
}
