package transport

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

const (
	obuHasExtensionBit = 0x04
	obuHasSizeBit      = 0x02
)

// av1Depacketizer reassembles the RTP AV1 payload format into a Section 5
// low-overhead bitstream. OBU elements arrive without size fields, so each
// completed OBU gets its header's size bit set and a LEB128 length inserted
// before it joins the temporal unit.
type av1Depacketizer struct {
	buf       []byte // finished OBUs of the temporal unit under assembly
	frag      []byte // OBU fragment continued from the previous packet
	timestamp uint32
	haveSeq   bool
	lastSeq   uint16
	drop      bool
}

func (d *av1Depacketizer) Push(pkt *rtp.Packet) (*AccessUnit, error) {
	if d.haveSeq && pkt.SequenceNumber != d.lastSeq+1 {
		d.buf = d.buf[:0]
		d.frag = d.frag[:0]
		d.drop = true
	}
	d.haveSeq = true
	d.lastSeq = pkt.SequenceNumber

	var flushed *AccessUnit
	if len(d.buf) > 0 && pkt.Timestamp != d.timestamp {
		flushed = d.finish()
		d.drop = false
	}
	d.timestamp = pkt.Timestamp

	if !d.drop && len(pkt.Payload) > 0 {
		var p codecs.AV1Packet
		if _, err := p.Unmarshal(pkt.Payload); err != nil {
			return flushed, fmt.Errorf("av1 depacketize: %w", err)
		}
		d.accumulate(&p)
	}

	if pkt.Marker {
		if d.drop {
			d.buf = d.buf[:0]
			d.frag = d.frag[:0]
			d.drop = false
			return flushed, nil
		}
		if au := d.finish(); au != nil {
			return au, nil
		}
	}
	return flushed, nil
}

func (d *av1Depacketizer) accumulate(p *codecs.AV1Packet) {
	for i, el := range p.OBUElements {
		first := i == 0
		last := i == len(p.OBUElements)-1

		if first && p.Z {
			if len(d.frag) == 0 {
				// Continuation of a fragment whose start was lost.
				continue
			}
			d.frag = append(d.frag, el...)
			if !(last && p.Y) {
				d.completeOBU(d.frag)
				d.frag = d.frag[:0]
			}
			continue
		}

		if last && p.Y {
			d.frag = append(d.frag[:0], el...)
			continue
		}
		d.completeOBU(el)
	}
}

// completeOBU appends one whole OBU to the temporal unit, inserting the size
// field the RTP format strips.
func (d *av1Depacketizer) completeOBU(obu []byte) {
	if len(obu) == 0 {
		return
	}
	header := obu[0]
	hdrLen := 1
	if header&obuHasExtensionBit != 0 {
		if len(obu) < 2 {
			return
		}
		hdrLen = 2
	}
	if header&obuHasSizeBit != 0 {
		d.buf = append(d.buf, obu...)
		return
	}
	payload := obu[hdrLen:]
	d.buf = append(d.buf, header|obuHasSizeBit)
	d.buf = append(d.buf, obu[1:hdrLen]...)
	d.buf = appendLEB128(d.buf, uint(len(payload)))
	d.buf = append(d.buf, payload...)
}

func (d *av1Depacketizer) finish() *AccessUnit {
	if len(d.buf) == 0 {
		return nil
	}
	au := &AccessUnit{
		Data:        append([]byte(nil), d.buf...),
		TimestampUs: ticksToMicros(d.timestamp),
	}
	d.buf = d.buf[:0]
	return au
}

func appendLEB128(b []byte, v uint) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}
