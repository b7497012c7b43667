// Package transport runs the WebRTC side of a stream: the peer connection,
// the RTP read loop that reassembles access units for the decoder, the RTCP
// keyframe feedback path, and the data channel carrying input and output
// events.
package transport

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"github.com/zortos293/OpenNOW-sub000/decode"
)

// AccessUnit is one complete coded picture reassembled from RTP payloads,
// ready for the decode engine.
type AccessUnit struct {
	Data        []byte
	TimestampUs uint64
}

// Depacketizer reassembles RTP packets into access units. Push returns a
// finished unit when the packet completes one, nil otherwise. Packets must
// arrive in sequence order; a gap discards the unit under assembly.
type Depacketizer interface {
	Push(pkt *rtp.Packet) (*AccessUnit, error)
}

// NewDepacketizer returns the reassembler for a codec.
func NewDepacketizer(codec decode.Codec) (Depacketizer, error) {
	switch codec {
	case decode.CodecH264:
		return &annexBDepacketizer{depay: &codecs.H264Packet{}}, nil
	case decode.CodecHEVC:
		return &annexBDepacketizer{depay: &hevcDepacketizer{}}, nil
	case decode.CodecAV1:
		return &av1Depacketizer{}, nil
	default:
		return nil, fmt.Errorf("no depacketizer for codec %s", codec)
	}
}

// ticksToMicros converts a 90 kHz RTP timestamp to microseconds.
func ticksToMicros(ts uint32) uint64 {
	return uint64(ts) * 1000 / 90
}

// annexBDepacketizer accumulates Annex B payload fragments until the marker
// bit closes the access unit. The H.264 depacketizer from pion emits start
// codes itself; the HEVC one below does the same.
type annexBDepacketizer struct {
	depay rtp.Depacketizer

	buf       []byte
	timestamp uint32
	haveSeq   bool
	lastSeq   uint16
	drop      bool
}

func (d *annexBDepacketizer) Push(pkt *rtp.Packet) (*AccessUnit, error) {
	if d.haveSeq && pkt.SequenceNumber != d.lastSeq+1 {
		// Missing packet: whatever is buffered can no longer form a valid
		// unit. Drop through the end of this timestamp.
		d.buf = d.buf[:0]
		d.drop = true
	}
	d.haveSeq = true
	d.lastSeq = pkt.SequenceNumber

	if len(d.buf) > 0 && pkt.Timestamp != d.timestamp {
		// New picture started without a marker on the previous one.
		au := d.finish()
		d.drop = false
		if err := d.append(pkt); err != nil {
			return au, err
		}
		return au, nil
	}

	if err := d.append(pkt); err != nil {
		return nil, err
	}
	if pkt.Marker {
		if d.drop {
			d.buf = d.buf[:0]
			d.drop = false
			return nil, nil
		}
		return d.finish(), nil
	}
	return nil, nil
}

func (d *annexBDepacketizer) append(pkt *rtp.Packet) error {
	d.timestamp = pkt.Timestamp
	if d.drop || len(pkt.Payload) == 0 {
		return nil
	}
	out, err := d.depay.Unmarshal(pkt.Payload)
	if err != nil {
		return fmt.Errorf("depacketize: %w", err)
	}
	d.buf = append(d.buf, out...)
	return nil
}

func (d *annexBDepacketizer) finish() *AccessUnit {
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
