package protocol

import "encoding/binary"

// Output event type tags (host to client).
const (
	TypeRumble        uint32 = 13
	TypeForceFeedback uint32 = 14
)

// Force-feedback effect types.
const (
	EffectConstant uint8 = 0
	EffectSpring   uint8 = 1
	EffectDamper   uint8 = 2
	EffectFriction uint8 = 3
)

// Rumble asks the client to vibrate a controller's motors. A zero magnitude
// on both motors is the stop command; duration 65535 means indefinite.
type Rumble struct {
	ControllerID uint8
	LeftMotor    uint8
	RightMotor   uint8
	DurationMs   uint16
}

// ForceFeedback asks the client to apply a steering-wheel effect.
type ForceFeedback struct {
	WheelID    uint8
	EffectType uint8
	Magnitude  int16
	DurationMs uint16
	Param1     int16
	Param2     int16
}

// OutputEvent is a decoded host-to-client event: *Rumble or *ForceFeedback.
type OutputEvent interface {
	isOutputEvent()
}

func (*Rumble) isOutputEvent()        {}
func (*ForceFeedback) isOutputEvent() {}

// Decoder parses output events received on the data channel.
type Decoder struct {
	version uint8
}

// NewDecoder returns a decoder at protocol version 2.
func NewDecoder() *Decoder {
	return &Decoder{version: 2}
}

// SetProtocolVersion records the negotiated version so the decoder strips
// the single-event wrapper byte when present.
func (d *Decoder) SetProtocolVersion(v uint8) {
	d.version = v
}

// Decode parses one message. It returns nil for anything that is not a
// recognized output event, including short buffers and unknown type tags;
// the data channel also carries handshake traffic this decoder does not own.
func (d *Decoder) Decode(data []byte) OutputEvent {
	if len(data) == 0 {
		return nil
	}
	if d.version > 2 && data[0] == singleEventWrapper {
		data = data[1:]
	}
	if len(data) < 4 {
		return nil
	}
	typ := binary.LittleEndian.Uint32(data)
	payload := data[4:]

	switch typ {
	case TypeRumble:
		return decodeRumble(payload)
	case TypeForceFeedback:
		return decodeForceFeedback(payload)
	default:
		return nil
	}
}

// Payload: controller(u8), left(u8), right(u8), pad(u8), duration(u16 LE).
func decodeRumble(p []byte) OutputEvent {
	if len(p) < 6 {
		return nil
	}
	return &Rumble{
		ControllerID: p[0],
		LeftMotor:    p[1],
		RightMotor:   p[2],
		DurationMs:   binary.LittleEndian.Uint16(p[4:]),
	}
}

// Payload: wheel(u8), effect(u8), magnitude(i16 LE), duration(u16 LE),
// param1(i16 LE), param2(i16 LE).
func decodeForceFeedback(p []byte) OutputEvent {
	if len(p) < 10 {
		return nil
	}
	return &ForceFeedback{
		WheelID:    p[0],
		EffectType: p[1],
		Magnitude:  int16(binary.LittleEndian.Uint16(p[2:])),
		DurationMs: binary.LittleEndian.Uint16(p[4:]),
		Param1:     int16(binary.LittleEndian.Uint16(p[6:])),
		Param2:     int16(binary.LittleEndian.Uint16(p[8:])),
	}
}
