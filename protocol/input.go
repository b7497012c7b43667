// Package protocol implements the binary input/output event codec spoken over
// the session data channel. Input events (keyboard, mouse, gamepad) are
// encoded client-to-host; output events (rumble, force feedback) are decoded
// host-to-client. Layouts are fixed by the remote endpoint and must match it
// byte for byte.
package protocol

import (
	"encoding/binary"
	"time"
)

// Input event type tags (client to host).
const (
	TypeHeartbeat       uint32 = 2
	TypeKeyDown         uint32 = 3
	TypeKeyUp           uint32 = 4
	TypeMouseAbsolute   uint32 = 5
	TypeMouseRelative   uint32 = 7
	TypeMouseButtonDown uint32 = 8
	TypeMouseButtonUp   uint32 = 9
	TypeMouseWheel      uint32 = 10
	TypeGamepad         uint32 = 12
)

// Mouse button codes.
const (
	MouseButtonLeft   uint8 = 0
	MouseButtonRight  uint8 = 1
	MouseButtonMiddle uint8 = 2
)

// Gamepad button bitmask values (XInput layout).
const (
	ButtonDPadUp    uint16 = 0x0001
	ButtonDPadDown  uint16 = 0x0002
	ButtonDPadLeft  uint16 = 0x0004
	ButtonDPadRight uint16 = 0x0008
	ButtonStart     uint16 = 0x0010
	ButtonBack      uint16 = 0x0020
	ButtonLeftStick uint16 = 0x0040
	ButtonRightStick uint16 = 0x0080
	ButtonLB        uint16 = 0x0100
	ButtonRB        uint16 = 0x0200
	ButtonA         uint16 = 0x1000
	ButtonB         uint16 = 0x2000
	ButtonX         uint16 = 0x4000
	ButtonY         uint16 = 0x8000
)

// singleEventWrapper precedes each record when the negotiated protocol
// version is greater than 2. The host's batching framing changed at v3 and
// unwrapped single events are rejected there.
const singleEventWrapper = 0x22

// InputEvent is implemented by every client-to-host event value. appendTo
// serializes the fixed-layout record, without the version wrapper.
type InputEvent interface {
	appendTo(b []byte) []byte
}

// KeyDown reports a keyboard key press. Keycode is a Windows virtual-key
// code; multi-byte fields are big-endian on the wire.
type KeyDown struct {
	Keycode     uint16
	Scancode    uint16
	Modifiers   uint16
	TimestampUs uint64
}

func (e KeyDown) appendTo(b []byte) []byte {
	return appendKeyEvent(b, TypeKeyDown, e.Keycode, e.Modifiers, e.Scancode, e.TimestampUs)
}

// KeyUp reports a keyboard key release. Same layout as KeyDown.
type KeyUp struct {
	Keycode     uint16
	Scancode    uint16
	Modifiers   uint16
	TimestampUs uint64
}

func (e KeyUp) appendTo(b []byte) []byte {
	return appendKeyEvent(b, TypeKeyUp, e.Keycode, e.Modifiers, e.Scancode, e.TimestampUs)
}

// 18 bytes: type(u32 LE), keycode(u16 BE), modifiers(u16 BE),
// scancode(u16 BE), timestamp(u64 BE).
func appendKeyEvent(b []byte, typ uint32, keycode, modifiers, scancode uint16, ts uint64) []byte {
	b = binary.LittleEndian.AppendUint32(b, typ)
	b = binary.BigEndian.AppendUint16(b, keycode)
	b = binary.BigEndian.AppendUint16(b, modifiers)
	b = binary.BigEndian.AppendUint16(b, scancode)
	return binary.BigEndian.AppendUint64(b, ts)
}

// MouseMove reports relative mouse motion.
type MouseMove struct {
	DX          int16
	DY          int16
	TimestampUs uint64
}

// 22 bytes: type(u32 LE), dx(i16 BE), dy(i16 BE), 6 reserved bytes,
// timestamp(u64 BE).
func (e MouseMove) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, TypeMouseRelative)
	b = binary.BigEndian.AppendUint16(b, uint16(e.DX))
	b = binary.BigEndian.AppendUint16(b, uint16(e.DY))
	b = append(b, 0, 0, 0, 0, 0, 0)
	return binary.BigEndian.AppendUint64(b, e.TimestampUs)
}

// MouseButtonDown reports a mouse button press.
type MouseButtonDown struct {
	Button      uint8
	TimestampUs uint64
}

func (e MouseButtonDown) appendTo(b []byte) []byte {
	return appendMouseButton(b, TypeMouseButtonDown, e.Button, e.TimestampUs)
}

// MouseButtonUp reports a mouse button release.
type MouseButtonUp struct {
	Button      uint8
	TimestampUs uint64
}

func (e MouseButtonUp) appendTo(b []byte) []byte {
	return appendMouseButton(b, TypeMouseButtonUp, e.Button, e.TimestampUs)
}

// 18 bytes: type(u32 LE), button(u8), pad(u8), 4 reserved bytes,
// timestamp(u64 BE).
func appendMouseButton(b []byte, typ uint32, button uint8, ts uint64) []byte {
	b = binary.LittleEndian.AppendUint32(b, typ)
	b = append(b, button, 0, 0, 0, 0, 0)
	return binary.BigEndian.AppendUint64(b, ts)
}

// MouseWheel reports vertical scroll. Positive delta scrolls up.
type MouseWheel struct {
	Delta       int16
	TimestampUs uint64
}

// 22 bytes: type(u32 LE), horizontal=0(i16 BE), vertical(i16 BE),
// 6 reserved bytes, timestamp(u64 BE).
func (e MouseWheel) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, TypeMouseWheel)
	b = binary.BigEndian.AppendUint16(b, 0)
	b = binary.BigEndian.AppendUint16(b, uint16(e.Delta))
	b = append(b, 0, 0, 0, 0, 0, 0)
	return binary.BigEndian.AppendUint64(b, e.TimestampUs)
}

// Heartbeat is the keep-alive. 4 bytes, no timestamp.
type Heartbeat struct{}

func (Heartbeat) appendTo(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, TypeHeartbeat)
}

// Gamepad reports the complete current state of one controller, not a delta.
// Unlike keyboard and mouse events, every multi-byte field is little-endian.
type Gamepad struct {
	ControllerID uint8
	ButtonFlags  uint16
	LeftTrigger  uint8
	RightTrigger uint8
	LeftStickX   int16
	LeftStickY   int16
	RightStickX  int16
	RightStickY  int16
	Flags        uint16
	TimestampUs  uint64
}

// 38 bytes, all little-endian:
//
//	0x00 type=12(u32)  0x04 pad(u16)      0x06 index(u16)   0x08 flags(u16)
//	0x0A pad(u16)      0x0C buttons(u16)  0x0E triggers(u16; low=LT high=RT)
//	0x10 leftX(i16)    0x12 leftY(i16)    0x14 rightX(i16)  0x16 rightY(i16)
//	0x18..0x1D pad     0x1E timestamp(u64)
func (e Gamepad) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, TypeGamepad)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint16(b, uint16(e.ControllerID))
	b = binary.LittleEndian.AppendUint16(b, e.Flags)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint16(b, e.ButtonFlags)
	triggers := uint16(e.LeftTrigger) | uint16(e.RightTrigger)<<8
	b = binary.LittleEndian.AppendUint16(b, triggers)
	b = binary.LittleEndian.AppendUint16(b, uint16(e.LeftStickX))
	b = binary.LittleEndian.AppendUint16(b, uint16(e.LeftStickY))
	b = binary.LittleEndian.AppendUint16(b, uint16(e.RightStickX))
	b = binary.LittleEndian.AppendUint16(b, uint16(e.RightStickY))
	b = append(b, 0, 0, 0, 0, 0, 0)
	return binary.LittleEndian.AppendUint64(b, e.TimestampUs)
}

// Encoder serializes input events, carrying the negotiated protocol version
// and a microsecond clock anchored at encoder creation. Timestamps are
// assigned by the caller at capture time via TimestampUs so queuing delay
// stays measurable by the host.
type Encoder struct {
	start   time.Time
	version uint8
}

// NewEncoder returns an encoder at protocol version 2, the pre-handshake
// default.
func NewEncoder() *Encoder {
	return &Encoder{start: time.Now(), version: 2}
}

// SetProtocolVersion records the version negotiated by the data-channel
// handshake. Versions above 2 enable the single-event wrapper byte.
func (enc *Encoder) SetProtocolVersion(v uint8) {
	enc.version = v
}

// ProtocolVersion returns the current protocol version.
func (enc *Encoder) ProtocolVersion() uint8 {
	return enc.version
}

// TimestampUs returns microseconds elapsed since encoder creation. Events
// should capture this at the moment of hardware observation.
func (enc *Encoder) TimestampUs() uint64 {
	return uint64(time.Since(enc.start).Microseconds())
}

// Encode serializes an event to its wire record, prefixed with the
// single-event wrapper byte when the protocol version requires it. The
// wrapper applies to all events, Heartbeat included.
func (enc *Encoder) Encode(ev InputEvent) []byte {
	b := make([]byte, 0, 40)
	if enc.version > 2 {
		b = append(b, singleEventWrapper)
	}
	return ev.appendTo(b)
}

// EncodeHandshakeResponse builds the 4-byte handshake reply sent before
// protocol-version selection.
func EncodeHandshakeResponse(major, minor, flags uint8) []byte {
	return []byte{0x0e, major, minor, flags}
}
