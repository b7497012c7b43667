package input

import (
	"math"

	"github.com/zortos293/OpenNOW-sub000/protocol"
)

// StickDeadzone is the radial deadzone threshold as a fraction of full
// deflection.
const StickDeadzone = 0.15

// ControllerState is the complete normalized state of one controller at a
// poll instant.
type ControllerState struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	LeftStickX   int16
	LeftStickY   int16
	RightStickX  int16
	RightStickY  int16
}

// RadialDeadzone zeroes a stick whose joint magnitude is under the deadzone
// and rescales the remainder so output spans the full range starting at the
// deadzone boundary. The two axes are normalized together: per-axis
// deadzoning distorts diagonal movement.
func RadialDeadzone(x, y float32) (float32, float32) {
	mag := float32(math.Hypot(float64(x), float64(y)))
	if mag < StickDeadzone {
		return 0, 0
	}
	scale := (mag - StickDeadzone) / (1 - StickDeadzone) / mag
	return x * scale, y * scale
}

// stickToWire scales a normalized stick value to the wire's i16 range.
func stickToWire(v float32) int16 {
	s := float64(v) * 32767.0
	if s < -32768 {
		s = -32768
	} else if s > 32767 {
		s = 32767
	}
	return int16(s)
}

// triggerValue reads an analog trigger, preferring button pressure, then the
// raw axis, then the digital pressed state. The chain covers drivers that
// expose any one of the three without per-model special cases.
func triggerValue(d Device, b Button, a Axis) uint8 {
	if v, ok := d.ButtonPressure(b); ok && v > 0.01 {
		return clampTrigger(v)
	}
	if v, ok := d.AxisValue(a); ok && absf(v) > 0.01 {
		// Some drivers report trigger axes as [-1,1] with -1 released.
		if v < -0.5 {
			v = (v + 1) / 2
		}
		if t := clampTrigger(v); t > 0 {
			return t
		}
	}
	if d.Pressed(b) {
		return 255
	}
	return 0
}

func clampTrigger(v float32) uint8 {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	// Round to nearest: truncation maps 0.2 to 50 instead of 51.
	return uint8(v*255 + 0.5)
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// buttonBits maps driver-neutral buttons to the XInput wire bitmask.
var buttonBits = []struct {
	button Button
	bit    uint16
}{
	{ButtonDPadUp, protocol.ButtonDPadUp},
	{ButtonDPadDown, protocol.ButtonDPadDown},
	{ButtonDPadLeft, protocol.ButtonDPadLeft},
	{ButtonDPadRight, protocol.ButtonDPadRight},
	{ButtonStart, protocol.ButtonStart},
	{ButtonBack, protocol.ButtonBack},
	{ButtonLeftThumb, protocol.ButtonLeftStick},
	{ButtonRightThumb, protocol.ButtonRightStick},
	{ButtonLeftBumper, protocol.ButtonLB},
	{ButtonRightBumper, protocol.ButtonRB},
	{ButtonSouth, protocol.ButtonA},
	{ButtonEast, protocol.ButtonB},
	{ButtonWest, protocol.ButtonX},
	{ButtonNorth, protocol.ButtonY},
}

// ReadState snapshots a device's complete normalized state.
func ReadState(d Device) ControllerState {
	var st ControllerState
	for _, m := range buttonBits {
		if d.Pressed(m.button) {
			st.Buttons |= m.bit
		}
	}

	st.LeftTrigger = triggerValue(d, ButtonLeftTrigger, AxisLeftTrigger)
	st.RightTrigger = triggerValue(d, ButtonRightTrigger, AxisRightTrigger)

	lx, _ := d.AxisValue(AxisLeftX)
	ly, _ := d.AxisValue(AxisLeftY)
	rx, _ := d.AxisValue(AxisRightX)
	ry, _ := d.AxisValue(AxisRightY)

	lx, ly = RadialDeadzone(lx, ly)
	rx, ry = RadialDeadzone(rx, ry)

	st.LeftStickX = stickToWire(lx)
	st.LeftStickY = stickToWire(ly)
	st.RightStickX = stickToWire(rx)
	st.RightStickY = stickToWire(ry)
	return st
}
