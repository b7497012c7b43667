// Package input polls local game controllers at high frequency and turns
// their state into gamepad events for the host, applying the stick deadzone
// and trigger normalization the host expects. It also runs the rumble
// schedule fed by decoded output events.
package input

// Button identifies a digital control in a driver-neutral layout.
type Button int

const (
	ButtonDPadUp Button = iota
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
	ButtonStart
	ButtonBack
	ButtonLeftThumb
	ButtonRightThumb
	ButtonLeftBumper
	ButtonRightBumper
	ButtonSouth // A
	ButtonEast  // B
	ButtonWest  // X
	ButtonNorth // Y
	ButtonLeftTrigger
	ButtonRightTrigger
)

// Axis identifies an analog control.
type Axis int

const (
	AxisLeftX Axis = iota
	AxisLeftY
	AxisRightX
	AxisRightY
	AxisLeftTrigger
	AxisRightTrigger
)

// Device is one connected controller as seen by a Backend. Implementations
// return current state; the poller decides when state has changed.
type Device interface {
	// ID is the controller index reported to the host (0-3).
	ID() uint8

	// Name is the human-readable device name, used for wheel detection.
	Name() string

	// Connected reports whether the device is still present.
	Connected() bool

	// Pressed reports whether a digital button is currently held.
	Pressed(b Button) bool

	// ButtonPressure returns analog pressure for a button in [0,1] when the
	// driver exposes it. ok is false when no pressure data exists.
	ButtonPressure(b Button) (v float32, ok bool)

	// AxisValue returns an axis position. Sticks are in [-1,1]; trigger axes
	// may be either [0,1] or [-1,1] depending on the driver. ok is false
	// when the axis is not mapped.
	AxisValue(a Axis) (v float32, ok bool)

	// SetRumble drives the two vibration motors. Zero on both motors stops.
	SetRumble(leftMotor, rightMotor uint8) error
}

// Backend enumerates controller hardware. The poller calls Refresh once per
// tick before reading device state.
type Backend interface {
	// Refresh drains pending driver events and updates device state.
	Refresh() error

	// Devices lists the currently connected controllers.
	Devices() []Device

	// Close releases driver resources.
	Close() error
}
