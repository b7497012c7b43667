package input

import (
	"math"
	"testing"
)

func TestRadialDeadzoneInsideZeroes(t *testing.T) {
	t.Parallel()

	tests := []struct{ x, y float32 }{
		{0, 0},
		{0.1, 0},
		{0, -0.1},
		{0.1, 0.1}, // magnitude ~0.141, under 0.15
		{-0.14, 0},
	}
	for _, tt := range tests {
		if x, y := RadialDeadzone(tt.x, tt.y); x != 0 || y != 0 {
			t.Errorf("RadialDeadzone(%v, %v) = (%v, %v), want (0, 0)", tt.x, tt.y, x, y)
		}
	}
}

func TestRadialDeadzonePreservesDirection(t *testing.T) {
	t.Parallel()

	tests := []struct{ x, y float32 }{
		{0.5, 0.5},
		{0.2, 0},
		{0, 0.9},
		{-0.7, 0.3},
		{0.6, -0.6},
	}
	for _, tt := range tests {
		x, y := RadialDeadzone(tt.x, tt.y)
		if x == 0 && y == 0 {
			t.Errorf("RadialDeadzone(%v, %v) zeroed input above threshold", tt.x, tt.y)
			continue
		}
		wantAngle := math.Atan2(float64(tt.y), float64(tt.x))
		gotAngle := math.Atan2(float64(y), float64(x))
		if math.Abs(wantAngle-gotAngle) > 1e-5 {
			t.Errorf("RadialDeadzone(%v, %v) changed angle %v -> %v", tt.x, tt.y, wantAngle, gotAngle)
		}
	}
}

func TestRadialDeadzoneRescalesFromBoundary(t *testing.T) {
	t.Parallel()

	// Just above the deadzone the output should be near zero, and full
	// deflection should stay full.
	x, _ := RadialDeadzone(0.16, 0)
	if x < 0 || x > 0.02 {
		t.Errorf("output just above deadzone = %v, want near 0", x)
	}
	x, _ = RadialDeadzone(1, 0)
	if math.Abs(float64(x)-1) > 1e-5 {
		t.Errorf("output at full deflection = %v, want 1", x)
	}
}

func TestRadialDeadzoneJointNotPerAxis(t *testing.T) {
	t.Parallel()

	// One axis under the per-axis threshold must survive when the joint
	// magnitude is above it.
	x, y := RadialDeadzone(0.14, 0.14)
	if x == 0 || y == 0 {
		t.Errorf("diagonal (0.14, 0.14) zeroed: got (%v, %v)", x, y)
	}
}

func TestIsRacingWheel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"Logitech G29 Driving Force Racing Wheel", true},
		{"Thrustmaster T300RS", true},
		{"FANATEC CSL Elite", true},
		{"Logitech Steering Wheel", true},
		{"Logitech F310 Gamepad", false},
		{"Xbox Wireless Controller", false},
		{"Sony DualSense", false},
	}
	for _, tt := range tests {
		if got := IsRacingWheel(tt.name); got != tt.want {
			t.Errorf("IsRacingWheel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// fakeDevice implements Device with settable state.
type fakeDevice struct {
	id       uint8
	name     string
	pressed  map[Button]bool
	pressure map[Button]float32
	axes     map[Axis]float32

	rumbleLeft  uint8
	rumbleRight uint8
	rumbleCalls int
}

func newFakeDevice(id uint8, name string) *fakeDevice {
	return &fakeDevice{
		id:       id,
		name:     name,
		pressed:  make(map[Button]bool),
		pressure: make(map[Button]float32),
		axes:     make(map[Axis]float32),
	}
}

func (d *fakeDevice) ID() uint8            { return d.id }
func (d *fakeDevice) Name() string         { return d.name }
func (d *fakeDevice) Connected() bool      { return true }
func (d *fakeDevice) Pressed(b Button) bool { return d.pressed[b] }

func (d *fakeDevice) ButtonPressure(b Button) (float32, bool) {
	v, ok := d.pressure[b]
	return v, ok
}

func (d *fakeDevice) AxisValue(a Axis) (float32, bool) {
	v, ok := d.axes[a]
	return v, ok
}

func (d *fakeDevice) SetRumble(left, right uint8) error {
	d.rumbleLeft = left
	d.rumbleRight = right
	d.rumbleCalls++
	return nil
}

func TestTriggerPriorityChain(t *testing.T) {
	t.Parallel()

	// Button pressure wins over the axis. Half pressure rounds up to 128.
	d := newFakeDevice(0, "pad")
	d.pressure[ButtonLeftTrigger] = 0.5
	d.axes[AxisLeftTrigger] = 1.0
	st := ReadState(d)
	if st.LeftTrigger != 128 {
		t.Errorf("pressure-backed trigger = %d, want 128", st.LeftTrigger)
	}

	// Axis is used when no pressure data exists.
	d = newFakeDevice(0, "pad")
	d.axes[AxisRightTrigger] = 1.0
	st = ReadState(d)
	if st.RightTrigger != 255 {
		t.Errorf("axis-backed trigger = %d, want 255", st.RightTrigger)
	}

	// Signed [-1,1] trigger axes remap: -1 released, +1 fully pressed.
	d = newFakeDevice(0, "pad")
	d.axes[AxisRightTrigger] = -0.6 // (−0.6+1)/2 = 0.2
	st = ReadState(d)
	if st.RightTrigger != 51 {
		t.Errorf("signed axis trigger = %d, want 51", st.RightTrigger)
	}

	// Digital press is the last resort and reads full scale.
	d = newFakeDevice(0, "pad")
	d.pressed[ButtonLeftTrigger] = true
	st = ReadState(d)
	if st.LeftTrigger != 255 {
		t.Errorf("digital trigger = %d, want 255", st.LeftTrigger)
	}
}

func TestReadStateButtons(t *testing.T) {
	t.Parallel()

	d := newFakeDevice(0, "pad")
	d.pressed[ButtonSouth] = true
	d.pressed[ButtonDPadUp] = true
	d.pressed[ButtonRightBumper] = true

	st := ReadState(d)
	want := uint16(0x1000 | 0x0001 | 0x0200)
	if st.Buttons != want {
		t.Errorf("buttons = %#04x, want %#04x", st.Buttons, want)
	}
}

func TestReadStateStickDeadzoneApplied(t *testing.T) {
	t.Parallel()

	d := newFakeDevice(0, "pad")
	d.axes[AxisLeftX] = 0.1 // inside deadzone
	d.axes[AxisRightX] = 1.0

	st := ReadState(d)
	if st.LeftStickX != 0 {
		t.Errorf("left X inside deadzone = %d, want 0", st.LeftStickX)
	}
	if st.RightStickX != 32767 {
		t.Errorf("right X at full deflection = %d, want 32767", st.RightStickX)
	}
}
