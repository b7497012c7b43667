//go:build linux

package input

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// evdev event types and codes.
const (
	evKey = 0x01
	evAbs = 0x03
	evFF  = 0x15

	btnSouth  = 0x130
	btnEast   = 0x131
	btnNorth  = 0x133
	btnWest   = 0x134
	btnTL     = 0x136
	btnTR     = 0x137
	btnTL2    = 0x138
	btnTR2    = 0x139
	btnSelect = 0x13a
	btnStart  = 0x13b
	btnThumbL = 0x13d
	btnThumbR = 0x13e

	absX     = 0x00
	absY     = 0x01
	absZ     = 0x02
	absRX    = 0x03
	absRY    = 0x04
	absRZ    = 0x05
	absHat0X = 0x10
	absHat0Y = 0x11

	ffRumble = 0x50
)

// ioctl request numbers for the event interface ('E' magic).
const (
	iocRead      = 2
	iocWrite     = 1
	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func evIoc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | 'E'<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

func eviocgname(length uintptr) uintptr { return evIoc(iocRead, 0x06, length) }
func eviocgbit(ev, length uintptr) uintptr {
	return evIoc(iocRead, 0x20+ev, length)
}
func eviocgabs(axis uintptr) uintptr {
	return evIoc(iocRead, 0x40+axis, unsafe.Sizeof(absInfo{}))
}
func eviocsff() uintptr { return evIoc(iocWrite, 0x80, unsafe.Sizeof(ffEffect{})) }

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ffEffect mirrors struct ff_effect for FF_RUMBLE (union collapsed to the
// rumble variant plus padding to the full union size).
type ffEffect struct {
	Type      uint16
	ID        int16
	Direction uint16
	// trigger: button, interval
	TriggerButton   uint16
	TriggerInterval uint16
	// replay: length, delay
	ReplayLength uint16
	ReplayDelay  uint16
	_            uint16 // alignment
	// rumble: strong_magnitude, weak_magnitude
	StrongMagnitude uint16
	WeakMagnitude   uint16
	_               [28]byte // pad union to sizeof(ff_effect)
}

// evdevDevice is one /dev/input/event* gamepad.
type evdevDevice struct {
	fd        int
	path      string
	id        uint8
	name      string
	connected bool

	keys map[uint16]bool
	abs  map[uint16]float32
	info map[uint16]absInfo

	ffID int16 // uploaded rumble effect slot, -1 when none
}

// EvdevBackend reads gamepads through the Linux event-device interface.
type EvdevBackend struct {
	log     *slog.Logger
	devices []*evdevDevice
	buf     [24 * 64]byte
}

// NewEvdevBackend opens every readable gamepad under /dev/input.
func NewEvdevBackend(log *slog.Logger) (*EvdevBackend, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &EvdevBackend{log: log.With("component", "evdev")}

	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("scanning input devices: %w", err)
	}
	var next uint8
	for _, path := range paths {
		d, err := openEvdev(path, next)
		if err != nil {
			continue
		}
		b.log.Info("gamepad detected", "name", d.name, "path", path, "id", d.id)
		b.devices = append(b.devices, d)
		next++
	}
	return b, nil
}

func openEvdev(path string, id uint8) (*evdevDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		// Rumble needs write access but read-only still polls.
		fd, err = unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
		if err != nil {
			return nil, err
		}
	}

	d := &evdevDevice{
		fd:        fd,
		path:      path,
		id:        id,
		connected: true,
		keys:      make(map[uint16]bool),
		abs:       make(map[uint16]float32),
		info:      make(map[uint16]absInfo),
		ffID:      -1,
	}

	var nameBuf [256]byte
	if err := ioctlPtr(fd, eviocgname(uintptr(len(nameBuf))), unsafe.Pointer(&nameBuf[0])); err != nil {
		unix.Close(fd)
		return nil, err
	}
	d.name = strings.TrimRight(string(nameBuf[:]), "\x00")

	if !d.looksLikeGamepad() {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: not a gamepad", path)
	}

	for _, axis := range []uint16{absX, absY, absZ, absRX, absRY, absRZ, absHat0X, absHat0Y} {
		var ai absInfo
		if err := ioctlPtr(fd, eviocgabs(uintptr(axis)), unsafe.Pointer(&ai)); err == nil {
			d.info[axis] = ai
		}
	}
	return d, nil
}

// looksLikeGamepad requires the device to report BTN_SOUTH in its key bitmap.
func (d *evdevDevice) looksLikeGamepad() bool {
	var bits [96]byte
	if err := ioctlPtr(d.fd, eviocgbit(evKey, uintptr(len(bits))), unsafe.Pointer(&bits[0])); err != nil {
		return false
	}
	return bits[btnSouth/8]&(1<<(btnSouth%8)) != 0
}

func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Refresh drains pending events from every device.
func (b *EvdevBackend) Refresh() error {
	for _, d := range b.devices {
		if !d.connected {
			continue
		}
		if err := d.drain(b.buf[:]); err != nil {
			b.log.Info("gamepad disconnected", "name", d.name, "id", d.id)
			d.connected = false
			unix.Close(d.fd)
		}
	}
	return nil
}

// drain reads all queued input_event records. 24 bytes each on 64-bit:
// timeval(16) + type(u16) + code(u16) + value(i32).
func (d *evdevDevice) drain(buf []byte) error {
	for {
		n, err := unix.Read(d.fd, buf)
		if err == unix.EAGAIN {
			return nil
		}
		if err != nil || n == 0 {
			return fmt.Errorf("read %s: %w", d.path, err)
		}
		for off := 0; off+24 <= n; off += 24 {
			typ := binary.NativeEndian.Uint16(buf[off+16:])
			code := binary.NativeEndian.Uint16(buf[off+18:])
			value := int32(binary.NativeEndian.Uint32(buf[off+20:]))
			d.apply(typ, code, value)
		}
	}
}

func (d *evdevDevice) apply(typ, code uint16, value int32) {
	switch typ {
	case evKey:
		d.keys[code] = value != 0
	case evAbs:
		d.abs[code] = d.normalize(code, value)
	}
}

// normalize scales a raw axis value using its reported range. Sticks map to
// [-1,1], trigger axes (min >= 0) map to [0,1].
func (d *evdevDevice) normalize(code uint16, value int32) float32 {
	ai, ok := d.info[code]
	if !ok || ai.Maximum == ai.Minimum {
		return float32(value)
	}
	if ai.Minimum >= 0 {
		return float32(value-ai.Minimum) / float32(ai.Maximum-ai.Minimum)
	}
	return 2*float32(value-ai.Minimum)/float32(ai.Maximum-ai.Minimum) - 1
}

// Devices returns the connected gamepads.
func (b *EvdevBackend) Devices() []Device {
	out := make([]Device, 0, len(b.devices))
	for _, d := range b.devices {
		if d.connected {
			out = append(out, d)
		}
	}
	return out
}

// Close releases every device.
func (b *EvdevBackend) Close() error {
	for _, d := range b.devices {
		if d.connected {
			unix.Close(d.fd)
			d.connected = false
		}
	}
	return nil
}

func (d *evdevDevice) ID() uint8       { return d.id }
func (d *evdevDevice) Name() string    { return d.name }
func (d *evdevDevice) Connected() bool { return d.connected }

var evdevButtons = map[Button]uint16{
	ButtonSouth:        btnSouth,
	ButtonEast:         btnEast,
	ButtonWest:         btnWest,
	ButtonNorth:        btnNorth,
	ButtonLeftBumper:   btnTL,
	ButtonRightBumper:  btnTR,
	ButtonLeftTrigger:  btnTL2,
	ButtonRightTrigger: btnTR2,
	ButtonBack:         btnSelect,
	ButtonStart:        btnStart,
	ButtonLeftThumb:    btnThumbL,
	ButtonRightThumb:   btnThumbR,
}

func (d *evdevDevice) Pressed(b Button) bool {
	// The d-pad arrives as hat axes on most kernels.
	switch b {
	case ButtonDPadUp:
		return d.abs[absHat0Y] < -0.5
	case ButtonDPadDown:
		return d.abs[absHat0Y] > 0.5
	case ButtonDPadLeft:
		return d.abs[absHat0X] < -0.5
	case ButtonDPadRight:
		return d.abs[absHat0X] > 0.5
	}
	if code, ok := evdevButtons[b]; ok {
		return d.keys[code]
	}
	return false
}

// ButtonPressure is unavailable through evdev; triggers fall through to the
// axis path.
func (d *evdevDevice) ButtonPressure(Button) (float32, bool) {
	return 0, false
}

var evdevAxes = map[Axis]uint16{
	AxisLeftX:        absX,
	AxisLeftY:        absY,
	AxisRightX:       absRX,
	AxisRightY:       absRY,
	AxisLeftTrigger:  absZ,
	AxisRightTrigger: absRZ,
}

func (d *evdevDevice) AxisValue(a Axis) (float32, bool) {
	code, ok := evdevAxes[a]
	if !ok {
		return 0, false
	}
	v, have := d.abs[code]
	if !have {
		return 0, false
	}
	return v, true
}

// SetRumble uploads an FF_RUMBLE effect and plays it, reusing the effect
// slot across calls. Zero magnitudes stop playback.
func (d *evdevDevice) SetRumble(leftMotor, rightMotor uint8) error {
	if leftMotor == 0 && rightMotor == 0 {
		return d.playFF(0)
	}
	eff := ffEffect{
		Type:            ffRumble,
		ID:              d.ffID,
		ReplayLength:    0xFFFF,
		StrongMagnitude: uint16(leftMotor) * 257,
		WeakMagnitude:   uint16(rightMotor) * 257,
	}
	if err := ioctlPtr(d.fd, eviocsff(), unsafe.Pointer(&eff)); err != nil {
		return fmt.Errorf("upload rumble effect: %w", err)
	}
	d.ffID = eff.ID
	return d.playFF(1)
}

// playFF writes an EV_FF event toggling the uploaded effect.
func (d *evdevDevice) playFF(value int32) error {
	if d.ffID < 0 {
		return nil
	}
	var ev [24]byte
	binary.NativeEndian.PutUint16(ev[16:], evFF)
	binary.NativeEndian.PutUint16(ev[18:], uint16(d.ffID))
	binary.NativeEndian.PutUint32(ev[20:], uint32(value))
	if _, err := unix.Write(d.fd, ev[:]); err != nil {
		return fmt.Errorf("play rumble: %w", err)
	}
	return nil
}
