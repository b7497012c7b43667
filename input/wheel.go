package input

import "strings"

// wheelNames are substrings identifying racing wheels. Wheels are excluded
// from generic gamepad handling: their rotation and pedal axes need a
// dedicated mapping and their force feedback goes through the wheel
// subsystem, not the rumble motors.
var wheelNames = []string{
	"g29",
	"g27",
	"g920",
	"g923",
	"g25",
	"driving force",
	"racing wheel",
	"fanatec",
	"thrustmaster",
	"t150",
	"t300",
	"t500",
}

// IsRacingWheel reports whether a device name identifies a racing wheel.
func IsRacingWheel(name string) bool {
	n := strings.ToLower(name)
	for _, w := range wheelNames {
		if strings.Contains(n, w) {
			return true
		}
	}
	if strings.Contains(n, "logitech") &&
		(strings.Contains(n, "steering") || strings.Contains(n, "pedal")) {
		return true
	}
	return false
}
