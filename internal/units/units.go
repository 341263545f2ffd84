// Package units provides the display units for walking speed and stride
// length reported by the gait analysis service, which always answers in SI.
package units

import (
	"fmt"
	"strings"
)

// Speed units.
const (
	MPS  = "mps"
	KMPH = "kmph"
	KPH  = "kph"
	MPH  = "mph"
)

// Length units.
const (
	Meters = "m"
	Feet   = "ft"
)

// ValidSpeedUnits contains all accepted speed unit names.
var ValidSpeedUnits = []string{MPS, KMPH, KPH, MPH}

// IsValidSpeed checks if the given unit is an accepted speed unit.
func IsValidSpeed(unit string) bool {
	for _, u := range ValidSpeedUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// ValidSpeedUnitsString returns the accepted units for error messages.
func ValidSpeedUnitsString() string {
	return strings.Join(ValidSpeedUnits, ", ")
}

// ConvertSpeed converts a walking speed from meters per second to the target
// unit. Unknown units leave the value in m/s.
func ConvertSpeed(speedMPS float64, target string) float64 {
	switch target {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// SpeedLabel returns the human readable suffix for a speed unit.
func SpeedLabel(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}

// FormatSpeed renders a speed given in m/s in the target unit.
func FormatSpeed(speedMPS float64, unit string) string {
	return fmt.Sprintf("%.2f %s", ConvertSpeed(speedMPS, unit), SpeedLabel(unit))
}

// ConvertLength converts a stride length from meters to the target unit.
func ConvertLength(meters float64, target string) float64 {
	if target == Feet {
		return meters * 3.28084
	}
	return meters
}
