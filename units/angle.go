package units

import (
	"errors"
	"math"
)

// ErrInvalidResolution is returned when a degrees-per-step value is zero,
// negative or not finite.
var ErrInvalidResolution = errors.New("units: degrees per step must be a positive finite number")

// AngleToSteps converts a physical angle into motor steps relative to the
// home angle: round((home - angle) / degreesPerStep).
//
// Halves round away from zero.
func AngleToSteps(angle, degreesPerStep, home float64) (int, error) {
	if err := checkResolution(degreesPerStep); err != nil {
		return 0, err
	}

	return int(math.Round((home - angle) / degreesPerStep)), nil
}

// StepsToAngle is the exact inverse of AngleToSteps for integral step counts.
func StepsToAngle(steps int, degreesPerStep, home float64) (float64, error) {
	if err := checkResolution(degreesPerStep); err != nil {
		return 0, err
	}

	return home - float64(steps)*degreesPerStep, nil
}

// NormalizeAzimuth maps any finite angle into [0, 360).
func NormalizeAzimuth(a float64) float64 {
	n := math.Mod(a, 360)
	if n < 0 {
		n += 360
	}
	// -1e-15 + 360 rounds to exactly 360 in float64.
	if n >= 360 {
		n = 0
	}

	return n
}

// WrapAngle maps any finite angle into [-180, 180].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 360)
	switch {
	case a > 180:
		a -= 360
	case a < -180:
		a += 360
	}

	return a
}

func checkResolution(degreesPerStep float64) error {
	if degreesPerStep <= 0 || math.IsNaN(degreesPerStep) || math.IsInf(degreesPerStep, 0) {
		return ErrInvalidResolution
	}

	return nil
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

func rad2deg(r float64) float64 { return r * 180 / math.Pi }
