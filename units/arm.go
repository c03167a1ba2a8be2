package units

import (
	"errors"
	"math"
)

// ErrInvalidRatio is returned when an arm offset/radius ratio is outside [0, 1).
var ErrInvalidRatio = errors.New("units: offset/radius ratio must be in [0, 1)")

// ArmAngleToSteps converts the angle seen from the instrument into the step
// position of an arm-type positioner whose pivot is offset from the
// instrument by ratio times the arm radius.
//
// The arm angle is the viewing angle corrected by the arcsine of the offset
// projection: alpha = angle + asin(ratio * sin(angle)).
func ArmAngleToSteps(angle, degreesPerStep, ratio float64) (int, error) {
	if err := checkResolution(degreesPerStep); err != nil {
		return 0, err
	}
	if err := checkRatio(ratio); err != nil {
		return 0, err
	}

	delta := rad2deg(math.Asin(ratio * math.Sin(deg2rad(angle))))

	return int(math.Round((angle + delta) / degreesPerStep)), nil
}

// StepsToArmAngle is the inverse relation of ArmAngleToSteps. The arm tip
// at alpha = steps * degreesPerStep is seen from the instrument at
// asin(sin alpha / chord), flipped to 180 - angle when the tip lies behind
// the instrument (cos alpha < -ratio). The result is wrapped into
// [-180, 180].
func StepsToArmAngle(steps int, degreesPerStep, ratio float64) (float64, error) {
	if err := checkResolution(degreesPerStep); err != nil {
		return 0, err
	}
	if err := checkRatio(ratio); err != nil {
		return 0, err
	}

	alpha := deg2rad(float64(steps) * degreesPerStep)
	sin, cos := math.Sincos(alpha)

	// chord is never zero for ratio < 1
	chord := math.Sqrt(1 + ratio*ratio + 2*ratio*cos)
	angle := rad2deg(math.Asin(math.Max(-1, math.Min(1, sin/chord))))
	// For ratio > 0, cos alpha < -ratio is the same test as
	// chord^2 < 1 - ratio^2 (expand chord^2 = 1 + ratio^2 + 2*ratio*cos).
	// The cosine form also flips correctly at ratio 0.
	if cos+ratio < 0 {
		angle = 180 - angle
	}

	return WrapAngle(angle), nil
}

func checkRatio(ratio float64) error {
	if ratio < 0 || ratio >= 1 || math.IsNaN(ratio) {
		return ErrInvalidRatio
	}

	return nil
}
