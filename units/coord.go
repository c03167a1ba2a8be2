package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidCoordinate is returned for malformed degree-minute fields.
var ErrInvalidCoordinate = errors.New("units: invalid degree-minute coordinate")

// DegMinToDecimal converts a "dddmm.mmmm" field and its hemisphere letter
// (N, S, E, W) into signed decimal degrees: degrees + minutes/60, negated
// for S and W.
func DegMinToDecimal(field, hemisphere string) (float64, error) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, field)
	}

	deg := math.Floor(v / 100)
	minutes := v - deg*100
	if minutes >= 60 {
		return 0, fmt.Errorf("%w: %q has %.4f minutes", ErrInvalidCoordinate, field, minutes)
	}

	dec := deg + minutes/60

	switch hemisphere {
	case "N", "E":
		return dec, nil
	case "S", "W":
		return -dec, nil
	default:
		return 0, fmt.Errorf("%w: hemisphere %q", ErrInvalidCoordinate, hemisphere)
	}
}
