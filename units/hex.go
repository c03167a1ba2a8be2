package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidBitWidth is returned for bit widths that are not a positive
	// multiple of 4 up to 64.
	ErrInvalidBitWidth = errors.New("units: bit width must be a multiple of 4 in [4, 64]")
	// ErrOutOfRange is returned when a value does not fit the signed range
	// of the requested bit width.
	ErrOutOfRange = errors.New("units: value out of range for bit width")
	// ErrInvalidHex is returned for malformed hexadecimal input.
	ErrInvalidHex = errors.New("units: invalid hexadecimal string")
)

// Dec2Hex encodes value as an nBits wide two's-complement number, formatted
// as nBits/4 upper-case hex characters. Negative values are mapped to
// 2^nBits + value.
func Dec2Hex(value int64, nBits int) (string, error) {
	if err := checkBits(nBits); err != nil {
		return "", err
	}

	lo, hi := signedRange(nBits)
	if value < lo || value > hi {
		return "", fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, value, lo, hi)
	}

	return fmt.Sprintf("%0*X", nBits/4, uint64(value)&mask(nBits)), nil
}

// Hex2Dec decodes an nBits wide two's-complement hex string. The value is
// negative when its leading nibble exceeds 7. Shorter input is treated as
// zero padded on the left.
func Hex2Dec(hex string, nBits int) (int64, error) {
	if err := checkBits(nBits); err != nil {
		return 0, err
	}

	width := nBits / 4
	if hex == "" || len(hex) > width {
		return 0, fmt.Errorf("%w: %q for %d bits", ErrInvalidHex, hex, nBits)
	}

	u, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHex, hex)
	}

	padded := strings.Repeat("0", width-len(hex)) + hex
	lead, _ := strconv.ParseUint(padded[:1], 16, 8)
	if lead > 7 {
		// two's complement: value - 2^nBits, computed without overflow
		return -int64((^u + 1) & mask(nBits)), nil
	}

	return int64(u), nil
}

// Checksum returns the additive checksum of s, (sum of ASCII codes) mod 256,
// formatted as two upper-case hex digits.
func Checksum(s string) string {
	return fmt.Sprintf("%02X", ChecksumByte(s))
}

// ChecksumByte returns the additive checksum of s as a byte.
func ChecksumByte(s string) byte {
	var sum byte
	for i := 0; i < len(s); i++ {
		sum += s[i]
	}

	return sum
}

// XORChecksum returns the XOR of all bytes of s, as used by NMEA sentences.
func XORChecksum(s string) byte {
	var sum byte
	for i := 0; i < len(s); i++ {
		sum ^= s[i]
	}

	return sum
}

// Scale converts an engineering value into the raw integer a device expects,
// round(value * factor).
func Scale(value, factor float64) int64 {
	return int64(math.Round(value * factor))
}

// Unscale converts a raw device integer into an engineering value, raw / factor.
// A zero factor is treated as 1.
func Unscale(raw int64, factor float64) float64 {
	if factor == 0 {
		factor = 1
	}

	return float64(raw) / factor
}

func checkBits(nBits int) error {
	if nBits < 4 || nBits > 64 || nBits%4 != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBitWidth, nBits)
	}

	return nil
}

func mask(nBits int) uint64 {
	if nBits == 64 {
		return math.MaxUint64
	}

	return 1<<uint(nBits) - 1
}

func signedRange(nBits int) (int64, int64) {
	if nBits == 64 {
		return math.MinInt64, math.MaxInt64
	}

	return -(1 << uint(nBits-1)), 1<<uint(nBits-1) - 1
}
