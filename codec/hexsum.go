package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/pattern"
	"github.com/arloliu/go-instrument/units"
)

// ErrChecksum is reported when a frame checksum does not verify.
var ErrChecksum = errors.New("codec: checksum mismatch")

const (
	DefaultHexSentinel  = "*"
	DefaultHexAnswerEnd = "^"
)

// HexSum is the checksummed hexadecimal format. A question is
//
//	sentinel + code + dec2hex(round(value*scale), bits) + checksum + "\r"
//
// and an answer is sentinel + hex(bits/4) + checksum + answer terminator.
// The checksum is the additive checksum of the hex text after the sentinel.
type HexSum struct {
	Sentinel        string
	Bits            int
	Scale           float64
	WriteTerminator string
	ReadTerminator  string
}

var _ Codec = (*HexSum)(nil)

// NewHexSum returns a HexSum codec with the default sentinel and terminators.
func NewHexSum(bits int, scale float64) *HexSum {
	return &HexSum{
		Sentinel:        DefaultHexSentinel,
		Bits:            bits,
		Scale:           scale,
		WriteTerminator: DefaultWriteTerminator,
		ReadTerminator:  DefaultHexAnswerEnd,
	}
}

func (c *HexSum) Name() string { return "hexsum" }

func (c *HexSum) Terminator() []byte { return []byte(c.ReadTerminator) }

func (c *HexSum) scale(req Request) float64 {
	if req.Factor != 0 {
		return req.Factor
	}

	return c.Scale
}

func (c *HexSum) Encode(req Request) ([]byte, error) {
	var value float64
	if len(req.Params) > 0 {
		v, err := toFloat(req.Params[0])
		if err != nil {
			return nil, err
		}
		value = v
	}

	frame, err := EncodeHexSum(c.Sentinel, req.Command, value, c.scale(req), c.Bits)
	if err != nil {
		return nil, err
	}

	return []byte(frame + c.WriteTerminator), nil
}

func (c *HexSum) Decode(req Request, raw []byte) (Result, error) {
	body := bytes.TrimSuffix(bytes.TrimRight(raw, "\r\n"), []byte(c.ReadTerminator))

	hex, value, err := DecodeHexSum(c.Sentinel, string(body), c.scale(req), c.Bits)
	if err != nil {
		return Result{}, &fault.CommandError{
			Kind:  fault.ErrParse,
			Class: req.Class,
			Raw:   append([]byte(nil), raw...),
			Err:   err,
		}
	}

	n, _ := units.Hex2Dec(hex, c.Bits)

	return Result{
		Class:    req.Class,
		Action:   req.Action,
		Raw:      append([]byte(nil), raw...),
		Fields:   []pattern.Field{{Kind: pattern.KindHex, Int: n, Text: hex}},
		Value:    value,
		HasValue: true,
	}, nil
}

// EncodeHexSum returns the question frame without write terminator.
func EncodeHexSum(sentinel, code string, value, scale float64, bits int) (string, error) {
	if scale == 0 {
		scale = 1
	}

	hex, err := units.Dec2Hex(units.Scale(value, scale), bits)
	if err != nil {
		return "", err
	}

	payload := code + hex

	return sentinel + payload + units.Checksum(payload), nil
}

// DecodeHexSum verifies an answer frame (without terminator) and returns
// its hex field and the value divided by scale.
func DecodeHexSum(sentinel, frame string, scale float64, bits int) (string, float64, error) {
	if !strings.HasPrefix(frame, sentinel) {
		return "", 0, fmt.Errorf("codec: frame %q does not start with %q", frame, sentinel)
	}

	body := frame[len(sentinel):]
	width := bits / 4
	if len(body) != width+2 {
		return "", 0, fmt.Errorf("codec: frame %q has %d characters, want %d", frame, len(body), width+2)
	}

	hex, sum := body[:width], body[width:]
	if !strings.EqualFold(units.Checksum(hex), sum) {
		return "", 0, fmt.Errorf("%w: frame %q carries %s, computed %s", ErrChecksum, frame, sum, units.Checksum(hex))
	}

	n, err := units.Hex2Dec(hex, bits)
	if err != nil {
		return "", 0, err
	}

	return hex, units.Unscale(n, scale), nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("%w: parameter %v is not numeric", ErrTemplate, v)
	}
}
