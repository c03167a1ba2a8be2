package simulator

import (
	"strings"
	"sync"

	"github.com/arloliu/go-instrument/codec"
	"github.com/arloliu/go-instrument/units"
)

// TETech emulates a TETech temperature controller speaking the
// checksummed hex format.
type TETech struct {
	bits  int
	scale float64

	mu       sync.Mutex
	setpoint float64
	current  float64
}

var _ Responder = (*TETech)(nil)

// NewTETech returns a controller at 20 degrees.
func NewTETech(bits int, scale float64) *TETech {
	return &TETech{bits: bits, scale: scale, setpoint: 20, current: 20}
}

// Setpoint returns the last set temperature.
func (t *TETech) Setpoint() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.setpoint
}

// SetCurrent sets the temperature answered to reads.
func (t *TETech) SetCurrent(v float64) {
	t.mu.Lock()
	t.current = v
	t.mu.Unlock()
}

// Respond implements Responder. Frames with a bad checksum are answered
// with the controller's "XXXX" frame.
func (t *TETech) Respond(q string) string {
	width := t.bits / 4
	if !strings.HasPrefix(q, codec.DefaultHexSentinel) || len(q) != 1+2+width+2 {
		return ""
	}

	payload, sum := q[1:len(q)-2], q[len(q)-2:]
	if !strings.EqualFold(units.Checksum(payload), sum) {
		return "*" + strings.Repeat("X", width) + "c0" + codec.DefaultHexAnswerEnd
	}

	code, hex := payload[:2], payload[2:]

	t.mu.Lock()
	defer t.mu.Unlock()

	var value float64
	switch code {
	case "1c":
		n, err := units.Hex2Dec(hex, t.bits)
		if err != nil {
			return ""
		}
		t.setpoint = units.Unscale(n, t.scale)
		t.current = t.setpoint
		value = t.setpoint
	case "01":
		value = t.current
	case "03":
		value = t.setpoint
	default:
		return ""
	}

	frame, err := codec.EncodeHexSum(codec.DefaultHexSentinel, "", value, t.scale, t.bits)
	if err != nil {
		return ""
	}

	return frame + codec.DefaultHexAnswerEnd
}
