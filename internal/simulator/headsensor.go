package simulator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// HeadSensor emulates the head sensor board and the subdevices behind it:
// tracker, shadowband, filter wheels, motors and relays. Queries not
// modelled explicitly answer from a table of canned values.
type HeadSensor struct {
	mu       sync.Mutex
	azimuth  int64
	zenith   int64
	band     int64
	wheels   map[string]int64
	canned   map[string]string
	powerOff bool
}

var _ Responder = (*HeadSensor)(nil)

// NewHeadSensor returns a head sensor with the tracker at home.
func NewHeadSensor() *HeadSensor {
	return &HeadSensor{
		wheels: map[string]int64{"F1": 1, "F2": 1},
		canned: map[string]string{
			"HTt?":  "2512",
			"HTh?":  "40960",
			"HTp?":  "101325",
			"HTI?":  "101",
			"HTbs?": "9600",
			"HTbt?": "9600",
			"F1o?":  "142",
			"F2o?":  "150",
			"FWn?":  "142",
			"FWs?":  "200",
			"MAa?":  "0",
			"MZa?":  "0",
			"MAd?":  "315",
			"MZd?":  "298",
			"MAm?":  "287",
			"MZm?":  "276",
			"MAp?":  "0",
			"MZp?":  "0",
			"MBc?":  "50",
			"MBs?":  "1000",
			"TRd?":  "5",
			"S1S?":  "1",
			"S2S?":  "1",
		},
	}
}

// SetQuery sets the value answered to a canned query, e.g. "HTt?".
func (h *HeadSensor) SetQuery(question, value string) {
	h.mu.Lock()
	h.canned[question] = value
	h.mu.Unlock()
}

// Position returns the tracker position.
func (h *HeadSensor) Position() (int64, int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.azimuth, h.zenith
}

// Shadowband returns the shadowband position.
func (h *HeadSensor) Shadowband() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.band
}

// Wheel returns the position of filter wheel "F1" or "F2".
func (h *HeadSensor) Wheel(name string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.wheels[name]
}

// Respond implements Responder.
func (h *HeadSensor) Respond(q string) string {
	if q == "?" {
		return "Pan101HST\n"
	}
	if len(q) < 3 {
		return ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	prefix, rest := q[:2], q[2:]

	switch prefix {
	case "HT":
		if rest == "v?" {
			return "V4_C96\n"
		}
	case "TR":
		if ans, ok := h.tracker(rest); ok {
			return ans
		}
	case "SB":
		if strings.HasPrefix(rest, "m") {
			n, err := strconv.ParseInt(rest[1:], 10, 64)
			if err != nil {
				return "SB2\n"
			}
			if n < -1000 || n > 1000 {
				return "SB3\n"
			}
			h.band = n
			return "SB0\n"
		}
		if rest == "r" {
			h.band = 0
		}
	case "F1", "F2":
		if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '9' {
			h.wheels[prefix] = int64(rest[0] - '0')
			return prefix + "0\n"
		}
		if rest == "r" {
			h.wheels[prefix] = 1
		}
	case "FW", "MA", "MZ", "MB", "S1", "S2":
	default:
		return ""
	}

	if strings.HasSuffix(rest, "?") {
		if v, ok := h.canned[q]; ok {
			return prefix + "!" + v + "\n"
		}
		return prefix + "1\n"
	}

	return prefix + "0\n"
}

func (h *HeadSensor) tracker(rest string) (string, bool) {
	switch {
	case rest == "w":
		return fmt.Sprintf("TRh%d,%d\n", h.azimuth, h.zenith), true
	case rest == "0":
		h.powerOff = true
		return "TR0\n", true
	case rest == "1":
		h.powerOff = false
		return "TR0\n", true
	case strings.HasPrefix(rest, "b"):
		if h.powerOff {
			return "TR6\n", true
		}
		az, zen, ok := strings.Cut(rest[1:], ",")
		a, err1 := strconv.ParseInt(az, 10, 64)
		z, err2 := strconv.ParseInt(zen, 10, 64)
		if !ok || err1 != nil || err2 != nil {
			return "TR2\n", true
		}
		h.azimuth, h.zenith = a, z
		return "TR0\n", true
	case strings.HasPrefix(rest, "p") && rest != "p?":
		n, err := strconv.ParseInt(rest[1:], 10, 64)
		if err != nil {
			return "TR2\n", true
		}
		h.azimuth = n
		return "TR0\n", true
	case strings.HasPrefix(rest, "t"):
		n, err := strconv.ParseInt(rest[1:], 10, 64)
		if err != nil {
			return "TR2\n", true
		}
		h.zenith = n
		return "TR0\n", true
	case rest == "r", rest == "s":
		h.azimuth, h.zenith, h.powerOff = 0, 0, false
		return "TR0\n", true
	default:
		return "", false
	}
}
