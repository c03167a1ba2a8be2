package simulator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/arloliu/go-instrument/codec"
)

// GPS emulates a receiver answering log requests with sentences.
type GPS struct {
	leader byte
	mode   codec.ChecksumMode

	mu      sync.Mutex
	gga     string
	heading float64
	pitch   float64
	roll    float64
}

var _ Responder = (*GPS)(nil)

// NewGPS returns a receiver with a fixed position.
func NewGPS(leader byte, mode codec.ChecksumMode) *GPS {
	return &GPS{
		leader:  leader,
		mode:    mode,
		gga:     "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
		heading: 123.4,
	}
}

// SetOrientation sets the answered heading, pitch and roll.
func (g *GPS) SetOrientation(heading, pitch, roll float64) {
	g.mu.Lock()
	g.heading, g.pitch, g.roll = heading, pitch, roll
	g.mu.Unlock()
}

// Respond implements Responder.
func (g *GPS) Respond(q string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var body string
	switch {
	case strings.Contains(q, "GGA"), strings.Contains(q, "PSRF103"):
		body = g.gga
	case strings.Contains(q, "HDT"):
		body = fmt.Sprintf("GPHDT,%.2f,T", g.heading)
	case strings.Contains(q, "ATT"):
		body = fmt.Sprintf("INSATT,120000,%.2f,%.2f,%.2f", g.heading, g.pitch, g.roll)
	default:
		return ""
	}

	return string(codec.EncodeSentence(g.leader, body, g.mode))
}

// Block formats a streaming block of key/value pairs ended by sentinel.
func Block(sentinel string, pairs ...string) string {
	var sb strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		sb.WriteString(pairs[i])
		sb.WriteByte('\t')
		sb.WriteString(pairs[i+1])
		sb.WriteString("\r\n")
	}
	sb.WriteString(sentinel)
	sb.WriteString("\r\n")

	return sb.String()
}
