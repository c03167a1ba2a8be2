package simulator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/codec"
)

// HDC2080 answers the humidity sensor register reads with fixed raw values.
func HDC2080(temperature, humidity uint16) Responder {
	return ResponderFunc(func(q string) string {
		switch q {
		case "HDt?":
			return fmt.Sprintf("HD!%04X\n", temperature)
		case "HDh?":
			return fmt.Sprintf("HD!%04X\n", humidity)
		case "HDi?":
			return "HD!07D0\n"
		case "HDr":
			return "HD0\n"
		default:
			return ""
		}
	})
}

// Silent never answers.
func Silent() Responder {
	return ResponderFunc(func(string) string { return "" })
}

// ForClasses returns an instrument emulating the built-in classes behind one
// port. Head sensor classes may share a port; the other families stand
// alone.
func ForClasses(name string, classes ...string) (*Instrument, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("simulator: port %s has no classes", name)
	}

	head := 0
	for _, cls := range classes {
		if slices.Contains(catalog.HeadSensorClasses, cls) {
			head++
		}
	}
	if head == len(classes) {
		return New(name, NewHeadSensor()), nil
	}
	if len(classes) > 1 {
		return nil, fmt.Errorf("simulator: cannot share port %s between %v", name, classes)
	}

	var r Responder
	switch classes[0] {
	case "TETECH1":
		r = NewTETech(16, 10)
	case "TETECH2":
		r = NewTETech(32, 100)
	case "HDC":
		r = HDC2080(0x6666, 0x8000)
	case "GPS":
		r = NewGPS('$', codec.ChecksumXOR)
	case "NOVATEL":
		r = NewGPS('#', codec.ChecksumAdditive)
	case "LOGGER":
		r = Silent()
	default:
		return nil, fmt.Errorf("simulator: no emulation for class %s", classes[0])
	}

	return New(name, r), nil
}

// Stream pushes next() every interval until ctx is done. Pushes made while
// no connection is open are dropped.
func (in *Instrument) Stream(ctx context.Context, interval time.Duration, next func() string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !in.Push(next()) {
				in.logger.Debug("simulator: stream block dropped")
			}
		}
	}
}
