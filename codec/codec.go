package codec

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/arloliu/go-instrument/pattern"
)

var (
	// ErrTemplate is returned when a command template references a parameter
	// that was not supplied.
	ErrTemplate = errors.New("codec: invalid command template")
	// ErrUnsupported is returned by codecs that cannot encode questions.
	ErrUnsupported = errors.New("codec: operation not supported")
)

// Codec encodes requests into wire bytes and decodes raw answers.
type Codec interface {
	// Name returns the wire format name, e.g. "ascii".
	Name() string
	// Encode returns the bytes to write, including the write terminator.
	Encode(req Request) ([]byte, error)
	// Decode validates raw and extracts the result.
	Decode(req Request, raw []byte) (Result, error)
	// Terminator returns the byte sequence that ends an answer.
	Terminator() []byte
}

// Request is one logical command.
type Request struct {
	// Class is the device class name, e.g. "TR".
	Class string
	// Action is the logical action name, e.g. "move_to".
	Action string
	// Command is the wire template of the action, e.g. "b{0},{1}".
	Command string
	// Params fills the template placeholders.
	Params []any
	// Pattern is the expected answer, nil when the codec validates the
	// answer structurally.
	Pattern *pattern.Pattern
	// Factor converts the first numeric field into Result.Value by
	// division. Zero means no conversion.
	Factor float64
	// Offset is added to Result.Value after the factor is applied.
	Offset float64
}

// Result is a decoded answer.
type Result struct {
	Class  string
	Action string
	// Raw is the answer as received.
	Raw []byte
	// Alternative is the index of the matching pattern alternative.
	Alternative int
	// Fields holds the extracted fields in order.
	Fields []pattern.Field
	// Value is the converted primary value, valid when HasValue is true.
	Value    float64
	HasValue bool
	// Values holds named values of structured formats.
	Values map[string]any
}

// Ints returns the integer fields of the result.
func (r Result) Ints() []int64 {
	return pattern.Result{Fields: r.Fields}.Ints()
}

func newResult(req Request, raw []byte, m pattern.Result) Result {
	res := Result{
		Class:       req.Class,
		Action:      req.Action,
		Raw:         append([]byte(nil), raw...),
		Alternative: m.Alternative,
		Fields:      m.Fields,
	}

	for _, f := range m.Fields {
		if n, ok := f.Number(); ok {
			res.Value = n
			if req.Factor != 0 {
				res.Value = n / req.Factor
			}
			res.Value += req.Offset
			res.HasValue = true

			break
		}
	}

	return res
}

var placeholderRe = regexp.MustCompile(`\{(\d+)\}`)

// Expand replaces {0}, {1}... in template with the formatted params.
func Expand(template string, params []any) (string, error) {
	var expandErr error

	out := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		idx, _ := strconv.Atoi(m[1 : len(m)-1])
		if idx >= len(params) {
			if expandErr == nil {
				expandErr = fmt.Errorf("%w: %q needs parameter %d, got %d", ErrTemplate, template, idx, len(params))
			}
			return m
		}

		return FormatParam(params[idx])
	})
	if expandErr != nil {
		return "", expandErr
	}

	return out, nil
}

// FormatParam renders a parameter value in its shortest decimal form.
func FormatParam(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
