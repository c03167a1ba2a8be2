package pattern

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-instrument/fault"
)

var (
	// ErrNoMatch is reported when no alternative consumes the answer.
	ErrNoMatch = errors.New("pattern: no matching pattern")
	// ErrDeviceIDMismatch is reported when the answer does not start with
	// the device-id prefix.
	ErrDeviceIDMismatch = errors.New("pattern: device id mismatch")
)

// Pattern is a device-id prefix plus ordered alternatives.
// A Pattern is immutable after construction and safe for concurrent use.
type Pattern struct {
	prefix       string
	alternatives [][]Token
}

// New creates a pattern. A pattern without alternatives accepts only an
// answer that consists of the prefix alone.
func New(prefix string, alternatives ...[]Token) *Pattern {
	alts := make([][]Token, 0, len(alternatives))
	for _, alt := range alternatives {
		alts = append(alts, append([]Token(nil), alt...))
	}
	if len(alts) == 0 {
		alts = append(alts, nil)
	}

	return &Pattern{prefix: prefix, alternatives: alts}
}

// Prefix returns the device-id prefix.
func (p *Pattern) Prefix() string { return p.prefix }

// Alternatives returns the number of alternatives.
func (p *Pattern) Alternatives() int { return len(p.alternatives) }

// Result is a successful match.
type Result struct {
	// Alternative is the index of the winning alternative.
	Alternative int
	// Fields holds the values of the non-literal tokens, in order.
	Fields []Field
}

// Ints returns the integer values of all Int and Hex fields, in order.
func (r Result) Ints() []int64 {
	out := make([]int64, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Kind == KindInt || f.Kind == KindHex {
			out = append(out, f.Int)
		}
	}

	return out
}

// MatchError describes a failed match. It wraps ErrNoMatch or
// ErrDeviceIDMismatch, and fault.ErrParse.
type MatchError struct {
	Err     error
	Raw     []byte
	Pattern string
	// Detail is the reason the last alternative failed, if any.
	Detail string
}

func (e *MatchError) Error() string {
	msg := fmt.Sprintf("%s: %q against %s", e.Err.Error(), e.Raw, e.Pattern)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}

	return msg
}

func (e *MatchError) Unwrap() []error {
	return []error{e.Err, fault.ErrParse}
}

// Match validates raw against the pattern.
func (p *Pattern) Match(raw []byte) (Result, error) {
	in := string(bytes.TrimRight(raw, "\r\n"))

	if !strings.HasPrefix(in, p.prefix) {
		return Result{}, p.fail(ErrDeviceIDMismatch, raw, "")
	}
	rest := in[len(p.prefix):]

	var detail string
	for i, alt := range p.alternatives {
		fields, err := matchAlternative(alt, rest)
		if err == nil {
			return Result{Alternative: i, Fields: fields}, nil
		}
		detail = fmt.Sprintf("alternative %d: %s", i, err)
	}

	return Result{}, p.fail(ErrNoMatch, raw, detail)
}

// MatchString is Match for string input.
func (p *Pattern) MatchString(s string) (Result, error) {
	return p.Match([]byte(s))
}

func (p *Pattern) fail(kind error, raw []byte, detail string) *MatchError {
	return &MatchError{
		Err:     kind,
		Raw:     append([]byte(nil), raw...),
		Pattern: p.String(),
		Detail:  detail,
	}
}

// String renders the pattern as prefix{alt | alt}, tokens separated by spaces.
func (p *Pattern) String() string {
	var sb strings.Builder
	sb.WriteString(p.prefix)
	sb.WriteByte('{')
	for i, alt := range p.alternatives {
		if i > 0 {
			sb.WriteString(" | ")
		}
		for j, tok := range alt {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(tok.String())
		}
	}
	sb.WriteByte('}')

	return sb.String()
}

func matchAlternative(alt []Token, in string) ([]Field, error) {
	var fields []Field
	pos := 0

	for idx, tok := range alt {
		rest := in[pos:]

		switch tok.kind {
		case KindLiteral:
			if !strings.HasPrefix(rest, tok.text) {
				return nil, fmt.Errorf("token %d: expected %q at offset %d", idx, tok.text, pos)
			}
			pos += len(tok.text)

		case KindInt:
			run := numericRun(rest, tok.sep, false)
			v, err := strconv.ParseInt(run, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("token %d: invalid integer %q at offset %d", idx, run, pos)
			}
			if v < tok.imin || v > tok.imax {
				return nil, fmt.Errorf("token %d: integer %d out of range [%d, %d]", idx, v, tok.imin, tok.imax)
			}
			fields = append(fields, Field{Kind: KindInt, Int: v, Text: run})
			pos += len(run)

		case KindFloat:
			run := numericRun(rest, tok.sep, true)
			v, err := strconv.ParseFloat(run, 64)
			if err != nil {
				return nil, fmt.Errorf("token %d: invalid number %q at offset %d", idx, run, pos)
			}
			if v < tok.min || v > tok.max {
				return nil, fmt.Errorf("token %d: number %g out of range [%g, %g]", idx, v, tok.min, tok.max)
			}
			fields = append(fields, Field{Kind: KindFloat, Float: v, Text: run})
			pos += len(run)

		case KindHex:
			if tok.n <= 0 || tok.n > MaxHexWidth {
				return nil, fmt.Errorf("token %d: hex width %d out of range [1, %d]", idx, tok.n, MaxHexWidth)
			}
			if len(rest) < tok.n {
				return nil, fmt.Errorf("token %d: need %d hex characters at offset %d", idx, tok.n, pos)
			}
			run := rest[:tok.n]
			v, err := strconv.ParseUint(run, 16, 64)
			if err != nil {
				return nil, fmt.Errorf("token %d: invalid hex %q at offset %d", idx, run, pos)
			}
			fields = append(fields, Field{Kind: KindHex, Int: int64(v), Text: run})
			pos += tok.n

		case KindMatch:
			if !matchText(rest, tok.text, tok.mode) {
				return nil, fmt.Errorf("token %d: %q does not %s-match %q", idx, rest, tok.mode, tok.text)
			}
			fields = append(fields, Field{Kind: KindMatch, Text: rest})
			pos = len(in)
		}
	}

	if pos != len(in) {
		return nil, fmt.Errorf("unconsumed input %q", in[pos:])
	}

	return fields, nil
}

// numericRun returns the candidate number at the start of s. With a
// separator it is everything before the separator; otherwise it is the
// maximal run of sign, digits and, for decimals, one point and an exponent.
func numericRun(s, sep string, decimal bool) string {
	if sep != "" {
		if i := strings.Index(s, sep); i >= 0 {
			return s[:i]
		}
		return s
	}

	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	i += digits(s[i:])
	if !decimal {
		return s[:i]
	}

	if i < len(s) && s[i] == '.' {
		i++
		i += digits(s[i:])
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '-' || s[j] == '+') {
			j++
		}
		if n := digits(s[j:]); n > 0 {
			i = j + n
		}
	}

	return s[:i]
}

func digits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}

	return n
}

func matchText(s, text string, mode MatchMode) bool {
	switch mode {
	case MatchExact:
		return s == text
	case MatchPrefix:
		return strings.HasPrefix(s, text)
	case MatchSuffix:
		return strings.HasSuffix(s, text)
	case MatchSubstring:
		return strings.Contains(s, text)
	default:
		return false
	}
}
