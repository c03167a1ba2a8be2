package pattern

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the kind of a token and of the field it extracts.
type Kind uint8

const (
	KindLiteral Kind = iota
	KindInt
	KindFloat
	KindHex
	KindMatch
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindHex:
		return "hex"
	case KindMatch:
		return "match"
	default:
		return "unknown"
	}
}

// MatchMode selects how a Match token compares its text to the rest of the input.
type MatchMode uint8

const (
	MatchExact MatchMode = iota
	MatchPrefix
	MatchSuffix
	MatchSubstring
)

func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchSuffix:
		return "suffix"
	case MatchSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// Token is one element of an alternative. Build tokens with the
// constructor functions; the zero value is an empty literal.
type Token struct {
	kind Kind
	text string
	sep  string
	imin int64
	imax int64
	min  float64
	max  float64
	n    int
	mode MatchMode
}

// Literal consumes exactly text.
func Literal(text string) Token {
	return Token{kind: KindLiteral, text: text}
}

// Int consumes a signed integer within [min, max]. When sep is not empty the
// integer runs up to the first occurrence of sep (which is left for the next
// token) or to the end of the input; otherwise the maximal run of an optional
// sign followed by digits is taken.
func Int(min, max int64, sep string) Token {
	return Token{kind: KindInt, sep: sep, imin: min, imax: max}
}

// AnyInt is an unbounded Int without separator.
func AnyInt() Token {
	return Int(math.MinInt64, math.MaxInt64, "")
}

// Float consumes a signed decimal number within [min, max], with the same
// separator rules as Int.
func Float(min, max float64, sep string) Token {
	return Token{kind: KindFloat, sep: sep, min: min, max: max}
}

// AnyFloat is an unbounded Float without separator.
func AnyFloat() Token {
	return Float(math.Inf(-1), math.Inf(1), "")
}

// MaxHexWidth is the widest Hex token; its value always fits Field.Int.
const MaxHexWidth = 15

// Hex consumes exactly n hexadecimal characters, n in [1, MaxHexWidth].
func Hex(n int) Token {
	return Token{kind: KindHex, n: n}
}

// Match consumes the whole rest of the input and compares it to text.
func Match(text string, mode MatchMode) Token {
	return Token{kind: KindMatch, text: text, mode: mode}
}

// Kind returns the token kind.
func (t Token) Kind() Kind { return t.kind }

// String renders the token in the textual form accepted by Parse.
func (t Token) String() string {
	switch t.kind {
	case KindLiteral:
		if t.text == "%" {
			return "%%"
		}
		return t.text
	case KindInt, KindFloat:
		var sb strings.Builder
		if t.kind == KindInt {
			sb.WriteString("%d")
		} else {
			sb.WriteString("%f")
		}
		if t.bounded() {
			sb.WriteByte('[')
			if t.kind == KindInt {
				sb.WriteString(strconv.FormatInt(t.imin, 10))
				sb.WriteByte(':')
				sb.WriteString(strconv.FormatInt(t.imax, 10))
			} else {
				sb.WriteString(strconv.FormatFloat(t.min, 'g', -1, 64))
				sb.WriteByte(':')
				sb.WriteString(strconv.FormatFloat(t.max, 'g', -1, 64))
			}
			sb.WriteByte(']')
		}
		if t.sep != "" {
			sb.WriteByte('/')
			sb.WriteString(t.sep)
		}
		return sb.String()
	case KindHex:
		return "%x" + strconv.Itoa(t.n)
	case KindMatch:
		return "%s" + string(modeChars[t.mode]) + t.text
	default:
		return "?"
	}
}

func (t Token) bounded() bool {
	if t.kind == KindInt {
		return t.imin > math.MinInt64 || t.imax < math.MaxInt64
	}

	return !math.IsInf(t.min, -1) || !math.IsInf(t.max, 1)
}

// Field is a value extracted by a non-literal token.
type Field struct {
	Kind  Kind
	Int   int64
	Float float64
	Text  string
}

// Value returns the field value as int64, float64 or string.
// Hex fields return their unsigned value.
func (f Field) Value() any {
	switch f.Kind {
	case KindInt, KindHex:
		return f.Int
	case KindFloat:
		return f.Float
	default:
		return f.Text
	}
}

// Number returns the numeric value of Int, Float and Hex fields.
func (f Field) Number() (float64, bool) {
	switch f.Kind {
	case KindInt, KindHex:
		return float64(f.Int), true
	case KindFloat:
		return f.Float, true
	default:
		return 0, false
	}
}

func (f Field) String() string {
	switch f.Kind {
	case KindInt:
		return strconv.FormatInt(f.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(f.Float, 'f', -1, 64)
	default:
		return f.Text
	}
}
