package pattern

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSyntax is returned by Parse for malformed token text.
var ErrSyntax = errors.New("pattern: invalid token syntax")

var modeChars = [...]byte{
	MatchExact:     '=',
	MatchPrefix:    '^',
	MatchSuffix:    '$',
	MatchSubstring: '~',
}

// Parse builds a pattern from its textual form. Each string of an
// alternative is one token:
//
//	%d               integer
//	%d[min:max]      bounded integer
//	%d/sep           integer running up to sep (combinable with bounds)
//	%f, %f[min:max]  decimal number, same options as %d
//	%x4              exactly 4 hex characters
//	%s=text          rest equals text
//	%s^text          rest starts with text
//	%s$text          rest ends with text
//	%s~text          rest contains text
//	%%               literal percent sign
//
// Any other string is a literal.
func Parse(prefix string, alternatives [][]string) (*Pattern, error) {
	alts := make([][]Token, 0, len(alternatives))
	for i, alt := range alternatives {
		toks := make([]Token, 0, len(alt))
		for j, text := range alt {
			tok, err := ParseToken(text)
			if err != nil {
				return nil, fmt.Errorf("alternative %d token %d: %w", i, j, err)
			}
			toks = append(toks, tok)
		}
		alts = append(alts, toks)
	}

	return New(prefix, alts...), nil
}

// MustParse is like Parse but panics on error. It is intended for
// package-level pattern tables.
func MustParse(prefix string, alternatives ...[]string) *Pattern {
	p, err := Parse(prefix, alternatives)
	if err != nil {
		panic(err)
	}

	return p
}

// ParseToken parses a single token.
func ParseToken(text string) (Token, error) {
	if len(text) < 2 || text[0] != '%' {
		return Literal(text), nil
	}

	switch text[1] {
	case '%':
		if text != "%%" {
			return Token{}, fmt.Errorf("%w: %q", ErrSyntax, text)
		}
		return Literal("%"), nil

	case 'd', 'f':
		return parseNumber(text)

	case 'x':
		n, err := strconv.Atoi(text[2:])
		if err != nil || n <= 0 || n > MaxHexWidth {
			return Token{}, fmt.Errorf("%w: %q needs a width in [1, %d]", ErrSyntax, text, MaxHexWidth)
		}
		return Hex(n), nil

	case 's':
		if len(text) < 3 {
			return Token{}, fmt.Errorf("%w: %q needs a match mode", ErrSyntax, text)
		}
		for mode, c := range modeChars {
			if text[2] == c {
				return Match(text[3:], MatchMode(mode)), nil
			}
		}
		return Token{}, fmt.Errorf("%w: %q has unknown match mode", ErrSyntax, text)

	default:
		return Literal(text), nil
	}
}

func parseNumber(text string) (Token, error) {
	isInt := text[1] == 'd'
	rest := text[2:]

	var bounds, sep string
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Token{}, fmt.Errorf("%w: %q has unterminated bounds", ErrSyntax, text)
		}
		bounds = rest[1:end]
		rest = rest[end+1:]
	}
	if strings.HasPrefix(rest, "/") {
		sep = rest[1:]
		if sep == "" {
			return Token{}, fmt.Errorf("%w: %q has empty separator", ErrSyntax, text)
		}
		rest = ""
	}
	if rest != "" {
		return Token{}, fmt.Errorf("%w: %q has trailing %q", ErrSyntax, text, rest)
	}

	if isInt {
		lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
		if bounds != "" {
			l, h, ok := strings.Cut(bounds, ":")
			var err1, err2 error
			lo, err1 = strconv.ParseInt(strings.TrimSpace(l), 10, 64)
			hi, err2 = strconv.ParseInt(strings.TrimSpace(h), 10, 64)
			if !ok || err1 != nil || err2 != nil || lo > hi {
				return Token{}, fmt.Errorf("%w: %q has invalid bounds", ErrSyntax, text)
			}
		}
		return Int(lo, hi, sep), nil
	}

	lo, hi := math.Inf(-1), math.Inf(1)
	if bounds != "" {
		l, h, ok := strings.Cut(bounds, ":")
		var err1, err2 error
		lo, err1 = strconv.ParseFloat(strings.TrimSpace(l), 64)
		hi, err2 = strconv.ParseFloat(strings.TrimSpace(h), 64)
		if !ok || err1 != nil || err2 != nil || lo > hi {
			return Token{}, fmt.Errorf("%w: %q has invalid bounds", ErrSyntax, text)
		}
	}

	return Float(lo, hi, sep), nil
}
