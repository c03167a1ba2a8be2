package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/units"
)

// ChecksumMode selects how sentence checksums are computed.
type ChecksumMode uint8

const (
	// ChecksumXOR is the NMEA 0183 XOR of all bytes between leader and '*'.
	ChecksumXOR ChecksumMode = iota
	// ChecksumAdditive is the sum of those bytes modulo 256.
	ChecksumAdditive
)

// ErrSentence is reported for malformed sentences.
var ErrSentence = errors.New("codec: malformed sentence")

// ParsedSentence is a decoded sentence.
type ParsedSentence struct {
	// Leader is '$' or '#'.
	Leader byte
	// Name is the first field, e.g. "GPGGA".
	Name string
	// Fields are the remaining comma-separated fields.
	Fields []string
}

// Type returns the sentence type, the last three characters of the name
// ("GGA" for "GPGGA").
func (s ParsedSentence) Type() string {
	if len(s.Name) <= 3 {
		return s.Name
	}

	return s.Name[len(s.Name)-3:]
}

// ParseSentence decodes "$NAME,f1,f2*HH" with the given checksum mode.
// Trailing CR/LF are ignored.
func ParseSentence(raw []byte, mode ChecksumMode) (ParsedSentence, error) {
	s := string(bytes.TrimRight(raw, "\r\n"))
	if len(s) < 2 || (s[0] != '$' && s[0] != '#') {
		return ParsedSentence{}, fmt.Errorf("%w: %q has no leader", ErrSentence, s)
	}

	star := strings.LastIndexByte(s, '*')
	if star < 0 || len(s)-star-1 != 2 {
		return ParsedSentence{}, fmt.Errorf("%w: %q has no checksum", ErrSentence, s)
	}

	body := s[1:star]
	want, err := strconv.ParseUint(s[star+1:], 16, 8)
	if err != nil {
		return ParsedSentence{}, fmt.Errorf("%w: %q has invalid checksum", ErrSentence, s)
	}
	if got := sentenceChecksum(body, mode); got != byte(want) {
		return ParsedSentence{}, fmt.Errorf("%w: sentence %q carries %02X, computed %02X", ErrChecksum, s, want, got)
	}

	parts := strings.Split(body, ",")

	return ParsedSentence{Leader: s[0], Name: parts[0], Fields: parts[1:]}, nil
}

// EncodeSentence builds leader + body + "*HH" + CRLF.
func EncodeSentence(leader byte, body string, mode ChecksumMode) []byte {
	return []byte(fmt.Sprintf("%c%s*%02X\r\n", leader, body, sentenceChecksum(body, mode)))
}

func sentenceChecksum(body string, mode ChecksumMode) byte {
	if mode == ChecksumAdditive {
		return units.ChecksumByte(body)
	}

	return units.XORChecksum(body)
}

type fieldKind uint8

const (
	fieldFloat fieldKind = iota
	fieldInt
	fieldText
	fieldLatitude
	fieldLongitude
)

type fieldDef struct {
	name string
	// index of the field after the sentence name
	pos  int
	kind fieldKind
}

// sentenceFields maps a sentence type to its fixed field positions.
// Latitude and longitude consume two fields: value and hemisphere.
var sentenceFields = map[string][]fieldDef{
	"GGA": {
		{"time", 0, fieldText},
		{"latitude", 1, fieldLatitude},
		{"longitude", 3, fieldLongitude},
		{"quality", 5, fieldInt},
		{"satellites", 6, fieldInt},
		{"hdop", 7, fieldFloat},
		{"altitude", 8, fieldFloat},
	},
	"HDT": {
		{"heading", 0, fieldFloat},
	},
	"ATT": {
		{"time", 0, fieldText},
		{"heading", 1, fieldFloat},
		{"pitch", 2, fieldFloat},
		{"roll", 3, fieldFloat},
	},
}

// SentenceValues extracts the named values of known sentence types. Empty
// fields are skipped. Unknown types yield an empty map.
func SentenceValues(s ParsedSentence) (map[string]any, error) {
	values := make(map[string]any)

	for _, fd := range sentenceFields[s.Type()] {
		if fd.pos >= len(s.Fields) || s.Fields[fd.pos] == "" {
			continue
		}
		field := s.Fields[fd.pos]

		switch fd.kind {
		case fieldText:
			values[fd.name] = field

		case fieldInt:
			n, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: %s field %q", ErrSentence, fd.name, field)
			}
			values[fd.name] = n

		case fieldFloat:
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s field %q", ErrSentence, fd.name, field)
			}
			values[fd.name] = f

		case fieldLatitude, fieldLongitude:
			if fd.pos+1 >= len(s.Fields) {
				return nil, fmt.Errorf("%w: %s without hemisphere", ErrSentence, fd.name)
			}
			deg, err := units.DegMinToDecimal(field, s.Fields[fd.pos+1])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrSentence, fd.name, err)
			}
			values[fd.name] = deg
		}
	}

	return values, nil
}

// Sentence is the NMEA-style sentence format.
type Sentence struct {
	Leader byte
	Mode   ChecksumMode
	// Types restricts accepted answers to these sentence types, all when empty.
	Types []string
}

var _ Codec = (*Sentence)(nil)

// NewSentence returns a '$' led XOR sentence codec accepting the given types.
func NewSentence(types ...string) *Sentence {
	return &Sentence{Leader: '$', Mode: ChecksumXOR, Types: types}
}

func (c *Sentence) Name() string { return "sentence" }

func (c *Sentence) Terminator() []byte { return []byte("\n") }

// Encode wraps the expanded command template into a sentence. An empty
// command is a listen-only request and is not supported.
func (c *Sentence) Encode(req Request) ([]byte, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("%w: sentence class %s has no question for %s", ErrUnsupported, req.Class, req.Action)
	}

	body, err := Expand(req.Command, req.Params)
	if err != nil {
		return nil, err
	}

	return EncodeSentence(c.Leader, body, c.Mode), nil
}

func (c *Sentence) Decode(req Request, raw []byte) (Result, error) {
	parseErr := func(err error) error {
		return &fault.CommandError{Kind: fault.ErrParse, Class: req.Class, Raw: append([]byte(nil), raw...), Err: err}
	}

	s, err := ParseSentence(raw, c.Mode)
	if err != nil {
		return Result{}, parseErr(err)
	}

	if len(c.Types) > 0 && !contains(c.Types, s.Type()) {
		return Result{}, parseErr(fmt.Errorf("%w: unexpected sentence type %s", ErrSentence, s.Type()))
	}

	values, err := SentenceValues(s)
	if err != nil {
		return Result{}, parseErr(err)
	}
	values["type"] = s.Type()

	res := Result{
		Class:  req.Class,
		Action: req.Action,
		Raw:    append([]byte(nil), raw...),
		Values: values,
	}
	if h, ok := values["heading"].(float64); ok {
		res.Value, res.HasValue = h, true
	}

	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
