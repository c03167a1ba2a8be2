package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/pattern"
)

// ErrIncomplete is reported for a streaming block without its sentinel.
var ErrIncomplete = errors.New("codec: incomplete block")

// Stream is the format of instruments that push sentinel-terminated blocks
// without being asked. A line led by a name is a "key value" pair; any
// other line holds one or more whitespace-separated bare values.
type Stream struct {
	Sentinel string
}

var _ Codec = (*Stream)(nil)

// NewStream returns a Stream codec terminated by sentinel.
func NewStream(sentinel string) *Stream {
	return &Stream{Sentinel: sentinel}
}

func (c *Stream) Name() string { return "stream" }

func (c *Stream) Terminator() []byte { return []byte(c.Sentinel) }

// Encode is supported only for classes with a command template; it writes
// the expanded template followed by CRLF.
func (c *Stream) Encode(req Request) ([]byte, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("%w: stream class %s does not take questions", ErrUnsupported, req.Class)
	}

	cmd, err := Expand(req.Command, req.Params)
	if err != nil {
		return nil, err
	}

	return []byte(cmd + "\r\n"), nil
}

func (c *Stream) Decode(req Request, raw []byte) (Result, error) {
	block, err := DecodeStream(raw, c.Sentinel)
	if err != nil {
		return Result{}, &fault.CommandError{Kind: fault.ErrParse, Class: req.Class, Raw: append([]byte(nil), raw...), Err: err}
	}

	return Result{
		Class:  req.Class,
		Action: req.Action,
		Raw:    append([]byte(nil), raw...),
		Fields: block.Bare,
		Values: block.Values,
	}, nil
}

// Block is a decoded streaming block.
type Block struct {
	// Values holds "key value" pairs; numeric values are float64.
	Values map[string]any
	// Bare holds the values of unnamed lines, in order.
	Bare []pattern.Field
}

// DecodeStream decodes one block. The block ends at the first occurrence
// of sentinel; bytes after it are ignored. A block without sentinel is
// incomplete and reported as an error.
func DecodeStream(raw []byte, sentinel string) (Block, error) {
	end := bytes.Index(raw, []byte(sentinel))
	if sentinel == "" || end < 0 {
		return Block{}, fmt.Errorf("%w: missing sentinel %q", ErrIncomplete, sentinel)
	}

	block := Block{Values: make(map[string]any)}

	sc := bufio.NewScanner(bytes.NewReader(raw[:end]))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		switch {
		case len(fields) == 0:
			continue
		case len(fields) == 1 || isNumeric(fields[0]):
			for _, f := range fields {
				block.Bare = append(block.Bare, streamField(f))
			}
		default:
			block.Values[fields[0]] = streamValue(strings.Join(fields[1:], " "))
		}
	}
	if err := sc.Err(); err != nil {
		return Block{}, err
	}

	return block, nil
}

// isNumeric reports whether s is a decimal number. Names such as "Inf"
// or "NaN" are not numbers here.
func isNumeric(s string) bool {
	if s == "" || !strings.ContainsRune("+-.0123456789", rune(s[0])) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)

	return err == nil
}

func streamValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	return s
}

func streamField(s string) pattern.Field {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return pattern.Field{Kind: pattern.KindInt, Int: n, Text: s}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return pattern.Field{Kind: pattern.KindFloat, Float: f, Text: s}
	}

	return pattern.Field{Kind: pattern.KindMatch, Text: s}
}
