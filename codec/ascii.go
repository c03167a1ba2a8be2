package codec

import (
	"bytes"
	"strconv"

	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/pattern"
)

const (
	DefaultWriteTerminator = "\r"
	DefaultReadTerminator  = "\n"
)

// ASCII is the plain question/answer format: the question is
// prefix + command + terminator, a success answer is prefix + "0" and an
// error answer is prefix + a nonzero code.
type ASCII struct {
	Prefix          string
	WriteTerminator string
	ReadTerminator  string
	Errors          ErrorTable
}

var _ Codec = (*ASCII)(nil)

// NewASCII returns an ASCII codec with the default terminators.
func NewASCII(prefix string, errs ErrorTable) *ASCII {
	return &ASCII{
		Prefix:          prefix,
		WriteTerminator: DefaultWriteTerminator,
		ReadTerminator:  DefaultReadTerminator,
		Errors:          errs,
	}
}

func (c *ASCII) Name() string { return "ascii" }

func (c *ASCII) Terminator() []byte { return []byte(c.ReadTerminator) }

func (c *ASCII) Encode(req Request) ([]byte, error) {
	return EncodeASCII(c.Prefix, req.Command, req.Params, c.WriteTerminator)
}

func (c *ASCII) Decode(req Request, raw []byte) (Result, error) {
	m, err := DecodeASCII(c.Prefix, req.Pattern, c.Errors, raw)
	if err != nil {
		if cmdErr, ok := fault.AsCommandError(err); ok {
			cmdErr.Class = req.Class
		}
		return Result{}, err
	}

	return newResult(req, raw, m), nil
}

// EncodeASCII builds prefix + expanded template + terminator.
func EncodeASCII(prefix, template string, params []any, terminator string) ([]byte, error) {
	cmd, err := Expand(template, params)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(prefix)+len(cmd)+len(terminator))
	buf = append(buf, prefix...)
	buf = append(buf, cmd...)
	buf = append(buf, terminator...)

	return buf, nil
}

// DecodeASCII validates raw against p. A nil pattern accepts only the
// success answer prefix + "0". An answer that fails the pattern but reads
// prefix + nonzero code is reported as a device error with the message
// from errs; any other mismatch is the pattern's parse error.
func DecodeASCII(prefix string, p *pattern.Pattern, errs ErrorTable, raw []byte) (pattern.Result, error) {
	if p == nil {
		p = SuccessPattern(prefix)
	}

	m, matchErr := p.Match(raw)
	if matchErr == nil {
		return m, nil
	}

	if code, ok := errorCode(prefix, raw); ok && code != 0 {
		return pattern.Result{}, &fault.CommandError{
			Kind:    fault.ErrDevice,
			Raw:     append([]byte(nil), raw...),
			Pattern: p.String(),
			Code:    code,
			Message: errs.Message(code),
		}
	}

	return pattern.Result{}, matchErr
}

// SuccessPattern is the answer of commands that only acknowledge.
func SuccessPattern(prefix string) *pattern.Pattern {
	return pattern.New(prefix, []pattern.Token{pattern.Literal("0")})
}

func errorCode(prefix string, raw []byte) (int, bool) {
	in := bytes.TrimRight(raw, "\r\n")
	if !bytes.HasPrefix(in, []byte(prefix)) {
		return 0, false
	}

	rest := in[len(prefix):]
	if len(rest) == 0 || len(rest) > 3 {
		return 0, false
	}
	for _, b := range rest {
		if b < '0' || b > '9' {
			return 0, false
		}
	}

	code, err := strconv.Atoi(string(rest))

	return code, err == nil
}
