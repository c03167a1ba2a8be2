package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/arloliu/go-instrument/codec"
	"github.com/arloliu/go-instrument/pattern"
	"github.com/arloliu/go-instrument/recovery"
	"github.com/arloliu/go-instrument/transport"
)

var (
	// ErrUnknownClass is returned for a class name missing from the catalog.
	ErrUnknownClass = errors.New("catalog: unknown device class")
	// ErrUnknownAction is returned for an action the class does not define.
	ErrUnknownAction = errors.New("catalog: unknown action")
	// ErrParamRange is returned when a parameter is outside its declared range.
	ErrParamRange = errors.New("catalog: parameter out of range")
	// ErrInvalidClass is returned when a class definition cannot be compiled.
	ErrInvalidClass = errors.New("catalog: invalid class definition")
)

// Format selects the wire codec of a class.
type Format string

const (
	FormatASCII    Format = "ascii"
	FormatHexSum   Format = "hexsum"
	FormatSentence Format = "sentence"
	FormatStream   Format = "stream"
)

const (
	// DefaultTimeout is the max wait of commands that do not set one.
	DefaultTimeout = time.Second
	// DefaultMaxUnexpected is the number of consecutive unexpected answers
	// that starts recovery.
	DefaultMaxUnexpected = 3
)

// Recovery actions map to these action names of the class vocabulary.
const (
	ActionIdentify       = "identify"
	ActionStatus         = "status"
	ActionAlarms         = "alarms"
	ActionReset          = "reset"
	ActionResetSubdevice = "reset_subdevice"
	ActionPowerCycle     = "power_cycle"
)

// ParamRange bounds one numeric command parameter.
type ParamRange struct {
	Name string  `yaml:"name,omitempty"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// CommandDef describes one action of a class.
type CommandDef struct {
	// Template is the wire text after the class prefix, with {0}, {1}...
	// placeholders. For hexsum classes it is the command code.
	Template string `yaml:"template"`
	// Answer lists the accepted answer alternatives in pattern DSL form.
	// Empty means the plain success answer.
	Answer [][]string `yaml:"answer,omitempty"`
	// AnswerPrefix replaces the class prefix when matching the answer.
	AnswerPrefix string `yaml:"answer_prefix,omitempty"`
	// Timeout is the max wait for the answer.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Factor divides the first numeric answer field.
	Factor float64 `yaml:"factor,omitempty"`
	// Offset is added after Factor is applied.
	Offset float64      `yaml:"offset,omitempty"`
	Params []ParamRange `yaml:"params,omitempty"`
}

func (d CommandDef) clone() CommandDef {
	d.Answer = slices.Clone(d.Answer)
	d.Params = slices.Clone(d.Params)

	return d
}

// ClassDef is the declarative description of a device class.
type ClassDef struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix,omitempty"`
	Format Format `yaml:"format"`

	WriteTerminator string `yaml:"write_terminator,omitempty"`
	ReadTerminator  string `yaml:"read_terminator,omitempty"`

	// Bits and Scale configure hexsum classes.
	Bits  int     `yaml:"bits,omitempty"`
	Scale float64 `yaml:"scale,omitempty"`
	// Sentinel starts hexsum frames and ends stream blocks.
	Sentinel string `yaml:"sentinel,omitempty"`
	// Leader, Checksum and Types configure sentence classes.
	Leader   string   `yaml:"leader,omitempty"`
	Checksum string   `yaml:"checksum,omitempty"`
	Types    []string `yaml:"types,omitempty"`

	Commands      map[string]CommandDef `yaml:"commands,omitempty"`
	Errors        codec.ErrorTable      `yaml:"errors,omitempty"`
	Recovery      recovery.Plan         `yaml:"recovery,omitempty"`
	Flush         string                `yaml:"flush,omitempty"`
	MaxUnexpected int                   `yaml:"max_unexpected,omitempty"`
}

func (d ClassDef) clone() ClassDef {
	d.Types = slices.Clone(d.Types)
	d.Recovery = d.Recovery.Clone()
	d.Errors = codec.ErrorTable{}.Merge(d.Errors)

	cmds := make(map[string]CommandDef, len(d.Commands))
	for name, cmd := range d.Commands {
		cmds[name] = cmd.clone()
	}
	d.Commands = cmds

	return d
}

// merge overlays the non-zero fields of o onto d.
func (d ClassDef) merge(o ClassDef) ClassDef {
	out := d.clone()

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&out.Prefix, o.Prefix)
	setString(&out.WriteTerminator, o.WriteTerminator)
	setString(&out.ReadTerminator, o.ReadTerminator)
	setString(&out.Sentinel, o.Sentinel)
	setString(&out.Leader, o.Leader)
	setString(&out.Checksum, o.Checksum)
	setString(&out.Flush, o.Flush)

	if o.Format != "" {
		out.Format = o.Format
	}
	if o.Bits != 0 {
		out.Bits = o.Bits
	}
	if o.Scale != 0 {
		out.Scale = o.Scale
	}
	if len(o.Types) > 0 {
		out.Types = slices.Clone(o.Types)
	}
	if len(o.Recovery) > 0 {
		out.Recovery = o.Recovery.Clone()
	}
	if o.MaxUnexpected != 0 {
		out.MaxUnexpected = o.MaxUnexpected
	}
	out.Errors = out.Errors.Merge(o.Errors)

	for name, oc := range o.Commands {
		cur, ok := out.Commands[name]
		if !ok {
			out.Commands[name] = oc.clone()
			continue
		}

		setString(&cur.Template, oc.Template)
		setString(&cur.AnswerPrefix, oc.AnswerPrefix)
		if len(oc.Answer) > 0 {
			cur.Answer = slices.Clone(oc.Answer)
		}
		if oc.Timeout != 0 {
			cur.Timeout = oc.Timeout
		}
		if oc.Factor != 0 {
			cur.Factor = oc.Factor
		}
		if oc.Offset != 0 {
			cur.Offset = oc.Offset
		}
		if len(oc.Params) > 0 {
			cur.Params = slices.Clone(oc.Params)
		}
		out.Commands[name] = cur
	}

	return out
}

type command struct {
	def     CommandDef
	pattern *pattern.Pattern
}

// Class is a compiled, immutable class definition. It is safe for
// concurrent use.
type Class struct {
	def      ClassDef
	codec    codec.Codec
	commands map[string]command
	plan     recovery.Plan
	flush    transport.FlushPolicy
	hasFlush bool
}

// Compile validates def and builds its codec and answer patterns.
func Compile(def ClassDef) (*Class, error) {
	def = def.clone()
	if def.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidClass)
	}

	cls := &Class{def: def, commands: make(map[string]command, len(def.Commands))}

	c, err := buildCodec(def)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidClass, def.Name, err)
	}
	cls.codec = c

	for name, cmd := range def.Commands {
		var p *pattern.Pattern
		if len(cmd.Answer) > 0 {
			prefix := def.Prefix
			if cmd.AnswerPrefix != "" {
				prefix = cmd.AnswerPrefix
			}
			p, err = pattern.Parse(prefix, cmd.Answer)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidClass, def.Name, name, err)
			}
		}
		for _, r := range cmd.Params {
			if r.Min > r.Max {
				return nil, fmt.Errorf("%w: %s.%s: parameter %s has min %g > max %g", ErrInvalidClass, def.Name, name, r.Name, r.Min, r.Max)
			}
		}
		cls.commands[name] = command{def: cmd, pattern: p}
	}

	cls.plan = def.Recovery
	if len(cls.plan) == 0 {
		cls.plan = recovery.DefaultPlan()
	}
	if err := cls.plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidClass, def.Name, err)
	}

	if def.Flush != "" {
		cls.flush, err = transport.ParseFlushPolicy(def.Flush)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidClass, def.Name, err)
		}
		cls.hasFlush = true
	}

	if def.MaxUnexpected < 0 {
		return nil, fmt.Errorf("%w: %s: negative max_unexpected", ErrInvalidClass, def.Name)
	}

	return cls, nil
}

func buildCodec(def ClassDef) (codec.Codec, error) {
	switch def.Format {
	case FormatASCII, "":
		c := codec.NewASCII(def.Prefix, def.Errors)
		if def.WriteTerminator != "" {
			c.WriteTerminator = def.WriteTerminator
		}
		if def.ReadTerminator != "" {
			c.ReadTerminator = def.ReadTerminator
		}

		return c, nil
	case FormatHexSum:
		if def.Bits <= 0 || def.Bits%4 != 0 {
			return nil, fmt.Errorf("hexsum needs a bit width multiple of 4, got %d", def.Bits)
		}
		c := codec.NewHexSum(def.Bits, def.Scale)
		if def.Sentinel != "" {
			c.Sentinel = def.Sentinel
		}
		if def.WriteTerminator != "" {
			c.WriteTerminator = def.WriteTerminator
		}
		if def.ReadTerminator != "" {
			c.ReadTerminator = def.ReadTerminator
		}

		return c, nil
	case FormatSentence:
		c := codec.NewSentence(def.Types...)
		if def.Leader != "" {
			if len(def.Leader) != 1 {
				return nil, fmt.Errorf("sentence leader %q is not one character", def.Leader)
			}
			c.Leader = def.Leader[0]
		}
		switch def.Checksum {
		case "", "xor":
			c.Mode = codec.ChecksumXOR
		case "additive":
			c.Mode = codec.ChecksumAdditive
		default:
			return nil, fmt.Errorf("unknown sentence checksum %q", def.Checksum)
		}

		return c, nil
	case FormatStream:
		if def.Sentinel == "" {
			return nil, errors.New("stream class needs a sentinel")
		}

		return codec.NewStream(def.Sentinel), nil
	default:
		return nil, fmt.Errorf("unknown format %q", def.Format)
	}
}

// Name returns the class name.
func (c *Class) Name() string { return c.def.Name }

// Prefix returns the device-id prefix.
func (c *Class) Prefix() string { return c.def.Prefix }

// Format returns the wire format.
func (c *Class) Format() Format { return c.def.Format }

// Codec returns the class codec.
func (c *Class) Codec() codec.Codec { return c.codec }

// Streaming reports whether the class pushes blocks without being asked.
func (c *Class) Streaming() bool { return c.def.Format == FormatStream }

// Plan returns a copy of the recovery plan.
func (c *Class) Plan() recovery.Plan { return c.plan.Clone() }

// FlushPolicy returns the class flush policy, if it sets one.
func (c *Class) FlushPolicy() (transport.FlushPolicy, bool) { return c.flush, c.hasFlush }

// MaxUnexpected returns the recovery threshold, zero when unset.
func (c *Class) MaxUnexpected() int { return c.def.MaxUnexpected }

// Def returns a copy of the definition the class was compiled from.
func (c *Class) Def() ClassDef { return c.def.clone() }

// HasAction reports whether the class defines action.
func (c *Class) HasAction(action string) bool {
	_, ok := c.commands[action]
	return ok
}

// Actions returns the sorted action names.
func (c *Class) Actions() []string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Timeout returns the max wait of action.
func (c *Class) Timeout(action string) time.Duration {
	if cmd, ok := c.commands[action]; ok && cmd.def.Timeout > 0 {
		return cmd.def.Timeout
	}

	return DefaultTimeout
}

// Request builds the codec request of action after checking params against
// the declared ranges.
func (c *Class) Request(action string, params ...any) (codec.Request, error) {
	cmd, ok := c.commands[action]
	if !ok {
		return codec.Request{}, fmt.Errorf("%w: %s.%s", ErrUnknownAction, c.def.Name, action)
	}

	for i, r := range cmd.def.Params {
		if i >= len(params) {
			return codec.Request{}, fmt.Errorf("%w: %s.%s needs %d parameters, got %d", codec.ErrTemplate, c.def.Name, action, len(cmd.def.Params), len(params))
		}
		v, ok := number(params[i])
		if !ok {
			return codec.Request{}, fmt.Errorf("%w: %s.%s parameter %d (%v) is not numeric", ErrParamRange, c.def.Name, action, i, params[i])
		}
		if v < r.Min || v > r.Max {
			return codec.Request{}, fmt.Errorf("%w: %s.%s parameter %d is %v, want [%g, %g]", ErrParamRange, c.def.Name, action, i, params[i], r.Min, r.Max)
		}
	}

	return codec.Request{
		Class:   c.def.Name,
		Action:  action,
		Command: cmd.def.Template,
		Params:  params,
		Pattern: cmd.pattern,
		Factor:  cmd.def.Factor,
		Offset:  cmd.def.Offset,
	}, nil
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
