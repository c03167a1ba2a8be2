package catalog

import (
	"time"

	"github.com/arloliu/go-instrument/codec"
	"github.com/arloliu/go-instrument/recovery"
)

// ActionBlock is the action of streaming classes that reads one block.
const ActionBlock = "block"

// Head sensor family classes. They share one serial port behind the head
// sensor board.
var HeadSensorClasses = []string{"HT", "F1", "F2", "FW", "TR", "SB", "MA", "MZ", "MB", "S1", "S2"}

// Shadowband geometry and limits.
const (
	ShadowbandResolution = 0.36
	ShadowbandRatio      = 0.5
	ShadowbandMinSteps   = -1000
	ShadowbandMaxSteps   = 1000
)

// Filter wheel positions.
const (
	FilterWheelMinPosition = 1
	FilterWheelMaxPosition = 9
)

var (
	queryAnswer   = [][]string{{"!", "%d"}}
	positionAns   = [][]string{{"0"}, {"h", "%d", ",", "%d"}}
	hexQueryAns   = [][]string{{"!", "%x4"}}
	versionAnswer = [][]string{{"%s^"}}
)

// HeadSensorErrors is the firmware error table of the head sensor family.
func HeadSensorErrors() codec.ErrorTable {
	return codec.ErrorTable{
		1: "unknown command",
		2: "invalid parameter",
		3: "parameter out of range",
		4: "motor did not reach target position",
		5: "limit switch reached",
		6: "no answer from subdevice",
		7: "device busy",
		8: "home position not found",
		9: "hardware fault",
	}
}

func query(template string) CommandDef {
	return CommandDef{Template: template, Answer: queryAnswer}
}

func scaledQuery(template string, factor float64, timeout time.Duration) CommandDef {
	return CommandDef{Template: template, Answer: queryAnswer, Factor: factor, Timeout: timeout}
}

func ack(template string) CommandDef {
	return CommandDef{Template: template}
}

func ackTimeout(template string, timeout time.Duration) CommandDef {
	return CommandDef{Template: template, Timeout: timeout}
}

func ranged(template string, ranges ...ParamRange) CommandDef {
	return CommandDef{Template: template, Params: ranges}
}

func headClass(prefix string, cmds map[string]CommandDef) ClassDef {
	return ClassDef{
		Name:     prefix,
		Prefix:   prefix,
		Format:   FormatASCII,
		Commands: cmds,
		Errors:   HeadSensorErrors(),
		Flush:    "read-then-reset",
	}
}

func filterWheel(prefix string) ClassDef {
	return headClass(prefix, map[string]CommandDef{
		"set_position":        ranged("{0}", ParamRange{Name: "position", Min: FilterWheelMinPosition, Max: FilterWheelMaxPosition}),
		"move_forward":        ack("f"),
		"move_backward":       ack("b"),
		"move_forward_steps":  ranged("F{0}", ParamRange{Name: "steps", Min: 0, Max: 10000}),
		"move_backward_steps": ranged("B{0}", ParamRange{Name: "steps", Min: 0, Max: 10000}),
		"move_to_mirror":      ack("M"),
		"save_offset":         ack("o"),
		"get_offset":          query("o?"),
		"set_offset":          ack("o{0}"),
		ActionReset:           ackTimeout("r", 10*time.Second),
	})
}

func motor(prefix string) ClassDef {
	return headClass(prefix, map[string]CommandDef{
		"set_direction_ccw": ack("1"),
		"set_direction_cw":  ack("2"),
		"reset_alarm":       ack("a"),
		ActionAlarms:        query("a?"),
		"configure":         ack("c"),
		"set_defaults":      ack("d"),
		"get_driver_temp":   scaledQuery("d?", 10, 0),
		"get_motor_temp":    scaledQuery("m?", 10, 0),
		"save_to_memory":    ack("m"),
		"set_home_position": ack("h"),
		"get_position":      query("p?"),
		ActionStatus:        query("p?"),
	})
}

func spectrometerRelay(prefix string) ClassDef {
	return headClass(prefix, map[string]CommandDef{
		ActionPowerCycle: ackTimeout("s", 10*time.Second),
		"get_relay":      query("S?"),
		"set_relay":      ranged("S{0}", ParamRange{Name: "state", Min: 0, Max: 1}),
	})
}

// TrackerPlan is the recovery ladder of the tracker, which needs a long
// settle after a reset.
func TrackerPlan() recovery.Plan {
	return recovery.Plan{
		{Action: recovery.ActionRetryCommand, Retries: 2},
		{Action: recovery.ActionWait, Retries: 1, Settle: time.Second},
		{Action: recovery.ActionCheckCommunication, Retries: 1},
		{Action: recovery.ActionSoftReset, Retries: 1, Settle: 10 * time.Second},
		{Action: recovery.ActionQueryStatus, Retries: 1},
		{Action: recovery.ActionPowerCycle, Retries: 1, Settle: 30 * time.Second},
		{Action: recovery.ActionReopenPort, Retries: 1, Settle: time.Second},
		{Action: recovery.ActionAbort},
	}
}

// MotorPlan clears driver alarms before resetting.
func MotorPlan() recovery.Plan {
	return recovery.Plan{
		{Action: recovery.ActionRetryCommand, Retries: 2},
		{Action: recovery.ActionCheckAlarms, Retries: 1},
		{Action: recovery.ActionResetSubdevice, Retries: 1, Settle: 2 * time.Second},
		{Action: recovery.ActionReopenPort, Retries: 1, Settle: time.Second},
		{Action: recovery.ActionAbort},
	}
}

// BuiltinDefs returns the definitions of the built-in classes.
func BuiltinDefs() []ClassDef {
	ht := headClass("HT", map[string]CommandDef{
		"get_version":           {Template: "v?", AnswerPrefix: "V", Answer: versionAnswer},
		ActionIdentify:          query("I?"),
		"set_head_id":           ranged("I{0}", ParamRange{Name: "id", Min: 0, Max: 9999}),
		"get_temperature":       scaledQuery("t?", 100, 5*time.Second),
		"get_humidity":          scaledQuery("h?", 1024, 5*time.Second),
		"get_pressure":          scaledQuery("p?", 100, 5*time.Second),
		"get_tracker_baudrate":  query("bt?"),
		"get_sensor_baudrate":   query("bs?"),
		"set_sensor_baudrate":   ranged("bs{0}", ParamRange{Name: "baud", Min: 4800, Max: 128000}),
		"find_tracker_baudrate": ackTimeout("bm", 5*time.Second),
		ActionReset:             ackTimeout("r", 5*time.Second),
	})

	tr := headClass("TR", map[string]CommandDef{
		"power_off": ack("0"),
		"power_on":  ack("1"),
		"move_to": {
			Template: "b{0},{1}",
			Timeout:  30 * time.Second,
			Params:   []ParamRange{{Name: "azimuth", Min: -1e6, Max: 1e6}, {Name: "zenith", Min: -1e6, Max: 1e6}},
		},
		"move_pan":           {Template: "p{0}", Timeout: 30 * time.Second},
		"move_tilt":          {Template: "t{0}", Timeout: 30 * time.Second},
		"get_position":       {Template: "w", Answer: positionAns},
		ActionStatus:         {Template: "w", Answer: positionAns},
		"get_power_delay":    query("d?"),
		"set_power_delay":    ack("d{0}"),
		ActionReset:          ackTimeout("r", 60*time.Second),
		ActionPowerCycle:     ackTimeout("s", 30*time.Second),
		"configure_oriental": ackTimeout("o", 5*time.Second),
	})
	tr.Recovery = TrackerPlan()

	fw := headClass("FW", map[string]CommandDef{
		"get_steps_per_position": query("n?"),
		"set_steps_per_position": ack("n{0}"),
		"get_speed":              query("s?"),
		"set_speed":              ack("s{0}"),
	})

	sb := headClass("SB", map[string]CommandDef{
		"move_to":        ranged("m{0}", ParamRange{Name: "steps", Min: ShadowbandMinSteps, Max: ShadowbandMaxSteps}),
		ActionReset:      ackTimeout("r", 10*time.Second),
		ActionPowerCycle: ackTimeout("s", 10*time.Second),
	})

	ma, mz := motor("MA"), motor("MZ")
	ma.Recovery, mz.Recovery = MotorPlan(), MotorPlan()

	mb := headClass("MB", map[string]CommandDef{
		"get_motor_current": query("c?"),
		"set_motor_current": ack("c{0}"),
		"get_motor_speed":   query("s?"),
		"set_motor_speed":   ack("s{0}"),
		"get_acceleration":  query("a?"),
		"set_acceleration":  ack("a{0}"),
		"get_deceleration":  query("d?"),
		"set_deceleration":  ack("d{0}"),
		"set_home_position": ack("h"),
	})

	return []ClassDef{
		ht, filterWheel("F1"), filterWheel("F2"), fw, tr, sb, ma, mz, mb,
		spectrometerRelay("S1"), spectrometerRelay("S2"),
		tetech("TETECH1", 16, 10),
		tetech("TETECH2", 32, 100),
		{
			Name:   "HDC",
			Prefix: "HD",
			Format: FormatASCII,
			Commands: map[string]CommandDef{
				"read_temperature": {Template: "t?", Answer: hexQueryAns, Factor: 65536.0 / 165, Offset: -40},
				"read_humidity":    {Template: "h?", Answer: hexQueryAns, Factor: 655.36},
				ActionIdentify:     {Template: "i?", Answer: hexQueryAns},
				ActionReset:        ackTimeout("r", time.Second),
			},
		},
		{
			Name:   "GPS",
			Format: FormatSentence,
			Leader: "$",
			Types:  []string{"GGA"},
			Commands: map[string]CommandDef{
				"read_position": {Template: "PSRF103,00,01,00,01", Timeout: 2 * time.Second},
			},
			Flush: "reset-only",
		},
		{
			Name:     "NOVATEL",
			Format:   FormatSentence,
			Leader:   "#",
			Checksum: "additive",
			Types:    []string{"GGA", "HDT", "ATT"},
			Commands: map[string]CommandDef{
				"read_position":    {Template: "LOG,GPGGA,ONCE", Timeout: 2 * time.Second},
				"read_heading":     {Template: "LOG,GPHDT,ONCE", Timeout: 2 * time.Second},
				"read_orientation": {Template: "LOG,INSATT,ONCE", Timeout: 2 * time.Second},
			},
		},
		{
			Name:     "LOGGER",
			Format:   FormatStream,
			Sentinel: "END",
			Commands: map[string]CommandDef{
				ActionBlock: {Timeout: 5 * time.Second},
			},
			Flush: "none",
			Recovery: recovery.Plan{
				{Action: recovery.ActionWait, Retries: 2, Settle: time.Second},
				{Action: recovery.ActionReopenPort, Retries: 1, Settle: time.Second},
				{Action: recovery.ActionAbort},
			},
		},
	}
}

// tetech describes a TETech temperature controller; the two generations
// differ in frame width and scale.
func tetech(name string, bits int, scale float64) ClassDef {
	return ClassDef{
		Name:   name,
		Format: FormatHexSum,
		Bits:   bits,
		Scale:  scale,
		Commands: map[string]CommandDef{
			"read_temperature": {Template: "01"},
			"read_setpoint":    {Template: "03"},
			"set_temperature":  ranged("1c", ParamRange{Name: "celsius", Min: -20, Max: 100}),
			ActionStatus:       {Template: "01"},
		},
		Flush: "reset-only",
	}
}
