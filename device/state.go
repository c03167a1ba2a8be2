package device

// LowState is the transport-level state of a device.
type LowState uint8

const (
	// LowFree means no exchange is in progress.
	LowFree LowState = iota
	// LowLevelOnly means a recovery action is talking to the device outside
	// a high-level command.
	LowLevelOnly
	// LowBusy means a question was sent and the answer is pending.
	LowBusy
	// LowAnswerReceived means a terminated answer is being validated.
	LowAnswerReceived
	// LowLost means the recovery ladder was exhausted; Reconnect is required.
	LowLost
	// LowError means the transport failed and could not be reopened.
	LowError
	// LowNotFromQA means the device is pushing data that was not asked for.
	LowNotFromQA
)

func (s LowState) String() string {
	switch s {
	case LowFree:
		return "free"
	case LowLevelOnly:
		return "low-level-only"
	case LowBusy:
		return "busy"
	case LowAnswerReceived:
		return "answer-received"
	case LowLost:
		return "lost"
	case LowError:
		return "error"
	case LowNotFromQA:
		return "not-from-qa"
	default:
		return "unknown"
	}
}

// IsExceptional reports whether s is Lost, Error or NotFromQA.
func (s LowState) IsExceptional() bool {
	return s == LowLost || s == LowError || s == LowNotFromQA
}

// HighState is the command-level state of a device.
type HighState uint8

const (
	// HighIdle accepts a new command.
	HighIdle HighState = iota
	// HighToInitiate means a command was accepted and waits for the session.
	HighToInitiate
	// HighChecking means the question is being sent.
	HighChecking
	// HighWaiting means the device waits for answer bytes.
	HighWaiting
)

func (s HighState) String() string {
	switch s {
	case HighIdle:
		return "idle"
	case HighToInitiate:
		return "to-initiate"
	case HighChecking:
		return "checking"
	case HighWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}
