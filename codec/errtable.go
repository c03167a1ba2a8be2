package codec

import "fmt"

// ErrorTable maps device error codes to messages.
type ErrorTable map[int]string

// Message returns the text for code.
func (t ErrorTable) Message(code int) string {
	if msg, ok := t[code]; ok {
		return msg
	}

	return fmt.Sprintf("unknown error code %d", code)
}

// Merge returns a copy of t overlaid with other.
func (t ErrorTable) Merge(other ErrorTable) ErrorTable {
	out := make(ErrorTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}

	return out
}
