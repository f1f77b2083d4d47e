package domain

import (
	"fmt"
	"strings"
)

// EvalState is categorical alert instance status.
// Params: Normal is the zero value so a fresh instance starts Normal.
// Returns: state used by transitions, history, and notifications.
type EvalState int

const (
	// Normal indicates condition is not met.
	Normal EvalState = iota
	// Alerting indicates condition is met and firing.
	Alerting
	// Pending indicates condition is met but the For window has not elapsed.
	Pending
	// NoData indicates evaluation produced no series.
	NoData
	// Error indicates evaluation failed.
	Error
)

var evalStateNames = [...]string{
	Normal:   "Normal",
	Alerting: "Alerting",
	Pending:  "Pending",
	NoData:   "NoData",
	Error:    "Error",
}

// String returns canonical state name.
// Params: none.
// Returns: state name or Unknown(<n>) for out-of-range values.
func (s EvalState) String() string {
	if s < 0 || int(s) >= len(evalStateNames) {
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
	return evalStateNames[s]
}

// MarshalText encodes state as its canonical name.
func (s EvalState) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(evalStateNames) {
		return nil, fmt.Errorf("unsupported eval state %d", int(s))
	}
	return []byte(evalStateNames[s]), nil
}

// UnmarshalText decodes state name case-insensitively.
func (s *EvalState) UnmarshalText(text []byte) error {
	parsed, err := ParseEvalState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseEvalState converts textual state into EvalState.
// Params: state name, case-insensitive, surrounding spaces ignored.
// Returns: parsed state or error for unknown names.
func ParseEvalState(value string) (EvalState, error) {
	trimmed := strings.TrimSpace(value)
	for index, name := range evalStateNames {
		if strings.EqualFold(name, trimmed) {
			return EvalState(index), nil
		}
	}
	return Normal, fmt.Errorf("unsupported eval state %q", value)
}

// IsOutcome reports whether state can be produced by one evaluation.
// Params: none.
// Returns: false for Pending, which only the transition engine derives.
func (s EvalState) IsOutcome() bool {
	switch s {
	case Normal, Alerting, NoData, Error:
		return true
	default:
		return false
	}
}
