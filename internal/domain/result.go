package domain

import "time"

// NumberValueCapture is numeric value captured for one expression reference.
// Params: reference name, series labels, and optional value (nil when absent or NaN-like).
// Returns: capture stored in evaluation history.
type NumberValueCapture struct {
	Var    string
	Labels Labels
	Value  *float64
}

// Result is one rule evaluation outcome for one label set.
// Params: instance labels, categorical outcome, timestamps, optional error, and captures.
// Returns: input of one state transition.
type Result struct {
	Instance           Labels
	State              EvalState
	Error              error
	EvaluatedAt        time.Time
	EvaluationDuration time.Duration
	EvaluationString   string
	Values             map[string]NumberValueCapture
}
