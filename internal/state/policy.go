package state

import "time"

const (
	// ResendDelay is the default minimum delay between repeated notifications.
	// It is also the lower bound of the auto-resolve window base.
	ResendDelay = 30 * time.Second
	// HistoryMultiplier scales the number of evaluations that fit in For.
	HistoryMultiplier = 2
	// HistoryFloor is the retained history size when the computed capacity is not positive.
	HistoryFloor = 10
)

// Policy carries the tunable constants of the state machine.
// Params: resend delay used for the EndsAt window and history sizing constants.
// Returns: value receiver for Transition, Apply, and TrimResults.
type Policy struct {
	ResendDelay       time.Duration
	HistoryMultiplier int64
	HistoryFloor      int64
}

// DefaultPolicy returns policy with compatibility constants.
func DefaultPolicy() Policy {
	return Policy{
		ResendDelay:       ResendDelay,
		HistoryMultiplier: HistoryMultiplier,
		HistoryFloor:      HistoryFloor,
	}
}

func (p Policy) normalized() Policy {
	if p.ResendDelay <= 0 {
		p.ResendDelay = ResendDelay
	}
	if p.HistoryMultiplier <= 0 {
		p.HistoryMultiplier = HistoryMultiplier
	}
	if p.HistoryFloor <= 0 {
		p.HistoryFloor = HistoryFloor
	}
	return p
}
