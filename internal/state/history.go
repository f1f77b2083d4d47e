package state

import "alertstate/internal/domain"

// HistoryCapacity returns number of evaluations retained per instance.
// Params: rule configuration with For and IntervalSeconds.
// Returns: multiplier × (For seconds / interval), or the floor when that is not positive.
func (p Policy) HistoryCapacity(rule *domain.AlertRule) int {
	p = p.normalized()
	var buckets int64
	if rule.IntervalSeconds > 0 {
		buckets = p.HistoryMultiplier * (int64(rule.For.Seconds()) / rule.IntervalSeconds)
	}
	if buckets <= 0 {
		buckets = p.HistoryFloor
	}
	return int(buckets)
}

// TrimResults keeps only the most recent evaluations that fit the history capacity.
// Params: state and rule configuration (must not be nil).
// Returns: state with bounded history in original order.
func (p Policy) TrimResults(s State, rule *domain.AlertRule) State {
	if rule == nil {
		panic("state: trim requires a non-nil alert rule")
	}
	capacity := p.HistoryCapacity(rule)
	if len(s.Results) < capacity {
		return s
	}
	trimmed := make([]Evaluation, capacity)
	copy(trimmed, s.Results[len(s.Results)-capacity:])
	s.Results = trimmed
	return s
}
