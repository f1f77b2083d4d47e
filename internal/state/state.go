package state

import (
	"time"

	"alertstate/internal/domain"
)

// State is the current status of one alert instance.
// Params: identity triple (RuleUID, OrgID, CacheKey), categorical state, active window, and bookkeeping.
// Returns: value transformed once per evaluation cycle.
type State struct {
	RuleUID            string
	OrgID              int64
	CacheKey           string
	State              domain.EvalState
	Resolved           bool
	Results            []Evaluation
	StartsAt           time.Time
	EndsAt             time.Time
	LastEvaluationTime time.Time
	EvaluationDuration time.Duration
	LastSentAt         time.Time
	Annotations        domain.Labels
	Labels             domain.Labels
	Error              error
}

// Evaluation is one retained history entry.
// Values holds the captured number per expression reference; it is never mutated after creation.
type Evaluation struct {
	EvaluationTime   time.Time          `json:"time"`
	EvaluationState  domain.EvalState   `json:"state"`
	EvaluationString string             `json:"string,omitempty"`
	Values           map[string]*float64 `json:"values,omitempty"`
}

// NewEvaluationValues returns the value for each expression reference in the capture.
// Params: captures keyed by reference.
// Returns: reference to value map.
func NewEvaluationValues(m map[string]domain.NumberValueCapture) map[string]*float64 {
	result := make(map[string]*float64, len(m))
	for k, v := range m {
		result[k] = v.Value
	}
	return result
}

// Key returns instance identity.
func (s State) Key() InstanceKey {
	return InstanceKey{OrgID: s.OrgID, RuleUID: s.RuleUID, CacheKey: s.CacheKey}
}

// Copy returns state with detached labels, annotations, and history slice.
// Params: none.
// Returns: copy safe to mutate without affecting the source.
func (s State) Copy() State {
	out := s
	out.Labels = s.Labels.Copy()
	out.Annotations = s.Annotations.Copy()
	if s.Results != nil {
		out.Results = append(make([]Evaluation, 0, len(s.Results)), s.Results...)
	}
	return out
}

// NeedsSending reports whether instance must be (re-)announced.
// Params: minimum delay between repeated notifications.
// Returns: false for Pending and steady Normal; otherwise true once LastSentAt+resendDelay
// is at or before LastEvaluationTime.
func (s State) NeedsSending(resendDelay time.Duration) bool {
	if s.State == domain.Pending || s.State == domain.Normal && !s.Resolved {
		return false
	}
	nextSent := s.LastSentAt.Add(resendDelay)
	return !nextSent.After(s.LastEvaluationTime)
}

// Equals reports whether two snapshots are observably the same.
// Params: other snapshot.
// Returns: true when identity, rendered labels/state/annotations, and timestamps match.
func (s State) Equals(b State) bool {
	return s.RuleUID == b.RuleUID &&
		s.OrgID == b.OrgID &&
		s.CacheKey == b.CacheKey &&
		s.Labels.String() == b.Labels.String() &&
		s.State.String() == b.State.String() &&
		s.StartsAt.Equal(b.StartsAt) &&
		s.EndsAt.Equal(b.EndsAt) &&
		s.LastEvaluationTime.Equal(b.LastEvaluationTime) &&
		s.Annotations.String() == b.Annotations.String()
}

// Notification builds outbound payload for the notification pipeline.
func (s State) Notification() domain.Notification {
	out := domain.Notification{
		RuleUID:     s.RuleUID,
		OrgID:       s.OrgID,
		CacheKey:    s.CacheKey,
		State:       s.State.String(),
		Resolved:    s.Resolved,
		Labels:      s.Labels.Copy(),
		StartsAt:    s.StartsAt,
		EndsAt:      s.EndsAt,
		EvaluatedAt: s.LastEvaluationTime,
	}
	if len(s.Annotations) > 0 {
		out.Annotations = s.Annotations.Copy()
	}
	if s.Error != nil {
		out.Error = s.Error.Error()
	}
	return out
}
