package state

import (
	"time"

	"alertstate/internal/domain"
	"alertstate/internal/evalerr"
)

// Snapshot is persisted form of State.
// Params: all State fields with the error split into message and query reference.
// Returns: JSON document stored by Store implementations.
type Snapshot struct {
	RuleUID            string            `json:"rule_uid"`
	OrgID              int64             `json:"org_id"`
	CacheKey           string            `json:"cache_key"`
	State              domain.EvalState  `json:"state"`
	Resolved           bool              `json:"resolved,omitempty"`
	Results            []Evaluation      `json:"results,omitempty"`
	StartsAt           time.Time         `json:"starts_at"`
	EndsAt             time.Time         `json:"ends_at"`
	LastEvaluationTime time.Time         `json:"last_evaluation_time"`
	EvaluationDuration time.Duration     `json:"evaluation_duration"`
	LastSentAt         time.Time         `json:"last_sent_at"`
	Annotations        map[string]string `json:"annotations,omitempty"`
	Labels             map[string]string `json:"labels"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	ErrorRefID         string            `json:"error_ref_id,omitempty"`
}

// ToSnapshot converts state into persisted form.
func ToSnapshot(s State) Snapshot {
	message, refID := evalerr.Encode(s.Error)
	copied := s.Copy()
	return Snapshot{
		RuleUID:            s.RuleUID,
		OrgID:              s.OrgID,
		CacheKey:           s.CacheKey,
		State:              s.State,
		Resolved:           s.Resolved,
		Results:            copied.Results,
		StartsAt:           s.StartsAt,
		EndsAt:             s.EndsAt,
		LastEvaluationTime: s.LastEvaluationTime,
		EvaluationDuration: s.EvaluationDuration,
		LastSentAt:         s.LastSentAt,
		Annotations:        copied.Annotations,
		Labels:             copied.Labels,
		ErrorMessage:       message,
		ErrorRefID:         refID,
	}
}

// FromSnapshot converts persisted form back into state.
func FromSnapshot(snap Snapshot) State {
	return State{
		RuleUID:            snap.RuleUID,
		OrgID:              snap.OrgID,
		CacheKey:           snap.CacheKey,
		State:              snap.State,
		Resolved:           snap.Resolved,
		Results:            append([]Evaluation(nil), snap.Results...),
		StartsAt:           snap.StartsAt,
		EndsAt:             snap.EndsAt,
		LastEvaluationTime: snap.LastEvaluationTime,
		EvaluationDuration: snap.EvaluationDuration,
		LastSentAt:         snap.LastSentAt,
		Annotations:        domain.Labels(snap.Annotations).Copy(),
		Labels:             domain.Labels(snap.Labels).Copy(),
		Error:              evalerr.Decode(snap.ErrorMessage, snap.ErrorRefID),
	}
}
