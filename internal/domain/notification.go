package domain

import "time"

// Notification is the payload announced for an instance that needs sending.
// Params: instance identity, state, labels/annotations, and active window.
// Returns: body consumed by the notification pipeline.
type Notification struct {
	RuleUID     string            `json:"rule_uid"`
	OrgID       int64             `json:"org_id"`
	CacheKey    string            `json:"cache_key"`
	State       string            `json:"state"`
	Resolved    bool              `json:"resolved"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations,omitempty"`
	StartsAt    time.Time         `json:"starts_at"`
	EndsAt      time.Time         `json:"ends_at"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
	Error       string            `json:"error,omitempty"`
}
