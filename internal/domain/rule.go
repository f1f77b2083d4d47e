package domain

import (
	"errors"
	"time"
)

// ExecErrState selects categorical state for evaluation errors.
type ExecErrState string

const (
	// AlertingErrState treats evaluation errors as firing alerts.
	AlertingErrState ExecErrState = "Alerting"
	// ErrorErrState keeps evaluation errors in dedicated Error state.
	ErrorErrState ExecErrState = "Error"
)

// NoDataState selects categorical state for evaluations without data.
type NoDataState string

const (
	// NoDataAlerting treats missing data as firing alert.
	NoDataAlerting NoDataState = "Alerting"
	// NoDataNoData keeps missing data in dedicated NoData state.
	NoDataNoData NoDataState = "NoData"
	// NoDataOK treats missing data as Normal.
	NoDataOK NoDataState = "OK"
)

// Reserved labels attached to every instance.
const (
	AlertNameLabel = "alertname"
	RuleUIDLabel   = "__alert_rule_uid__"
)

// AlertQuery is one expression definition of a rule.
// Params: expression reference and data source identifier.
// Returns: lookup entry for query error enrichment.
type AlertQuery struct {
	RefID         string
	DatasourceUID string
}

// AlertRule is the rule configuration consumed by transitions.
// Params: identity, For hysteresis, evaluation cadence, error/no-data policies, and queries.
// Returns: immutable rule snapshot passed to state operations.
type AlertRule struct {
	UID             string
	OrgID           int64
	Title           string
	For             time.Duration
	IntervalSeconds int64
	ExecErrState    ExecErrState
	NoDataState     NoDataState
	Data            []AlertQuery
	Labels          Labels
	Annotations     Labels
}

// Query returns expression definition by reference.
// Params: expression reference ID.
// Returns: query and existence flag.
func (r *AlertRule) Query(refID string) (AlertQuery, bool) {
	for _, query := range r.Data {
		if query.RefID == refID {
			return query, true
		}
	}
	return AlertQuery{}, false
}

// ErrUnknownRule reports a result whose rule is not configured.
var ErrUnknownRule = errors.New("unknown alert rule")
