package state

import (
	"time"

	"alertstate/internal/domain"
	"alertstate/internal/evalerr"
)

// Transition derives next instance state from one evaluation result.
// Params: previous state, rule configuration (must not be nil), and evaluation result.
// Returns: new state value; prev and its maps are left untouched.
func (p Policy) Transition(prev State, rule *domain.AlertRule, result domain.Result) State {
	if rule == nil {
		panic("state: transition requires a non-nil alert rule")
	}
	p = p.normalized()

	next := prev.Copy()
	switch result.State {
	case domain.Normal:
		next.resultNormal(result)
	case domain.Alerting:
		next.resultAlerting(p, rule, result)
	case domain.Error:
		next.resultError(p, rule, result)
	case domain.NoData:
		next.resultNoData(p, rule, result)
	}
	next.Resolved = prev.State == domain.Alerting && next.State == domain.Normal
	return next
}

// Apply runs one evaluation cycle: bookkeeping, history append and trim, then Transition.
// Params: previous state, rule configuration (must not be nil), and evaluation result.
// Returns: new state value.
func (p Policy) Apply(prev State, rule *domain.AlertRule, result domain.Result) State {
	if rule == nil {
		panic("state: apply requires a non-nil alert rule")
	}
	next := prev.Copy()
	next.LastEvaluationTime = result.EvaluatedAt
	next.EvaluationDuration = result.EvaluationDuration
	next.Results = append(next.Results, Evaluation{
		EvaluationTime:   result.EvaluatedAt,
		EvaluationState:  result.State,
		EvaluationString: result.EvaluationString,
		Values:           NewEvaluationValues(result.Values),
	})
	next = p.TrimResults(next, rule)
	return p.Transition(next, rule, result)
}

// Transition applies DefaultPolicy transition.
func Transition(prev State, rule *domain.AlertRule, result domain.Result) State {
	return DefaultPolicy().Transition(prev, rule, result)
}

func (s *State) resultNormal(result domain.Result) {
	s.Error = result.Error

	if s.State != domain.Normal {
		s.EndsAt = result.EvaluatedAt
		s.StartsAt = result.EvaluatedAt
	}
	s.State = domain.Normal
}

func (s *State) resultAlerting(p Policy, rule *domain.AlertRule, result domain.Result) {
	s.Error = result.Error

	switch s.State {
	case domain.Alerting:
		s.setEndsAt(p, rule, result)
	case domain.Pending:
		if result.EvaluatedAt.Sub(s.StartsAt) > rule.For {
			s.State = domain.Alerting
			s.StartsAt = result.EvaluatedAt
			s.setEndsAt(p, rule, result)
		}
	default:
		s.StartsAt = result.EvaluatedAt
		s.setEndsAt(p, rule, result)
		if rule.For > 0 {
			s.State = domain.Pending
		} else {
			s.State = domain.Alerting
		}
	}
}

func (s *State) resultError(p Policy, rule *domain.AlertRule, result domain.Result) {
	s.Error = result.Error

	if s.StartsAt.IsZero() {
		s.StartsAt = result.EvaluatedAt
	}
	s.setEndsAt(p, rule, result)

	switch rule.ExecErrState {
	case domain.AlertingErrState:
		s.State = domain.Alerting
	case domain.ErrorErrState:
		s.State = domain.Error

		// Query failures carry the failing reference; expose its data source as labels
		// and the failure text as annotation.
		queryErr, ok := evalerr.AsQuery(s.Error)
		if !ok {
			return
		}
		if query, found := rule.Query(queryErr.RefID); found {
			s.Labels["ref_id"] = query.RefID
			s.Labels["datasource_uid"] = query.DatasourceUID
		}
		s.Annotations["Error"] = queryErr.Error()
	}
}

func (s *State) resultNoData(p Policy, rule *domain.AlertRule, result domain.Result) {
	s.Error = result.Error

	if s.StartsAt.IsZero() {
		s.StartsAt = result.EvaluatedAt
	}
	s.setEndsAt(p, rule, result)

	switch rule.NoDataState {
	case domain.NoDataAlerting:
		s.State = domain.Alerting
	case domain.NoDataNoData:
		s.State = domain.NoData
	case domain.NoDataOK:
		s.State = domain.Normal
	}
}

// setEndsAt sets the time until which the instance stays valid without new evaluations.
// Consumers auto-resolve after it; a resolved instance gets EndsAt equal to its last evaluation.
func (s *State) setEndsAt(p Policy, rule *domain.AlertRule, result domain.Result) {
	s.EndsAt = result.EvaluatedAt.Add(p.EndsAtWindow(rule))
}

// EndsAtWindow returns auto-resolve window: 3 × max(ResendDelay, rule interval).
// Params: rule configuration.
// Returns: window duration added to evaluation time.
func (p Policy) EndsAtWindow(rule *domain.AlertRule) time.Duration {
	p = p.normalized()
	ends := p.ResendDelay
	if interval := time.Duration(rule.IntervalSeconds) * time.Second; interval > ends {
		ends = interval
	}
	return ends * 3
}
