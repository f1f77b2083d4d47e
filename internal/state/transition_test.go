package state

import (
	"errors"
	"testing"
	"time"

	"alertstate/internal/domain"
	"alertstate/internal/evalerr"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRule(forDuration time.Duration, intervalSec int64) *domain.AlertRule {
	return &domain.AlertRule{
		UID:             "cpu-high",
		OrgID:           1,
		Title:           "CPU high",
		For:             forDuration,
		IntervalSeconds: intervalSec,
		ExecErrState:    domain.ErrorErrState,
		NoDataState:     domain.NoDataNoData,
		Data:            []domain.AlertQuery{{RefID: "A", DatasourceUID: "ds1"}},
	}
}

func result(outcome domain.EvalState, at time.Time) domain.Result {
	return domain.Result{State: outcome, EvaluatedAt: at}
}

func TestAlertingStaysPendingUntilForStrictlyElapsed(t *testing.T) {
	t.Parallel()

	rule := testRule(time.Minute, 10)
	var current State
	for step := 0; step <= 6; step++ {
		at := baseTime.Add(time.Duration(step) * 10 * time.Second)
		current = Transition(current, rule, result(domain.Alerting, at))
		if current.State != domain.Pending {
			t.Fatalf("step %d: expected Pending, got %s", step, current.State)
		}
		if !current.StartsAt.Equal(baseTime) {
			t.Fatalf("step %d: StartsAt moved to %v", step, current.StartsAt)
		}
	}

	promotedAt := baseTime.Add(70 * time.Second)
	current = Transition(current, rule, result(domain.Alerting, promotedAt))
	if current.State != domain.Alerting {
		t.Fatalf("expected Alerting after For elapsed, got %s", current.State)
	}
	if !current.StartsAt.Equal(promotedAt) {
		t.Fatalf("expected StartsAt reset to promotion time, got %v", current.StartsAt)
	}

	later := promotedAt.Add(10 * time.Second)
	current = Transition(current, rule, result(domain.Alerting, later))
	if current.State != domain.Alerting || !current.StartsAt.Equal(promotedAt) {
		t.Fatalf("expected firing run to continue, got %s starts=%v", current.State, current.StartsAt)
	}
	if want := later.Add(90 * time.Second); !current.EndsAt.Equal(want) {
		t.Fatalf("expected EndsAt %v, got %v", want, current.EndsAt)
	}
}

func TestAlertingWithZeroForFiresImmediately(t *testing.T) {
	t.Parallel()

	next := Transition(State{}, testRule(0, 10), result(domain.Alerting, baseTime))
	if next.State != domain.Alerting {
		t.Fatalf("expected Alerting, got %s", next.State)
	}
	if !next.StartsAt.Equal(baseTime) {
		t.Fatalf("unexpected StartsAt %v", next.StartsAt)
	}
}

func TestNormalAfterFiringResetsWindowAndResolves(t *testing.T) {
	t.Parallel()

	rule := testRule(0, 10)
	firing := Transition(State{}, rule, result(domain.Alerting, baseTime))
	at := baseTime.Add(time.Minute)
	normal := Transition(firing, rule, result(domain.Normal, at))

	if normal.State != domain.Normal {
		t.Fatalf("expected Normal, got %s", normal.State)
	}
	if !normal.StartsAt.Equal(at) || !normal.EndsAt.Equal(at) {
		t.Fatalf("expected StartsAt=EndsAt=%v, got %v/%v", at, normal.StartsAt, normal.EndsAt)
	}
	if !normal.Resolved {
		t.Fatalf("expected Resolved after leaving Alerting")
	}

	again := Transition(normal, rule, result(domain.Normal, at.Add(time.Minute)))
	if again.Resolved {
		t.Fatalf("Resolved must be one-shot")
	}
	if !again.StartsAt.Equal(at) {
		t.Fatalf("steady Normal must keep StartsAt, got %v", again.StartsAt)
	}
}

func TestNormalOnFreshInstanceKeepsZeroWindow(t *testing.T) {
	t.Parallel()

	next := Transition(State{}, testRule(0, 10), result(domain.Normal, baseTime))
	if !next.StartsAt.IsZero() || !next.EndsAt.IsZero() {
		t.Fatalf("fresh instance is already Normal, got %v/%v", next.StartsAt, next.EndsAt)
	}
}

func TestEndsAtUsesLargerOfResendDelayAndInterval(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		intervalSec int64
		outcome     domain.EvalState
		want        time.Duration
	}{
		{name: "resend delay wins", intervalSec: 10, outcome: domain.Alerting, want: 90 * time.Second},
		{name: "interval wins", intervalSec: 60, outcome: domain.Alerting, want: 180 * time.Second},
		{name: "error branch", intervalSec: 60, outcome: domain.Error, want: 180 * time.Second},
		{name: "nodata branch", intervalSec: 5, outcome: domain.NoData, want: 90 * time.Second},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			next := Transition(State{}, testRule(0, tc.intervalSec), result(tc.outcome, baseTime))
			if want := baseTime.Add(tc.want); !next.EndsAt.Equal(want) {
				t.Fatalf("expected EndsAt %v, got %v", want, next.EndsAt)
			}
		})
	}
}

func TestPolicyResendDelayDrivesEndsAt(t *testing.T) {
	t.Parallel()

	policy := Policy{ResendDelay: time.Minute}
	next := policy.Transition(State{}, testRule(0, 10), result(domain.Alerting, baseTime))
	if want := baseTime.Add(3 * time.Minute); !next.EndsAt.Equal(want) {
		t.Fatalf("expected EndsAt %v, got %v", want, next.EndsAt)
	}
}

func TestErrorBranchEnrichesLabelsFromQueryError(t *testing.T) {
	t.Parallel()

	rule := testRule(0, 10)
	queryErr := evalerr.QueryError{RefID: "A", Err: errors.New("upstream timeout")}
	prev := State{Labels: domain.Labels{"host": "a"}, Annotations: domain.Labels{}}
	res := domain.Result{State: domain.Error, EvaluatedAt: baseTime, Error: queryErr}

	next := Transition(prev, rule, res)
	if next.State != domain.Error {
		t.Fatalf("expected Error state, got %s", next.State)
	}
	if next.Labels["ref_id"] != "A" || next.Labels["datasource_uid"] != "ds1" {
		t.Fatalf("unexpected labels %v", next.Labels)
	}
	if next.Annotations["Error"] != queryErr.Error() {
		t.Fatalf("unexpected error annotation %q", next.Annotations["Error"])
	}
	if _, ok := prev.Labels["ref_id"]; ok {
		t.Fatalf("previous state labels must not be mutated")
	}
	if !next.StartsAt.Equal(baseTime) {
		t.Fatalf("expected StartsAt set from zero, got %v", next.StartsAt)
	}
}

func TestErrorBranchUnknownRefSkipsLabels(t *testing.T) {
	t.Parallel()

	res := domain.Result{State: domain.Error, EvaluatedAt: baseTime, Error: evalerr.Query("Z", errors.New("boom"))}
	next := Transition(State{}, testRule(0, 10), res)
	if _, ok := next.Labels["ref_id"]; ok {
		t.Fatalf("expected no ref_id label for unknown reference, got %v", next.Labels)
	}
	if next.Annotations["Error"] == "" {
		t.Fatalf("expected error annotation for structured error")
	}
}

func TestErrorBranchOpaqueErrorSkipsEnrichment(t *testing.T) {
	t.Parallel()

	res := domain.Result{State: domain.Error, EvaluatedAt: baseTime, Error: errors.New("plain")}
	next := Transition(State{}, testRule(0, 10), res)
	if next.State != domain.Error || next.Error == nil {
		t.Fatalf("expected recorded error state, got %s %v", next.State, next.Error)
	}
	if len(next.Labels) != 0 || len(next.Annotations) != 0 {
		t.Fatalf("expected no enrichment, got labels=%v annotations=%v", next.Labels, next.Annotations)
	}
}

func TestErrorBranchAlertingPolicyAndStartsAtKept(t *testing.T) {
	t.Parallel()

	rule := testRule(0, 10)
	rule.ExecErrState = domain.AlertingErrState
	prev := State{State: domain.Pending, StartsAt: baseTime.Add(-time.Minute)}
	next := Transition(prev, rule, domain.Result{State: domain.Error, EvaluatedAt: baseTime, Error: evalerr.Query("A", errors.New("x"))})

	if next.State != domain.Alerting {
		t.Fatalf("expected Alerting, got %s", next.State)
	}
	if !next.StartsAt.Equal(prev.StartsAt) {
		t.Fatalf("StartsAt must be kept when already set, got %v", next.StartsAt)
	}
	if _, ok := next.Labels["ref_id"]; ok {
		t.Fatalf("Alerting policy must not enrich labels")
	}
}

func TestNoDataPolicies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		policy domain.NoDataState
		want   domain.EvalState
	}{
		{policy: domain.NoDataAlerting, want: domain.Alerting},
		{policy: domain.NoDataNoData, want: domain.NoData},
		{policy: domain.NoDataOK, want: domain.Normal},
	}
	for _, tc := range cases {
		rule := testRule(0, 10)
		rule.NoDataState = tc.policy
		next := Transition(State{}, rule, result(domain.NoData, baseTime))
		if next.State != tc.want {
			t.Fatalf("policy %s: expected %s, got %s", tc.policy, tc.want, next.State)
		}
		if !next.StartsAt.Equal(baseTime) {
			t.Fatalf("policy %s: unexpected StartsAt %v", tc.policy, next.StartsAt)
		}
	}
}

func TestAlertingFromNoDataStartsNewRun(t *testing.T) {
	t.Parallel()

	rule := testRule(time.Minute, 10)
	prev := State{State: domain.NoData, StartsAt: baseTime.Add(-time.Hour)}
	next := Transition(prev, rule, result(domain.Alerting, baseTime))
	if next.State != domain.Pending || !next.StartsAt.Equal(baseTime) {
		t.Fatalf("expected fresh Pending run, got %s starts=%v", next.State, next.StartsAt)
	}
}

func TestTransitionPanicsOnNilRule(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for nil rule")
		}
	}()
	Transition(State{}, nil, result(domain.Normal, baseTime))
}

func TestApplyRecordsBookkeepingAndHistory(t *testing.T) {
	t.Parallel()

	value := 3.5
	res := domain.Result{
		State:              domain.Alerting,
		EvaluatedAt:        baseTime,
		EvaluationDuration: 20 * time.Millisecond,
		EvaluationString:   "[ var='A' value=3.5 ]",
		Values:             map[string]domain.NumberValueCapture{"A": {Var: "A", Value: &value}},
	}
	next := DefaultPolicy().Apply(State{}, testRule(0, 10), res)

	if !next.LastEvaluationTime.Equal(baseTime) || next.EvaluationDuration != 20*time.Millisecond {
		t.Fatalf("unexpected bookkeeping %v %v", next.LastEvaluationTime, next.EvaluationDuration)
	}
	if len(next.Results) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(next.Results))
	}
	entry := next.Results[0]
	if entry.EvaluationState != domain.Alerting || *entry.Values["A"] != 3.5 {
		t.Fatalf("unexpected history entry %+v", entry)
	}
}
