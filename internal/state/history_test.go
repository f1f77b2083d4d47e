package state

import (
	"testing"
	"time"

	"alertstate/internal/domain"
)

func historyOf(n int) []Evaluation {
	out := make([]Evaluation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Evaluation{EvaluationTime: baseTime.Add(time.Duration(i) * time.Minute)})
	}
	return out
}

func TestHistoryCapacity(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	cases := []struct {
		name string
		rule *domain.AlertRule
		want int
	}{
		{name: "for over interval", rule: testRule(5*time.Minute, 60), want: 10},
		{name: "long for", rule: testRule(30*time.Minute, 60), want: 60},
		{name: "zero for uses floor", rule: testRule(0, 60), want: 10},
		{name: "for below interval uses floor", rule: testRule(30*time.Second, 60), want: 10},
		{name: "zero interval uses floor", rule: testRule(time.Minute, 0), want: 10},
	}
	for _, tc := range cases {
		if got := policy.HistoryCapacity(tc.rule); got != tc.want {
			t.Fatalf("%s: expected capacity %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestTrimResultsKeepsMostRecent(t *testing.T) {
	t.Parallel()

	s := State{Results: historyOf(15)}
	trimmed := DefaultPolicy().TrimResults(s, testRule(5*time.Minute, 60))
	if len(trimmed.Results) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(trimmed.Results))
	}
	for i, entry := range trimmed.Results {
		want := baseTime.Add(time.Duration(i+5) * time.Minute)
		if !entry.EvaluationTime.Equal(want) {
			t.Fatalf("entry %d: expected %v, got %v", i, want, entry.EvaluationTime)
		}
	}
	if len(s.Results) != 15 {
		t.Fatalf("source history must not be modified")
	}
}

func TestTrimResultsNoopBelowCapacity(t *testing.T) {
	t.Parallel()

	s := State{Results: historyOf(9)}
	trimmed := DefaultPolicy().TrimResults(s, testRule(0, 60))
	if len(trimmed.Results) != 9 {
		t.Fatalf("expected untouched history, got %d", len(trimmed.Results))
	}
}

func TestTrimResultsCustomPolicy(t *testing.T) {
	t.Parallel()

	policy := Policy{HistoryMultiplier: 3, HistoryFloor: 4}
	if got := len(policy.TrimResults(State{Results: historyOf(15)}, testRule(0, 60)).Results); got != 4 {
		t.Fatalf("expected floor 4, got %d", got)
	}
	if got := len(policy.TrimResults(State{Results: historyOf(15)}, testRule(2*time.Minute, 60)).Results); got != 6 {
		t.Fatalf("expected capacity 6, got %d", got)
	}
}
