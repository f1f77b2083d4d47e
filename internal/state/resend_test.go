package state

import (
	"testing"
	"time"

	"alertstate/internal/domain"
)

func TestNeedsSendingSkipsPendingAndSteadyNormal(t *testing.T) {
	t.Parallel()

	pending := State{State: domain.Pending, LastEvaluationTime: baseTime}
	if pending.NeedsSending(ResendDelay) {
		t.Fatalf("pending must not need sending")
	}
	normal := State{State: domain.Normal, LastEvaluationTime: baseTime, LastSentAt: baseTime.Add(-time.Hour)}
	if normal.NeedsSending(ResendDelay) {
		t.Fatalf("steady normal must not need sending")
	}
	normal.Resolved = true
	if !normal.NeedsSending(ResendDelay) {
		t.Fatalf("resolved normal must need sending")
	}
}

func TestNeedsSendingResendWindow(t *testing.T) {
	t.Parallel()

	firing := State{State: domain.Alerting, LastEvaluationTime: baseTime}
	if !firing.NeedsSending(ResendDelay) {
		t.Fatalf("first firing evaluation must need sending")
	}

	firing.LastSentAt = firing.LastEvaluationTime
	if firing.NeedsSending(ResendDelay) {
		t.Fatalf("must not resend immediately after dispatch")
	}

	firing.LastEvaluationTime = baseTime.Add(ResendDelay - time.Second)
	if firing.NeedsSending(ResendDelay) {
		t.Fatalf("must not resend before delay elapsed")
	}

	firing.LastEvaluationTime = baseTime.Add(ResendDelay)
	if !firing.NeedsSending(ResendDelay) {
		t.Fatalf("must resend exactly at delay boundary")
	}
}

func TestNeedsSendingForErrorAndNoData(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.EvalState{domain.Error, domain.NoData} {
		st := State{State: s, LastEvaluationTime: baseTime}
		if !st.NeedsSending(ResendDelay) {
			t.Fatalf("%s must need sending when never sent", s)
		}
	}
}
