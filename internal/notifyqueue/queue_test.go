package notifyqueue

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"alertstate/internal/domain"

	"github.com/google/uuid"
)

func testNotification() domain.Notification {
	return domain.Notification{
		RuleUID:     "cpu",
		OrgID:       1,
		CacheKey:    "abc",
		State:       "Alerting",
		Labels:      map[string]string{"host": "a"},
		EvaluatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestBuildJobIDIsDeterministic(t *testing.T) {
	t.Parallel()

	first := BuildJobID(testNotification())
	second := BuildJobID(testNotification())
	if first != second || len(first) != 36 {
		t.Fatalf("expected stable sha1 id, got %q and %q", first, second)
	}
	if parsed, err := uuid.Parse(first); err != nil || parsed.Version() != 5 {
		t.Fatalf("expected name-based uuid, got %q (%v)", first, err)
	}

	resolved := testNotification()
	resolved.State = "Normal"
	resolved.Resolved = true
	if BuildJobID(resolved) == first {
		t.Fatalf("expected different id for resolved notification")
	}

	later := testNotification()
	later.EvaluatedAt = later.EvaluatedAt.Add(time.Minute)
	if BuildJobID(later) == first {
		t.Fatalf("expected different id for a later evaluation")
	}
}

func TestLogProducerWritesJob(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	producer := NewLogProducer(slog.New(slog.NewTextHandler(&out, nil)))
	job := NewJob(testNotification(), time.Now())
	if err := producer.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !strings.Contains(out.String(), job.ID) || !strings.Contains(out.String(), "rule_uid=cpu") {
		t.Fatalf("unexpected log output %q", out.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := producer.Enqueue(ctx, job); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
