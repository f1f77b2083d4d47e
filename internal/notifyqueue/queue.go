package notifyqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alertstate/internal/domain"

	"github.com/google/uuid"
)

// jobNamespace scopes name-based job ids to this service.
var jobNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("alertstate/notifyqueue/job"))

// Job is one "needs sending" announcement handed to the delivery pipeline.
// Params: deterministic id and notification payload.
// Returns: queue unit consumed by downstream senders.
type Job struct {
	ID           string              `json:"id"`
	Notification domain.Notification `json:"notification"`
	CreatedAt    time.Time           `json:"created_at"`
}

// NewJob builds a job for one notification.
// Params: notification payload and creation time.
// Returns: job with deterministic id.
func NewJob(notification domain.Notification, now time.Time) Job {
	return Job{
		ID:           BuildJobID(notification),
		Notification: notification,
		CreatedAt:    now,
	}
}

// BuildJobID creates deterministic id for one notification queue task.
// Params: notification payload.
// Returns: stable name-based (SHA1) UUID string.
func BuildJobID(notification domain.Notification) string {
	raw := fmt.Sprintf(
		"%d|%s|%s|%s|%t|%d",
		notification.OrgID,
		notification.RuleUID,
		notification.CacheKey,
		notification.State,
		notification.Resolved,
		notification.EvaluatedAt.UnixNano(),
	)
	return uuid.NewSHA1(jobNamespace, []byte(raw)).String()
}

// Producer enqueues notification jobs.
// Params: context and queue job payload.
// Returns: enqueue error.
type Producer interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// LogProducer writes jobs to the service log instead of a queue.
type LogProducer struct {
	logger *slog.Logger
}

// NewLogProducer creates producer used in single mode.
func NewLogProducer(logger *slog.Logger) *LogProducer {
	return &LogProducer{logger: logger}
}

// Enqueue logs one job.
// Params: context and job.
// Returns: context error when already cancelled.
func (p *LogProducer) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.logger == nil {
		return nil
	}
	n := job.Notification
	p.logger.Info(
		"notification ready",
		"job_id", job.ID,
		"rule_uid", n.RuleUID,
		"org_id", n.OrgID,
		"cache_key", n.CacheKey,
		"state", n.State,
		"resolved", n.Resolved,
		"labels", domain.Labels(n.Labels).String(),
		"ends_at", n.EndsAt,
	)
	return nil
}

// Close is a no-op.
func (p *LogProducer) Close() error {
	return nil
}
