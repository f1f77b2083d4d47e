package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"alertstate/internal/clock"
	"alertstate/internal/config"
	"alertstate/internal/domain"
	"alertstate/internal/ingest"
	"alertstate/internal/metrics"
	"alertstate/internal/notifyqueue"
	"alertstate/internal/state"

	"github.com/cespare/xxhash/v2"
)

// instanceLockStripes bounds the number of per-instance mutexes.
const instanceLockStripes = 256

// Manager routes evaluation results through the instance state machine.
// Params: runtime config, instance cache, snapshot store, notify producer, metrics, logger, and clock.
// Returns: result sink and periodic garbage-collection entrypoint.
type Manager struct {
	mu       sync.RWMutex
	cfg      config.Config
	rules    map[string]ruleEntry
	cache    *state.Cache
	store    state.Store
	producer notifyqueue.Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    clock.Clock

	resendDelay time.Duration
	retention   time.Duration

	// locks serialize apply, announce and persist of one instance.
	locks [instanceLockStripes]sync.Mutex

	// dirty holds instances whose last snapshot write failed.
	dirtyMu sync.Mutex
	dirty   map[state.InstanceKey]struct{}
}

// NewManager creates manager with initial configuration.
// Params: initial config, logger, snapshot store, notify producer, metrics, and clock.
// Returns: initialized manager.
func NewManager(cfg config.Config, logger *slog.Logger, store state.Store, producer notifyqueue.Producer, m *metrics.Metrics, clk clock.Clock) *Manager {
	policy := state.Policy{
		ResendDelay:       cfg.State.ResendDelay(),
		HistoryMultiplier: cfg.State.HistoryMultiplier,
		HistoryFloor:      cfg.State.HistoryFloor,
	}
	if m == nil {
		m = metrics.New()
	}
	cache := state.NewCache(policy)
	return &Manager{
		cfg:         cfg,
		rules:       buildRuleIndex(cfg.Rule),
		cache:       cache,
		store:       store,
		producer:    producer,
		metrics:     m,
		logger:      logger,
		clock:       clk,
		resendDelay: cache.Policy().ResendDelay,
		retention:   cfg.State.Retention(),
		dirty:       make(map[state.InstanceKey]struct{}),
	}
}

// Push applies one submission.
// Params: context and decoded submission.
// Returns: error wrapping domain.ErrUnknownRule for unconfigured rules or context error.
func (m *Manager) Push(ctx context.Context, submission ingest.Submission) error {
	return m.process(ctx, submission)
}

// PushBatch applies submissions in order.
// Params: context and decoded submissions.
// Returns: joined unknown-rule errors; stops early only on context cancellation.
func (m *Manager) PushBatch(ctx context.Context, submissions []ingest.Submission) error {
	var errs []error
	for _, submission := range submissions {
		if err := m.process(ctx, submission); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// process runs transition, persistence, and notification for one result.
func (m *Manager) process(ctx context.Context, submission ingest.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()
	defer func() {
		m.metrics.ApplyDuration.Observe(time.Since(started).Seconds())
	}()

	entry, ok := m.rule(submission.OrgID, submission.RuleUID)
	if !ok {
		m.metrics.UnknownRuleResults.WithLabelValues(strconv.FormatInt(submission.OrgID, 10)).Inc()
		return fmt.Errorf("rule %q in org %d: %w", submission.RuleUID, submission.OrgID, domain.ErrUnknownRule)
	}
	if reason := shouldDropOutOfOrder(entry.outOfOrder, submission.Result.EvaluatedAt, m.clock.Now()); reason != "" {
		m.dropResult(submission, reason)
		return nil
	}

	key, _ := state.KeyFor(entry.rule, submission.Result.Instance)
	lock := m.instanceLock(key)
	lock.Lock()
	defer lock.Unlock()

	update := m.cache.Apply(entry.rule, submission.Result)
	if update.Stale {
		m.dropResult(submission, "stale")
		return nil
	}
	current := update.Current
	m.metrics.ResultsTotal.WithLabelValues(submission.Result.State.String()).Inc()
	if update.Created {
		m.metrics.Instances.Set(float64(m.cache.Len()))
	}
	if update.Created || update.Previous.State != current.State {
		from := "None"
		if !update.Created {
			from = update.Previous.State.String()
		}
		m.metrics.TransitionsTotal.WithLabelValues(from, current.State.String()).Inc()
		m.logger.Info(
			"instance state changed",
			"rule_uid", current.RuleUID,
			"org_id", current.OrgID,
			"cache_key", current.CacheKey,
			"from", from,
			"to", current.State.String(),
			"resolved", current.Resolved,
		)
	}

	sent := m.announce(ctx, current)
	if sent {
		current.LastSentAt = current.LastEvaluationTime
	}
	if update.Changed() || sent || m.isDirty(current.Key()) {
		m.persist(ctx, current)
	}
	return nil
}

// dropResult counts and logs a result ignored by ordering guards.
func (m *Manager) dropResult(submission ingest.Submission, reason string) {
	m.metrics.DroppedResults.WithLabelValues(reason).Inc()
	m.logger.Warn(
		"result dropped by out_of_order filter",
		"rule_uid", submission.RuleUID,
		"org_id", submission.OrgID,
		"evaluated_at", submission.Result.EvaluatedAt,
		"reason", reason,
	)
}

// shouldDropOutOfOrder applies rule out-of-order bounds to a result timestamp.
// Params: rule bounds, result evaluation time, and current processing time.
// Returns: drop reason ("late" or "future"), empty when result is accepted.
func shouldDropOutOfOrder(bounds config.RuleOutOfOrder, evaluatedAt, now time.Time) string {
	if bounds.MaxLateMS > 0 && now.Sub(evaluatedAt) > time.Duration(bounds.MaxLateMS)*time.Millisecond {
		return "late"
	}
	if bounds.MaxFutureSkewMS > 0 && evaluatedAt.Sub(now) > time.Duration(bounds.MaxFutureSkewMS)*time.Millisecond {
		return "future"
	}
	return ""
}

// announce enqueues a notification job when the instance needs sending.
// Params: context and current instance state.
// Returns: true when job was accepted and the instance marked as sent.
func (m *Manager) announce(ctx context.Context, current state.State) bool {
	producer := m.producer
	if producer == nil || !current.NeedsSending(m.resendDelay) {
		return false
	}
	job := notifyqueue.NewJob(current.Notification(), m.clock.Now())
	if err := producer.Enqueue(ctx, job); err != nil {
		m.metrics.NotificationsTotal.WithLabelValues(current.State.String(), "error").Inc()
		m.logger.Error(
			"notification enqueue failed",
			"rule_uid", current.RuleUID,
			"cache_key", current.CacheKey,
			"job_id", job.ID,
			"error", err.Error(),
		)
		return false
	}
	m.metrics.NotificationsTotal.WithLabelValues(current.State.String(), "sent").Inc()
	m.cache.MarkSent(current.Key(), current.LastEvaluationTime)
	return true
}

// persist writes instance snapshot; failures leave the instance dirty for the next tick.
func (m *Manager) persist(ctx context.Context, current state.State) {
	key := current.Key()
	if _, err := m.store.Put(ctx, state.StoreKey(key), state.ToSnapshot(current)); err != nil {
		m.metrics.PersistTotal.WithLabelValues("put", "error").Inc()
		m.logger.Error("persist instance state failed", "rule_uid", key.RuleUID, "cache_key", key.CacheKey, "error", err.Error())
		m.markDirty(key, true)
		return
	}
	m.metrics.PersistTotal.WithLabelValues("put", "ok").Inc()
	m.markDirty(key, false)
}

// Warm restores persisted instances into the cache.
// Params: context for store reads.
// Returns: store listing error; unreadable snapshots are logged and skipped.
func (m *Manager) Warm(ctx context.Context) (int, error) {
	keys, err := m.store.ListKeys(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list persisted instances: %w", err)
	}
	restored := 0
	for _, key := range keys {
		snap, _, err := m.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, state.ErrNotFound) {
				m.logger.Warn("skip persisted instance", "key", key, "error", err.Error())
			}
			continue
		}
		if m.cache.Restore(state.FromSnapshot(snap)) {
			restored++
		}
	}
	m.metrics.Instances.Set(float64(m.cache.Len()))
	return restored, nil
}

// Tick garbage-collects instances and retries failed snapshot writes.
// Params: context for store operations.
// Returns: context error when cancelled.
func (m *Manager) Tick(ctx context.Context) error {
	now := m.clock.Now()
	removed := m.cache.Compact(now, m.retention, m.hasRule)
	if len(removed) > 0 {
		m.metrics.GCRemovedTotal.Add(float64(len(removed)))
		m.logger.Info("instances compacted", "removed", len(removed))
	}
	m.deleteSnapshots(ctx, removed)

	for _, key := range m.dirtyKeys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.flushDirty(ctx, key)
	}
	m.metrics.Instances.Set(float64(m.cache.Len()))
	return ctx.Err()
}

// flushDirty rewrites one dirty snapshot under its instance lock.
func (m *Manager) flushDirty(ctx context.Context, key state.InstanceKey) {
	lock := m.instanceLock(key)
	lock.Lock()
	defer lock.Unlock()
	current, ok := m.cache.Get(key)
	if !ok {
		m.markDirty(key, false)
		return
	}
	m.persist(ctx, current)
}

// ApplyConfig atomically replaces the rule set and drops instances of removed rules.
// Params: validated new config snapshot.
// Returns: error when state settings changed, which requires restart.
func (m *Manager) ApplyConfig(ctx context.Context, cfg config.Config) error {
	m.mu.Lock()
	if cfg.State != m.cfg.State {
		m.mu.Unlock()
		return errors.New("state settings change requires restart")
	}
	oldRules := m.rules
	newRules := buildRuleIndex(cfg.Rule)
	m.cfg = cfg
	m.rules = newRules
	m.mu.Unlock()

	for id, entry := range oldRules {
		if _, ok := newRules[id]; ok {
			continue
		}
		rule := entry.rule
		removed := m.cache.RemoveByRule(rule.OrgID, rule.UID)
		m.deleteSnapshots(ctx, removed)
		m.logger.Info("rule removed", "rule_uid", rule.UID, "org_id", rule.OrgID, "instances", len(removed))
	}
	m.metrics.Instances.Set(float64(m.cache.Len()))
	return nil
}

// Instances returns current states of one rule.
// Params: org and rule uid.
// Returns: detached state copies sorted by cache key.
func (m *Manager) Instances(orgID int64, ruleUID string) []state.State {
	return m.cache.ListByRule(orgID, ruleUID)
}

func (m *Manager) deleteSnapshots(ctx context.Context, keys []state.InstanceKey) {
	for _, key := range keys {
		m.deleteSnapshot(ctx, key)
	}
}

// deleteSnapshot removes a snapshot unless the instance was re-created meanwhile.
func (m *Manager) deleteSnapshot(ctx context.Context, key state.InstanceKey) {
	lock := m.instanceLock(key)
	lock.Lock()
	defer lock.Unlock()
	m.markDirty(key, false)
	if _, live := m.cache.Get(key); live {
		return
	}
	if err := m.store.Delete(ctx, state.StoreKey(key)); err != nil && !errors.Is(err, state.ErrNotFound) {
		m.metrics.PersistTotal.WithLabelValues("delete", "error").Inc()
		m.logger.Warn("delete instance snapshot failed", "rule_uid", key.RuleUID, "cache_key", key.CacheKey, "error", err.Error())
		return
	}
	m.metrics.PersistTotal.WithLabelValues("delete", "ok").Inc()
}

// instanceLock returns the mutex stripe guarding one instance.
func (m *Manager) instanceLock(key state.InstanceKey) *sync.Mutex {
	return &m.locks[xxhash.Sum64String(state.StoreKey(key))%instanceLockStripes]
}

func (m *Manager) rule(orgID int64, ruleUID string) (ruleEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.rules[ruleID(orgID, ruleUID)]
	return entry, ok
}

func (m *Manager) hasRule(orgID int64, ruleUID string) bool {
	_, ok := m.rule(orgID, ruleUID)
	return ok
}

func (m *Manager) markDirty(key state.InstanceKey, dirty bool) {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()
	if dirty {
		m.dirty[key] = struct{}{}
		return
	}
	delete(m.dirty, key)
}

func (m *Manager) isDirty(key state.InstanceKey) bool {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()
	_, ok := m.dirty[key]
	return ok
}

func (m *Manager) dirtyKeys() []state.InstanceKey {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()
	keys := make([]state.InstanceKey, 0, len(m.dirty))
	for key := range m.dirty {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return state.StoreKey(keys[i]) < state.StoreKey(keys[j])
	})
	return keys
}

// ruleEntry pairs a state machine rule with its ingest ordering bounds.
type ruleEntry struct {
	rule       *domain.AlertRule
	outOfOrder config.RuleOutOfOrder
}

// buildRuleIndex converts configured rules into state machine rules keyed by org and uid.
// Params: decoded rule list from active snapshot.
// Returns: lookup map for the per-result hot path.
func buildRuleIndex(input []config.RuleConfig) map[string]ruleEntry {
	out := make(map[string]ruleEntry, len(input))
	for _, ruleCfg := range input {
		rule := ruleCfg.AlertRule()
		out[ruleID(rule.OrgID, rule.UID)] = ruleEntry{rule: &rule, outOfOrder: ruleCfg.OutOfOrder}
	}
	return out
}

func ruleID(orgID int64, ruleUID string) string {
	return strconv.FormatInt(orgID, 10) + "/" + ruleUID
}
