package state

import (
	"sort"
	"sync"
	"time"

	"alertstate/internal/domain"
)

// Update is the outcome of applying one result to the cache.
// Params: snapshot before and after the transition, creation and staleness flags.
// Returns: input for persistence and notification decisions.
type Update struct {
	Previous State
	Current  State
	Created  bool
	// Stale is set when the result is older than the instance's last evaluation;
	// the instance is left untouched and Current equals Previous.
	Stale bool
}

// Changed reports whether the transition produced an observable change.
func (u Update) Changed() bool {
	if u.Stale {
		return false
	}
	return u.Created || !u.Previous.Equals(u.Current)
}

// Cache stores current state for every known alert instance.
// Params: policy applied on each result and map keyed by instance identity.
// Returns: concurrency-safe instance registry; readers always receive copies.
type Cache struct {
	mu     sync.RWMutex
	policy Policy
	states map[InstanceKey]*State
}

// NewCache creates empty instance cache.
// Params: state machine policy.
// Returns: initialized cache.
func NewCache(policy Policy) *Cache {
	return &Cache{policy: policy.normalized(), states: make(map[InstanceKey]*State)}
}

// Policy returns policy used by cache transitions.
func (c *Cache) Policy() Policy {
	return c.policy
}

// Apply routes one result into its instance and transitions it atomically.
// Params: rule configuration (must not be nil) and evaluation result.
// Returns: previous/current snapshots; results older than the last evaluation are reported stale.
func (c *Cache) Apply(rule *domain.AlertRule, result domain.Result) Update {
	if rule == nil {
		panic("state: cache apply requires a non-nil alert rule")
	}
	key, labels := KeyFor(rule, result.Instance)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.states[key]
	var prev State
	if ok {
		prev = existing.Copy()
		if result.EvaluatedAt.Before(prev.LastEvaluationTime) {
			return Update{Previous: prev, Current: prev.Copy(), Stale: true}
		}
	} else {
		prev = State{
			RuleUID:     key.RuleUID,
			OrgID:       key.OrgID,
			CacheKey:    key.CacheKey,
			Labels:      labels,
			Annotations: rule.Annotations.Copy(),
		}
	}

	working := prev.Copy()
	// Rule annotations may change between evaluations of the same instance.
	working.Annotations = rule.Annotations.Copy()
	next := c.policy.Apply(working, rule, result)
	stored := next
	c.states[key] = &stored

	return Update{Previous: prev, Current: next.Copy(), Created: !ok}
}

// Restore inserts previously persisted state unless instance is already known.
// Params: state snapshot.
// Returns: true when state was inserted.
func (c *Cache) Restore(s State) bool {
	key := s.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[key]; ok {
		return false
	}
	restored := s.Copy()
	c.states[key] = &restored
	return true
}

// Get returns one instance state copy.
// Params: instance identity.
// Returns: state copy and existence flag.
func (c *Cache) Get(key InstanceKey) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[key]
	if !ok {
		return State{}, false
	}
	return s.Copy(), true
}

// ListByRule returns instance copies for one rule sorted by cache key.
// Params: org ID and rule UID.
// Returns: detached states.
func (c *Cache) ListByRule(orgID int64, ruleUID string) []State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]State, 0)
	for key, s := range c.states {
		if key.OrgID != orgID || key.RuleUID != ruleUID {
			continue
		}
		out = append(out, s.Copy())
	}
	sortStates(out)
	return out
}

// ListAll returns every instance copy sorted by org, rule, and cache key.
func (c *Cache) ListAll() []State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]State, 0, len(c.states))
	for _, s := range c.states {
		out = append(out, s.Copy())
	}
	sortStates(out)
	return out
}

// Len returns number of cached instances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}

// MarkSent records successful dispatch time.
// Params: instance identity and dispatch timestamp.
// Returns: true when instance exists and timestamp is updated.
func (c *Cache) MarkSent(key InstanceKey, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[key]
	if !ok {
		return false
	}
	s.LastSentAt = at
	return true
}

// RemoveByRule deletes all instances of one rule.
// Params: org ID and rule UID.
// Returns: removed instance keys.
func (c *Cache) RemoveByRule(orgID int64, ruleUID string) []InstanceKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := make([]InstanceKey, 0)
	for key := range c.states {
		if key.OrgID == orgID && key.RuleUID == ruleUID {
			delete(c.states, key)
			removed = append(removed, key)
		}
	}
	return removed
}

// Compact evicts instances of unknown rules and instances idle in Normal.
// Params: current time, Normal retention (0 disables), and rule membership check (nil keeps all rules).
// Returns: removed instance keys.
func (c *Cache) Compact(now time.Time, retention time.Duration, keep func(orgID int64, ruleUID string) bool) []InstanceKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := make([]InstanceKey, 0)
	for key, s := range c.states {
		if keep != nil && !keep(key.OrgID, key.RuleUID) {
			delete(c.states, key)
			removed = append(removed, key)
			continue
		}
		if retention <= 0 || s.State != domain.Normal || s.Resolved {
			continue
		}
		if s.LastEvaluationTime.IsZero() || now.Sub(s.LastEvaluationTime) < retention {
			continue
		}
		delete(c.states, key)
		removed = append(removed, key)
	}
	return removed
}

func sortStates(states []State) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].OrgID != states[j].OrgID {
			return states[i].OrgID < states[j].OrgID
		}
		if states[i].RuleUID != states[j].RuleUID {
			return states[i].RuleUID < states[j].RuleUID
		}
		return states[i].CacheKey < states[j].CacheKey
	})
}
