package state

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"alertstate/internal/domain"
)

// InstanceKey identifies one alert instance across evaluations.
type InstanceKey struct {
	OrgID    int64
	RuleUID  string
	CacheKey string
}

// CacheKey builds deterministic instance key from label set.
// Params: full instance labels.
// Returns: SHA1 hex digest of sorted "name=value" lines.
func CacheKey(labels domain.Labels) string {
	names := make([]string, 0, len(labels))
	capacity := 0
	for name, value := range labels {
		names = append(names, name)
		capacity += len(name) + 1 + len(value) + 1
	}
	sort.Strings(names)

	canonical := make([]byte, 0, capacity)
	for index, name := range names {
		if index > 0 {
			canonical = append(canonical, '\n')
		}
		canonical = append(canonical, name...)
		canonical = append(canonical, '=')
		canonical = append(canonical, labels[name]...)
	}
	digest := sha1.Sum(canonical)
	return hex.EncodeToString(digest[:])
}

// InstanceLabels builds label set for result of rule.
// Params: rule configuration and result instance labels.
// Returns: rule labels overlaid by instance labels plus reserved rule labels.
func InstanceLabels(rule *domain.AlertRule, instance domain.Labels) domain.Labels {
	labels := rule.Labels.Merge(instance)
	labels[domain.AlertNameLabel] = rule.Title
	labels[domain.RuleUIDLabel] = rule.UID
	return labels
}

// KeyFor builds instance identity for result labels of rule.
// Params: rule configuration and result instance labels.
// Returns: instance key and full instance label set.
func KeyFor(rule *domain.AlertRule, instance domain.Labels) (InstanceKey, domain.Labels) {
	labels := InstanceLabels(rule, instance)
	return InstanceKey{OrgID: rule.OrgID, RuleUID: rule.UID, CacheKey: CacheKey(labels)}, labels
}

// StoreKey builds persistence key in "org/<id>/rule/<uid>/<cache key>" namespace.
func StoreKey(key InstanceKey) string {
	return RulePrefix(key.OrgID, key.RuleUID) + key.CacheKey
}

// RulePrefix returns persistence key prefix for all instances of one rule.
// Params: org ID and rule UID.
// Returns: prefix ending with "/".
func RulePrefix(orgID int64, ruleUID string) string {
	var builder strings.Builder
	builder.WriteString("org/")
	builder.WriteString(strconv.FormatInt(orgID, 10))
	builder.WriteString("/rule/")
	builder.WriteString(sanitize(ruleUID))
	builder.WriteByte('/')
	return builder.String()
}

// sanitize converts key path fragments into stable bucket-safe tokens.
// Params: raw value with possible separators.
// Returns: sanitized string with unsupported chars replaced by underscore.
func sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '=':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
