package domain

import (
	"sort"
	"strings"
)

// Labels is a string-to-string mapping for instance labels and annotations.
type Labels map[string]string

// String renders labels in canonical order-independent form.
// Params: none.
// Returns: "{k1=v1, k2=v2}" sorted by key; "{}" for empty set.
func (l Labels) String() string {
	keys := l.sortedKeys()
	var builder strings.Builder
	builder.WriteByte('{')
	for index, key := range keys {
		if index > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(l[key])
	}
	builder.WriteByte('}')
	return builder.String()
}

// Copy duplicates labels map.
// Params: none.
// Returns: detached copy; empty non-nil map for nil source.
func (l Labels) Copy() Labels {
	out := make(Labels, len(l))
	for key, value := range l {
		out[key] = value
	}
	return out
}

// Merge returns a copy of l overlaid by other.
func (l Labels) Merge(other Labels) Labels {
	out := l.Copy()
	for key, value := range other {
		out[key] = value
	}
	return out
}

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for key := range l {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
