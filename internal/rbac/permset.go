package rbac

import (
	"encoding/json"
	"sort"
	"strings"
)

// PermissionSet is a deduplicated, order-independent set of permission values.
// The zero value is an empty set ready to use.
type PermissionSet struct {
	values map[string]struct{}
}

// NewPermissionSet builds a set from values, dropping blanks and duplicates.
func NewPermissionSet(values ...string) PermissionSet {
	s := PermissionSet{values: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts a value. Surrounding whitespace is ignored.
func (s *PermissionSet) Add(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if s.values == nil {
		s.values = make(map[string]struct{})
	}
	s.values[value] = struct{}{}
}

// Has reports membership.
func (s PermissionSet) Has(value string) bool {
	_, ok := s.values[strings.TrimSpace(value)]
	return ok
}

// HasAny reports whether at least one required value is present.
// An empty requirement list is never satisfied.
func (s PermissionSet) HasAny(required ...string) bool {
	for _, r := range required {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every required value is present.
// An empty requirement list is never satisfied.
func (s PermissionSet) HasAll(required ...string) bool {
	if len(required) == 0 {
		return false
	}
	for _, r := range required {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// Len returns the number of distinct values.
func (s PermissionSet) Len() int {
	return len(s.values)
}

// Values returns the members sorted lexically.
func (s PermissionSet) Values() []string {
	out := make([]string, 0, len(s.values))
	for v := range s.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Union returns a new set holding the members of both sets.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := NewPermissionSet(s.Values()...)
	for v := range other.values {
		out.Add(v)
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON decodes an array, deduplicating as it goes.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewPermissionSet(values...)
	return nil
}
