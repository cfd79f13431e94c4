package tasks

import (
	"fmt"
	"strings"

	"concierge/pkg/protocol"
)

// Filter narrows the visible task set. Zero fields are unset.
type Filter struct {
	State    protocol.TaskState
	Priority protocol.Priority
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f.State == "" && f.Priority == ""
}

// Match reports whether t passes every set predicate. State is compared
// against the displayed state, so a task without a keyword counts as TODO.
func (f Filter) Match(t protocol.Task) bool {
	if f.State != "" && DisplayState(t) != f.State {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// Apply returns the tasks matching f, in input order. The input is not
// modified and the result shares no memory with it.
func (f Filter) Apply(all []protocol.Task) []protocol.Task {
	out := make([]protocol.Task, 0, len(all))
	for _, t := range all {
		if f.Match(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// String renders f in the syntax ParseFilter accepts.
func (f Filter) String() string {
	var parts []string
	if f.State != "" {
		parts = append(parts, "s:"+string(f.State))
	}
	if f.Priority != "" {
		parts = append(parts, "p:"+string(f.Priority))
	}
	return strings.Join(parts, " ")
}

// ParseFilter parses filter-control input such as "s:NEXT p:A".
// Accepted prefixes: s:/state: and p:/priority:. Values are case-insensitive;
// "all" or an empty value clears that predicate.
func ParseFilter(query string) (Filter, error) {
	var f Filter
	for _, part := range strings.Fields(query) {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			return Filter{}, fmt.Errorf("filter term %q: expected key:value", part)
		}
		value = strings.ToUpper(value)
		if value == "ALL" {
			value = ""
		}
		switch strings.ToLower(key) {
		case "s", "state":
			st := protocol.TaskState(value)
			if st != "" && !st.Valid() {
				return Filter{}, fmt.Errorf("filter term %q: unknown state", part)
			}
			f.State = st
		case "p", "priority":
			p := protocol.Priority(value)
			if p != "" && !p.Valid() {
				return Filter{}, fmt.Errorf("filter term %q: unknown priority", part)
			}
			f.Priority = p
		default:
			return Filter{}, fmt.Errorf("filter term %q: unknown key %q", part, key)
		}
	}
	return f, nil
}
