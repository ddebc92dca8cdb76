// Package metrics filters and aggregates task snapshots. Nothing here
// performs I/O; every function works on the slice it is given.
package metrics

import (
	"strings"

	"github.com/BuzzLyutic/ptask/internal/model"
)

// Apply returns the tasks matching f in their original order.
func Apply(tasks []model.Task, f model.Filter) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if Match(t, f) {
			out = append(out, t)
		}
	}
	return out
}

func Match(t model.Task, f model.Filter) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(t, f.Tags) {
		return false
	}
	if f.DueFrom != nil || f.DueTo != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
			return false
		}
	}
	if f.OverdueAsOf != nil && !t.Overdue(*f.OverdueAsOf) {
		return false
	}
	if f.Search != "" && !matchesText(t, f.Search) {
		return false
	}
	return true
}

func hasAnyTag(t model.Task, tags []string) bool {
	for _, tag := range tags {
		if t.HasTag(tag) {
			return true
		}
	}
	return false
}

func matchesText(t model.Task, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Description), q) ||
		strings.Contains(strings.ToLower(t.Notes), q)
}
