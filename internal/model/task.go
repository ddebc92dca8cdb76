package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	CurrentVersion  = 1
	DefaultCategory = "general"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether a task in status s may move to status to.
// Staying in a non-terminal status is allowed.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() || !to.Valid() {
		return false
	}
	if s == to {
		return true
	}
	switch s {
	case StatusPending:
		return to == StatusInProgress || to == StatusCompleted || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// ParseStatus accepts the canonical tag and the dashed spelling used by older CLI versions.
func ParseStatus(raw string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "in-progress" {
		v = string(StatusInProgress)
	}
	s := Status(v)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Value: raw, Reason: "must be one of " + joinStatuses(Statuses)}
	}
	return s, nil
}

func joinStatuses(ss []Status) string {
	names := make([]string, len(ss))
	for i, st := range ss {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities low<medium<high<urgent as 1..4; invalid values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// PriorityFromRank clamps rank into 1..4.
func PriorityFromRank(rank int) Priority {
	if rank < 1 {
		rank = 1
	}
	if rank > len(Priorities) {
		rank = len(Priorities)
	}
	return Priorities[rank-1]
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Value: raw, Reason: "must be one of low, medium, high, urgent"}
	}
	return p, nil
}

type Task struct {
	ID             string     `json:"id" yaml:"id"`
	Description    string     `json:"description" yaml:"description"`
	Status         Status     `json:"status" yaml:"status"`
	Priority       Priority   `json:"priority" yaml:"priority"`
	Category       string     `json:"category" yaml:"category"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" yaml:"updatedAt"`
	DueDate        *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	EstimatedHours float64    `json:"estimatedHours" yaml:"estimatedHours"`
	ActualHours    *float64   `json:"actualHours,omitempty" yaml:"actualHours,omitempty"`
	Tags           []string   `json:"tags" yaml:"tags"`
	Notes          string     `json:"notes" yaml:"notes"`
	Assignee       string     `json:"assignee" yaml:"assignee"`
}

// HasTag reports whether tag is attached to the task. Case is folded, as in
// NormalizeTags, so hand-edited files with mixed case still match.
func (t Task) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, v := range t.Tags {
		if strings.EqualFold(v, tag) {
			return true
		}
	}
	return false
}

// Overdue reports whether the task is still open with a due date before at.
func (t Task) Overdue(at time.Time) bool {
	return t.DueDate != nil && !t.Status.Terminal() && t.DueDate.Before(at)
}

// Validate checks the invariants every stored task must satisfy.
func (t Task) Validate(now time.Time) error {
	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Value: t.ID, Reason: "must not be empty"}
	}
	if strings.TrimSpace(t.Description) == "" {
		return &ValidationError{Field: "description", Value: t.Description, Reason: "must not be empty"}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Value: string(t.Status), Reason: "unknown status"}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Value: string(t.Priority), Reason: "unknown priority"}
	}
	if !(t.EstimatedHours > 0) || math.IsInf(t.EstimatedHours, 0) {
		return &ValidationError{Field: "estimatedHours", Value: formatHours(t.EstimatedHours), Reason: "must be a positive finite number"}
	}
	if t.ActualHours != nil && !ValidActualHours(*t.ActualHours) {
		return &ValidationError{Field: "actualHours", Value: formatHours(*t.ActualHours), Reason: "must be a finite number, not negative"}
	}
	if t.CreatedAt.IsZero() {
		return &ValidationError{Field: "createdAt", Reason: "must be set"}
	}
	if t.CreatedAt.After(now) {
		return &ValidationError{Field: "createdAt", Value: t.CreatedAt.Format(time.RFC3339), Reason: "must not be in the future"}
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return &ValidationError{Field: "updatedAt", Value: t.UpdatedAt.Format(time.RFC3339), Reason: "must not precede createdAt"}
	}
	if (t.Status == StatusCompleted) != (t.CompletedAt != nil) {
		return &ValidationError{Field: "completedAt", Value: string(t.Status), Reason: "must be set exactly when status is completed"}
	}
	return nil
}

// ValidActualHours reports whether h is finite and not negative. NaN fails.
func ValidActualHours(h float64) bool {
	return h >= 0 && !math.IsInf(h, 0)
}

func formatHours(h float64) string {
	return fmt.Sprintf("%g", h)
}

// TaskPatch carries the fields an update may change; nil means unchanged.
type TaskPatch struct {
	Description    *string
	Status         *Status
	Priority       *Priority
	Category       *string
	DueDate        *time.Time
	ClearDueDate   bool
	EstimatedHours *float64
	Tags           *[]string
	Notes          *string
	Assignee       *string
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Description == nil && p.Status == nil && p.Priority == nil && p.Category == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.EstimatedHours == nil && p.Tags == nil &&
		p.Notes == nil && p.Assignee == nil
}

// Filter selects a subset of tasks. Zero-valued fields do not constrain.
type Filter struct {
	Status      *Status
	Priority    *Priority
	Category    string
	Tags        []string
	Assignee    string
	DueFrom     *time.Time
	DueTo       *time.Time
	Search      string
	OverdueAsOf *time.Time
}

// Collection is the persisted aggregate.
type Collection struct {
	Version int    `json:"version"`
	Tasks   []Task `json:"tasks"`
}

func NewCollection() *Collection {
	return &Collection{Version: CurrentVersion, Tasks: []Task{}}
}

// Index returns the position of the task with id, or -1.
func (c *Collection) Index(id string) int {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// NormalizeTags trims, lower-cases, drops blanks, de-duplicates and sorts
// tags so the stored set has one canonical order. HasTag matches the same way.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
