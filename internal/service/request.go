package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BuzzLyutic/ptask/internal/model"
)

const (
	dateLayout      = "2006-01-02"
	defaultEstimate = 1.0
)

// AddTaskRequest carries raw caller input for a new task. Empty fields take
// their documented defaults.
type AddTaskRequest struct {
	ID          string
	Description string
	Priority    string // default medium
	Category    string // default from config
	Due         string // YYYY-MM-DD or RFC 3339
	Estimate    string // hours, default 1
	Tags        []string
	Notes       string
	Assignee    string
}

// UpdateTaskRequest: nil leaves a field unchanged. Due set to "" or "none" clears it.
type UpdateTaskRequest struct {
	ID          string
	Description *string
	Status      *string
	Priority    *string
	Category    *string
	Due         *string
	Estimate    *string
	Tags        *[]string
	Notes       *string
	Assignee    *string
}

type CompleteTaskRequest struct {
	ID    string
	Hours string // actual hours, optional
	Notes string
}

type ListTasksRequest struct {
	Status   string
	Priority string
	Category string
	Tags     []string
	Assignee string
	DueFrom  string
	DueTo    string
	Search   string
	Today    bool // due today
	Overdue  bool
}

type ReportRequest struct {
	Period string // default week
}

type ExportRequest struct {
	Format    string
	Status    string
	DateRange string // YYYY-MM-DD:YYYY-MM-DD
}

type BackupRequest struct {
	Path string
}

func parseID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", &model.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return id, nil
}

func parseHours(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &model.ValidationError{Field: field, Value: raw, Reason: "must be a finite number"}
	}
	return v, nil
}

// parseDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339.
func parseDate(field, raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &model.ValidationError{Field: field, Value: raw, Reason: "must be YYYY-MM-DD or RFC 3339"}
}

// parseDateRange parses "from:to" into an inclusive window. A date-only upper
// bound covers the whole day.
func parseDateRange(raw string) (time.Time, time.Time, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || len(from) != len(dateLayout) || len(to) != len(dateLayout) {
		return time.Time{}, time.Time{}, &model.ValidationError{Field: "dateRange", Value: raw, Reason: "must be YYYY-MM-DD:YYYY-MM-DD"}
	}
	start, err := parseDate("dateRange", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("dateRange", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, &model.ValidationError{Field: "dateRange", Value: raw, Reason: "end precedes start"}
	}
	return start, endOfDay(end), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

func (r ListTasksRequest) filter(now time.Time) (model.Filter, error) {
	var f model.Filter

	if r.Status != "" {
		s, err := model.ParseStatus(r.Status)
		if err != nil {
			return f, err
		}
		f.Status = &s
	}
	if r.Priority != "" {
		p, err := model.ParsePriority(r.Priority)
		if err != nil {
			return f, err
		}
		f.Priority = &p
	}
	f.Category = strings.TrimSpace(r.Category)
	f.Assignee = strings.TrimSpace(r.Assignee)
	f.Search = strings.TrimSpace(r.Search)
	if len(r.Tags) > 0 {
		f.Tags = model.NormalizeTags(r.Tags)
	}

	if r.DueFrom != "" {
		t, err := parseDate("dueFrom", r.DueFrom)
		if err != nil {
			return f, err
		}
		f.DueFrom = &t
	}
	if r.DueTo != "" {
		t, err := parseDate("dueTo", r.DueTo)
		if err != nil {
			return f, err
		}
		if len(strings.TrimSpace(r.DueTo)) == len(dateLayout) {
			t = endOfDay(t)
		}
		f.DueTo = &t
	}

	if r.Today {
		from, to := startOfDay(now), endOfDay(now)
		if r.DueFrom != "" || r.DueTo != "" {
			return f, &model.ValidationError{Field: "today", Reason: "cannot be combined with a due range"}
		}
		f.DueFrom, f.DueTo = &from, &to
	}
	if r.Overdue {
		at := now
		f.OverdueAsOf = &at
	}
	return f, nil
}

func (r AddTaskRequest) task(defaultCategory string) (model.Task, error) {
	t := model.Task{
		ID:             strings.TrimSpace(r.ID),
		Description:    strings.TrimSpace(r.Description),
		Priority:       model.PriorityMedium,
		Category:       strings.TrimSpace(r.Category),
		EstimatedHours: defaultEstimate,
		Tags:           r.Tags,
		Notes:          r.Notes,
		Assignee:       strings.TrimSpace(r.Assignee),
	}
	if t.Description == "" {
		return t, &model.ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if t.Category == "" {
		t.Category = defaultCategory
	}
	if r.Priority != "" {
		p, err := model.ParsePriority(r.Priority)
		if err != nil {
			return t, err
		}
		t.Priority = p
	}
	if r.Estimate != "" {
		h, err := parseHours("estimatedHours", r.Estimate)
		if err != nil {
			return t, err
		}
		t.EstimatedHours = h
	}
	if r.Due != "" {
		due, err := parseDate("dueDate", r.Due)
		if err != nil {
			return t, err
		}
		t.DueDate = &due
	}
	return t, nil
}

func (r UpdateTaskRequest) patch() (model.TaskPatch, error) {
	var p model.TaskPatch

	p.Description = r.Description
	p.Category = r.Category
	p.Tags = r.Tags
	p.Notes = r.Notes
	p.Assignee = r.Assignee

	if r.Description != nil && strings.TrimSpace(*r.Description) == "" {
		return p, &model.ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if r.Status != nil {
		s, err := model.ParseStatus(*r.Status)
		if err != nil {
			return p, err
		}
		p.Status = &s
	}
	if r.Priority != nil {
		pr, err := model.ParsePriority(*r.Priority)
		if err != nil {
			return p, err
		}
		p.Priority = &pr
	}
	if r.Estimate != nil {
		h, err := parseHours("estimatedHours", *r.Estimate)
		if err != nil {
			return p, err
		}
		p.EstimatedHours = &h
	}
	if r.Due != nil {
		v := strings.TrimSpace(*r.Due)
		if v == "" || strings.EqualFold(v, "none") {
			p.ClearDueDate = true
		} else {
			due, err := parseDate("dueDate", v)
			if err != nil {
				return p, err
			}
			p.DueDate = &due
		}
	}
	return p, nil
}
