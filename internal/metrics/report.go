package metrics

import (
	"strings"
	"time"

	"github.com/BuzzLyutic/ptask/internal/model"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func ParsePeriod(raw string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", &model.ValidationError{Field: "period", Value: raw, Reason: "must be one of day, week, month, year"}
}

type Report struct {
	Period     Period            `json:"period" yaml:"period"`
	Start      time.Time         `json:"startDate" yaml:"startDate"`
	End        time.Time         `json:"endDate" yaml:"endDate"`
	Summary    Summary           `json:"metrics" yaml:"metrics"`
	Categories []CategoryMetrics `json:"categoryBreakdown" yaml:"categoryBreakdown"`
	Priorities []PriorityMetrics `json:"priorityBreakdown" yaml:"priorityBreakdown"`
}

// Window returns the calendar-aligned period containing now: the start of
// the day, ISO week (Monday), month or year, through now.
func Window(p Period, now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case PeriodWeek:
		offset := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc), now
	case PeriodMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), now
	case PeriodYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), now
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), now
	}
}

// InWindow reports whether the task was created or completed within [start, end].
func InWindow(t model.Task, start, end time.Time) bool {
	if within(t.CreatedAt, start, end) {
		return true
	}
	return t.CompletedAt != nil && within(*t.CompletedAt, start, end)
}

func within(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}

// BuildReport aggregates the tasks active in the period ending at now.
func BuildReport(tasks []model.Task, p Period, now time.Time) Report {
	start, end := Window(p, now)
	selected := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if InWindow(t, start, end) {
			selected = append(selected, t)
		}
	}
	return Report{
		Period:     p,
		Start:      start,
		End:        end,
		Summary:    Summarize(selected, now),
		Categories: CategoryBreakdown(selected),
		Priorities: PriorityBreakdown(selected),
	}
}
