package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/BuzzLyutic/ptask/internal/model"
)

type CategoryMetrics struct {
	Category        string         `json:"category" yaml:"category"`
	TaskCount       int            `json:"taskCount" yaml:"taskCount"`
	CompletedCount  int            `json:"completedCount" yaml:"completedCount"`
	EstimatedHours  float64        `json:"estimatedHours" yaml:"estimatedHours"`
	ActualHours     float64        `json:"actualHours" yaml:"actualHours"`
	AveragePriority model.Priority `json:"averagePriority" yaml:"averagePriority"`
}

type PriorityMetrics struct {
	Priority       model.Priority `json:"priority" yaml:"priority"`
	TaskCount      int            `json:"taskCount" yaml:"taskCount"`
	CompletedCount int            `json:"completedCount" yaml:"completedCount"`
}

type Summary struct {
	Total                 int         `json:"totalTasks" yaml:"totalTasks"`
	Pending               int         `json:"pendingTasks" yaml:"pendingTasks"`
	InProgress            int         `json:"inProgressTasks" yaml:"inProgressTasks"`
	Completed             int         `json:"completedTasks" yaml:"completedTasks"`
	Cancelled             int         `json:"cancelledTasks" yaml:"cancelledTasks"`
	Overdue               int         `json:"overdueTasks" yaml:"overdueTasks"`
	CompletionRate        float64     `json:"completionRate" yaml:"completionRate"`
	AverageActualHours    float64     `json:"averageActualHours" yaml:"averageActualHours"`
	AverageCompletionTime float64     `json:"averageCompletionHours" yaml:"averageCompletionHours"`
	ProductivityScore     float64     `json:"productivityScore" yaml:"productivityScore"`
	CompletionDates       []time.Time `json:"completionDates" yaml:"completionDates"`
}

// CompletionRate is completed/total, or 0 for an empty slice.
func CompletionRate(tasks []model.Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	return float64(countStatus(tasks, model.StatusCompleted)) / float64(len(tasks))
}

// AverageActualHours is the mean actualHours over completed tasks that
// recorded one. It is 0 when no such task exists.
func AverageActualHours(tasks []model.Task) float64 {
	var sum float64
	var n int
	for _, t := range tasks {
		if t.Status == model.StatusCompleted && t.ActualHours != nil {
			sum += *t.ActualHours
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageCompletionTime is the mean number of hours between creation and
// completion, 0 when nothing is completed.
func AverageCompletionTime(tasks []model.Task) float64 {
	var sum float64
	var n int
	for _, t := range tasks {
		if t.Status == model.StatusCompleted && t.CompletedAt != nil {
			sum += t.CompletedAt.Sub(t.CreatedAt).Hours()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ProductivityScore is the share (0-100) of estimated hours that belongs to
// completed tasks.
func ProductivityScore(tasks []model.Task) float64 {
	var total, done float64
	for _, t := range tasks {
		total += t.EstimatedHours
		if t.Status == model.StatusCompleted {
			done += t.EstimatedHours
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(done/total*1000) / 10
}

// CategoryBreakdown groups tasks by category, sorted by category name.
func CategoryBreakdown(tasks []model.Task) []CategoryMetrics {
	type acc struct {
		m       CategoryMetrics
		rankSum int
	}
	groups := make(map[string]*acc)
	for _, t := range tasks {
		g, ok := groups[t.Category]
		if !ok {
			g = &acc{m: CategoryMetrics{Category: t.Category}}
			groups[t.Category] = g
		}
		g.m.TaskCount++
		g.m.EstimatedHours += t.EstimatedHours
		g.rankSum += t.Priority.Rank()
		if t.Status == model.StatusCompleted {
			g.m.CompletedCount++
		}
		if t.ActualHours != nil {
			g.m.ActualHours += *t.ActualHours
		}
	}

	out := make([]CategoryMetrics, 0, len(groups))
	for _, g := range groups {
		avg := float64(g.rankSum) / float64(g.m.TaskCount)
		g.m.AveragePriority = model.PriorityFromRank(int(math.Round(avg)))
		out = append(out, g.m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// PriorityBreakdown has one row per priority, low to urgent.
func PriorityBreakdown(tasks []model.Task) []PriorityMetrics {
	out := make([]PriorityMetrics, len(model.Priorities))
	for i, p := range model.Priorities {
		out[i].Priority = p
	}
	for _, t := range tasks {
		rank := t.Priority.Rank()
		if rank == 0 {
			continue
		}
		out[rank-1].TaskCount++
		if t.Status == model.StatusCompleted {
			out[rank-1].CompletedCount++
		}
	}
	return out
}

// Summarize computes every headline metric from one snapshot.
func Summarize(tasks []model.Task, now time.Time) Summary {
	s := Summary{
		Total:                 len(tasks),
		Pending:               countStatus(tasks, model.StatusPending),
		InProgress:            countStatus(tasks, model.StatusInProgress),
		Completed:             countStatus(tasks, model.StatusCompleted),
		Cancelled:             countStatus(tasks, model.StatusCancelled),
		CompletionRate:        CompletionRate(tasks),
		AverageActualHours:    AverageActualHours(tasks),
		AverageCompletionTime: AverageCompletionTime(tasks),
		ProductivityScore:     ProductivityScore(tasks),
		CompletionDates:       []time.Time{},
	}
	for _, t := range tasks {
		if t.Overdue(now) {
			s.Overdue++
		}
		if t.CompletedAt != nil {
			s.CompletionDates = append(s.CompletionDates, *t.CompletedAt)
		}
	}
	sort.Slice(s.CompletionDates, func(i, j int) bool { return s.CompletionDates[i].Before(s.CompletionDates[j]) })
	return s
}

func countStatus(tasks []model.Task, status model.Status) int {
	n := 0
	for _, t := range tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}
