package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BuzzLyutic/ptask/internal/metrics"
	"github.com/BuzzLyutic/ptask/internal/model"
	"github.com/BuzzLyutic/ptask/internal/service"
)

const dateLayout = "2006-01-02"

type styles struct {
	renderer *lipgloss.Renderer
	title    lipgloss.Style
	ok       lipgloss.Style
	fail     lipgloss.Style
	dim      lipgloss.Style
	label    lipgloss.Style
	header   lipgloss.Style
	status   map[model.Status]lipgloss.Style
	priority map[model.Priority]lipgloss.Style
}

// newStyles binds styles to out so colour is dropped when out is not a terminal.
func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		renderer: r,
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		ok:       r.NewStyle().Foreground(lipgloss.Color("10")),
		fail:     r.NewStyle().Foreground(lipgloss.Color("9")),
		dim:      r.NewStyle().Faint(true),
		label:    r.NewStyle().Bold(true).Width(14),
		header:   r.NewStyle().Bold(true).Padding(0, 1),
		status: map[model.Status]lipgloss.Style{
			model.StatusPending:    r.NewStyle().Foreground(lipgloss.Color("11")),
			model.StatusInProgress: r.NewStyle().Foreground(lipgloss.Color("12")),
			model.StatusCompleted:  r.NewStyle().Foreground(lipgloss.Color("10")),
			model.StatusCancelled:  r.NewStyle().Foreground(lipgloss.Color("9")),
		},
		priority: map[model.Priority]lipgloss.Style{
			model.PriorityLow:    r.NewStyle().Foreground(lipgloss.Color("8")),
			model.PriorityMedium: r.NewStyle().Foreground(lipgloss.Color("11")),
			model.PriorityHigh:   r.NewStyle().Foreground(lipgloss.Color("208")),
			model.PriorityUrgent: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		},
	}
}

func (s styles) statusText(st model.Status) string {
	return s.status[st].Render(string(st))
}

func (s styles) priorityText(p model.Priority) string {
	return s.priority[p].Render(string(p))
}

func (s styles) newTable(headers ...string) *table.Table {
	cell := s.renderer.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.dim).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return cell
		})
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func (s styles) renderTasks(w io.Writer, tasks []model.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, s.dim.Render("No tasks found"))
		return
	}

	fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Found %d tasks", len(tasks))))
	t := s.newTable("ID", "Description", "Status", "Priority", "Category", "Due", "Est.")
	for _, task := range tasks {
		due := formatDate(task.DueDate)
		if task.Overdue(now) {
			due = s.fail.Render(due + " !")
		}
		t.Row(task.ID, task.Description, s.statusText(task.Status), s.priorityText(task.Priority),
			task.Category, due, formatHours(task.EstimatedHours))
	}
	fmt.Fprintln(w, t.String())
}

func (s styles) renderTask(w io.Writer, t model.Task) {
	row := func(label, value string) {
		fmt.Fprintln(w, s.label.Render(label)+value)
	}

	fmt.Fprintln(w, s.title.Render(t.Description))
	row("ID", t.ID)
	row("Status", s.statusText(t.Status))
	row("Priority", s.priorityText(t.Priority))
	row("Category", t.Category)
	row("Created", t.CreatedAt.Local().Format(time.DateTime))
	row("Updated", t.UpdatedAt.Local().Format(time.DateTime))
	row("Due", formatDate(t.DueDate))
	if t.CompletedAt != nil {
		row("Completed", t.CompletedAt.Local().Format(time.DateTime))
	}
	row("Estimate", formatHours(t.EstimatedHours))
	if t.ActualHours != nil {
		row("Actual", formatHours(*t.ActualHours))
	}
	if len(t.Tags) > 0 {
		row("Tags", strings.Join(t.Tags, ", "))
	}
	if t.Assignee != "" {
		row("Assignee", t.Assignee)
	}
	if t.Notes != "" {
		row("Notes", t.Notes)
	}
}

func (s styles) renderSummary(w io.Writer, sum metrics.Summary) {
	t := s.newTable("Metric", "Value")
	t.Row("Total tasks", strconv.Itoa(sum.Total))
	t.Row("Pending", strconv.Itoa(sum.Pending))
	t.Row("In progress", strconv.Itoa(sum.InProgress))
	t.Row("Completed", strconv.Itoa(sum.Completed))
	t.Row("Cancelled", strconv.Itoa(sum.Cancelled))
	t.Row("Overdue", strconv.Itoa(sum.Overdue))
	t.Row("Completion rate", formatPercent(sum.CompletionRate*100))
	t.Row("Avg actual hours", strconv.FormatFloat(sum.AverageActualHours, 'f', 2, 64))
	t.Row("Avg completion hours", strconv.FormatFloat(sum.AverageCompletionTime, 'f', 2, 64))
	t.Row("Productivity score", formatPercent(sum.ProductivityScore))
	fmt.Fprintln(w, t.String())
}

func (s styles) renderBreakdowns(w io.Writer, cats []metrics.CategoryMetrics, prios []metrics.PriorityMetrics) {
	fmt.Fprintln(w, s.title.Render("By category"))
	ct := s.newTable("Category", "Tasks", "Done", "Est.", "Actual", "Avg priority")
	for _, c := range cats {
		ct.Row(c.Category, strconv.Itoa(c.TaskCount), strconv.Itoa(c.CompletedCount),
			formatHours(c.EstimatedHours), formatHours(c.ActualHours), s.priorityText(c.AveragePriority))
	}
	fmt.Fprintln(w, ct.String())

	fmt.Fprintln(w, s.title.Render("By priority"))
	pt := s.newTable("Priority", "Tasks", "Done")
	for _, p := range prios {
		pt.Row(s.priorityText(p.Priority), strconv.Itoa(p.TaskCount), strconv.Itoa(p.CompletedCount))
	}
	fmt.Fprintln(w, pt.String())
}

func (s styles) renderReport(w io.Writer, r metrics.Report, detailed bool) {
	fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Productivity report (%s)", r.Period)))
	fmt.Fprintln(w, s.dim.Render(r.Start.Local().Format(time.DateTime)+" - "+r.End.Local().Format(time.DateTime)))
	s.renderSummary(w, r.Summary)
	if detailed {
		s.renderBreakdowns(w, r.Categories, r.Priorities)
	}
}

func (s styles) renderStats(w io.Writer, st service.Stats, detailed bool) {
	fmt.Fprintln(w, s.title.Render("Productivity statistics"))
	s.renderSummary(w, st.Summary)
	if detailed {
		s.renderBreakdowns(w, st.Categories, st.Priorities)
	}
}
