package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/ptask/internal/export"
	"github.com/BuzzLyutic/ptask/internal/model"
	"github.com/BuzzLyutic/ptask/internal/service"
)

func (a *App) statsCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show productivity statistics over all tasks",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(stats, func(w io.Writer) { a.styles.renderStats(w, stats, detailed) })
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include category and priority breakdowns")
	return cmd
}

func (a *App) reportCmd() *cobra.Command {
	var (
		period, format string
		detailed       bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a productivity report for a period",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if a.flags.jsonOut {
				format = string(export.FormatJSON)
			}
			var out export.Format
			if format != "table" {
				f, err := export.ParseFormat(format)
				if err != nil {
					return &model.ValidationError{Field: "format", Value: format, Reason: "must be one of table, json, csv, yaml"}
				}
				out = f
			}

			report, err := a.svc.Report(cmd.Context(), service.ReportRequest{Period: period})
			if err != nil {
				return err
			}
			if out == "" {
				a.styles.renderReport(a.out, report, detailed)
				return nil
			}
			return export.Report(a.out, out, report)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&period, "period", "p", "week", "report period: day, week, month, year")
	f.StringVarP(&format, "format", "f", "table", "output format: table, json, csv, yaml")
	f.BoolVar(&detailed, "detailed", false, "include category and priority breakdowns")
	return cmd
}

func (a *App) exportCmd() *cobra.Command {
	var req service.ExportRequest
	var output string

	cmd := &cobra.Command{
		Use:   "export <format>",
		Short: "Export tasks as json, csv or yaml",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Format = args[0]
			res, err := a.svc.Export(cmd.Context(), req)
			if err != nil {
				return err
			}

			if output == "" {
				return export.Tasks(a.out, res.Format, res.Tasks)
			}
			if info, err := os.Stat(output); err == nil && info.IsDir() {
				output = filepath.Join(output, "tasks."+res.Format.Extension())
			}
			if err := writeFile(output, func(w io.Writer) error {
				return export.Tasks(w, res.Format, res.Tasks)
			}); err != nil {
				return err
			}

			a.logger.Info("tasks exported", zap.String("path", output), zap.Int("tasks", len(res.Tasks)))
			summary := struct {
				Path   string `json:"path"`
				Format string `json:"format"`
				Tasks  int    `json:"tasks"`
			}{output, string(res.Format), len(res.Tasks)}
			return a.print(summary, func(w io.Writer) {
				fmt.Fprintln(w, a.styles.ok.Render(fmt.Sprintf("Exported %d tasks to %s", len(res.Tasks), output)))
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "output file or directory (default stdout)")
	f.StringVar(&req.Status, "filter", "", "only tasks with this status")
	f.StringVar(&req.DateRange, "date-range", "", "YYYY-MM-DD:YYYY-MM-DD, created or completed within")
	return cmd
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return &model.IOError{Op: "create", Path: path, Err: err}
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &model.IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

func (a *App) backupCmd() *cobra.Command {
	var req service.BackupRequest

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the task file to a backup",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Backup(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(res, func(w io.Writer) {
				fmt.Fprintln(w, a.styles.ok.Render(fmt.Sprintf("Backed up %d tasks to %s", res.Tasks, res.Path)))
			})
		},
	}
	cmd.Flags().StringVarP(&req.Path, "path", "p", "", "backup file (default <data-file>.<timestamp>.bak)")
	return cmd
}
