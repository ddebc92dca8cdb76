package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/ptask/internal/config"
	"github.com/BuzzLyutic/ptask/internal/model"
)

func (a *App) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ptask configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a starter config file",
		Args:        exactArgs(0),
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.flags.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteDefault(path, force); err != nil {
				return &model.ValidationError{Field: "config", Value: path, Reason: err.Error()}
			}
			return a.print(map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintln(w, a.styles.ok.Render("Config written to "+path))
			})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.jsonOut {
				return a.print(struct {
					DataFile        string `json:"dataFile"`
					LogLevel        string `json:"logLevel"`
					LogFile         string `json:"logFile"`
					LockTimeout     string `json:"lockTimeout"`
					Workers         int    `json:"workers"`
					DefaultCategory string `json:"defaultCategory"`
				}{a.cfg.DataFile, a.cfg.LogLevel, a.cfg.LogFile, a.cfg.LockTimeout.String(), a.cfg.Workers, a.cfg.DefaultCategory}, nil)
			}
			fmt.Fprintln(a.out, "# Effective configuration (file + environment + flags)")
			return config.Encode(a.out, a.cfg)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        exactArgs(0),
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(map[string]string{"version": a.version}, func(w io.Writer) {
				fmt.Fprintln(w, "ptask "+a.version)
			})
		},
	}
}
