// Package logging builds the process logger. There is no global logger: main
// constructs one and passes it down.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level   string // debug, info, warn, error
	File    string // optional JSON log file
	Debug   bool   // forces debug on stderr and file
	Verbose bool   // shows info on stderr
	Stderr  io.Writer
}

// New returns a logger with a console core on stderr and, when File is set,
// a JSON core appending to that file. Stderr shows warnings and above unless
// Verbose or Debug lowers it. The returned cleanup flushes and closes the file.
func New(opts Options) (*zap.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	stderrLevel := zapcore.WarnLevel
	switch {
	case opts.Debug:
		stderrLevel = zapcore.DebugLevel
	case opts.Verbose:
		stderrLevel = zapcore.InfoLevel
	}

	out := opts.Stderr
	if out == nil {
		out = os.Stderr
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(out), stderrLevel),
	}

	closeFile := func() {}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			level,
		))
		closeFile = func() { f.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...))
	cleanup := func() {
		_ = logger.Sync()
		closeFile()
	}
	return logger, cleanup, nil
}

func ParseLevel(raw string) (zapcore.Level, error) {
	if strings.TrimSpace(raw) == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil {
		return level, fmt.Errorf("unknown log level %q", raw)
	}
	return level, nil
}
