// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or file path
	Level  string // "debug", "info", "warn", "error"
	Format string // "console" or "json"; files are always JSON
	File   string // log file path (used when Output is not stdout/stderr)
}

// Init replaces the global logger. Debug level adds the caller to each line.
func Init(cfg Config) error {
	out, err := openOutput(cfg)
	if err != nil {
		return err
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	if isConsole(cfg) {
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
		if level == zerolog.DebugLevel {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i any) string { return "(" + i.(string) + ")" }
		}
		out = cw
	}

	ctx := zerolog.New(out).With().Timestamp()
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()

	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	return nil
}

func openOutput(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	return os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// shortCaller keeps the last directory and the file name.
func shortCaller(_ uintptr, file string, line int) string {
	dir := filepath.Base(filepath.Dir(file))
	return filepath.Join(dir, filepath.Base(file)) + ":" + strconv.Itoa(line)
}

// isConsole reports whether output goes to a terminal in console format.
func isConsole(cfg Config) bool {
	if strings.EqualFold(cfg.Format, "json") {
		return false
	}
	switch strings.ToLower(cfg.Output) {
	case "stdout", "stderr", "":
		return true
	default:
		return false
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
