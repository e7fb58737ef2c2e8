// Package logging provides pre-configured logrus loggers for relic components.
//
// Loggers are configured from the "logging" section of relic.yml, with
// environment variable overrides (RELIC_LOG_LEVEL, RELIC_LOG_CALLER). By
// default each component writes to a date-stamped file under the relic state
// directory, and to stderr when not attached to an interactive terminal.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/relictools/relic/config"
	"github.com/relictools/relic/pkg/paths"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	// Load configuration from relic.yml; absence is fine, defaults apply.
	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	// Configure Level
	levelStr := "info"
	if os.Getenv("RELIC_LOG_LEVEL") != "" {
		levelStr = os.Getenv("RELIC_LOG_LEVEL")
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configure Caller Reporting
	if os.Getenv("RELIC_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	// Configure Formatter
	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	// Configure Output Sinks
	var writers []io.Writer

	if file := openLogFile(component, logCfg, logger); file != nil {
		writers = append(writers, file)
	}

	if shouldLogToStderr(logCfg, logger) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		// Interactive terminal without debug: suppress structured output
		// entirely rather than defaulting to stderr.
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// openLogFile opens the file sink for a component, creating parent
// directories as needed. Returns nil if no file sink could be opened.
func openLogFile(component string, logCfg Config, logger *logrus.Logger) io.Writer {
	var logFilePath string
	if logCfg.File.Enabled && logCfg.File.Path != "" {
		logFilePath = expandPath(logCfg.File.Path)
	} else {
		logFilePath = DefaultLogFilePath(component)
	}
	if logFilePath == "" {
		return nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		if logCfg.File.Enabled {
			logger.Warnf("Failed to create log directory %s: %v", dir, err)
		}
		return nil
	}

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		if logCfg.File.Enabled {
			logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
		}
		return nil
	}
	return file
}

// DefaultLogFilePath returns the date-stamped log file path for a component.
// Exposed so the logs command can locate the files it tails.
func DefaultLogFilePath(component string) string {
	base := paths.LogsDir()
	if base == "" {
		return ""
	}
	dateStr := time.Now().Format("2006-01-02")
	return filepath.Join(base, fmt.Sprintf("%s-%s.log", component, dateStr))
}

// shouldLogToStderr decides whether structured logs go to stderr.
func shouldLogToStderr(logCfg Config, logger *logrus.Logger) bool {
	stderrMode := "auto"
	if logCfg.Format.StructuredToStderr != "" {
		stderrMode = logCfg.Format.StructuredToStderr
	}

	switch stderrMode {
	case "always":
		return true
	case "never":
		return false
	default:
		// "auto": log to stderr when debugging or when output is piped
		// (CI, systemd); stay quiet on an interactive terminal.
		isDebug := os.Getenv("RELIC_DEBUG") == "1" || logger.GetLevel() == logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		return isDebug || !isInteractive
	}
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
