// Package log routes diagnostics through logrus. Output goes to stderr unless
// a log file is configured, keeping stdout free for JSON results.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"mediagrab/internal/filesystem"
)

// Options configure Setup.
type Options struct {
	// Level is a logrus level name; unknown values fall back to warn.
	Level string
	JSON  bool
	// File, when set, receives log output instead of stderr.
	File string
}

var logger = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

// Setup configures the shared logger.
func Setup(opts Options) error {
	if opts.File != "" {
		if err := filesystem.API().MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		f, err := filesystem.API().OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
	}

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: opts.File == ""})
	}

	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)
	return nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Enabled reports whether messages at level would be emitted.
func Enabled(level logrus.Level) bool {
	return logger.IsLevelEnabled(level)
}

// WithField returns an entry carrying key=value on every message.
func WithField(key string, value any) *logrus.Entry {
	return logger.WithField(key, value)
}

func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }
