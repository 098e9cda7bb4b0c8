// Package logx is the leveled status logger shared by every command.
//
// It mirrors the title/info/warning/error levels of the upstream Python
// logger, backed by logrus instead of bare fmt.Println so verbosity and
// formatting are consistent with the rest of the stack's library choices.
package logx

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.Mutex
	log = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		FullTimestamp:    false,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose switches between the default INFO level and DEBUG, matching
// the OPS2DEB_VERBOSE env var semantics (§6).
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// Title logs a top-level phase banner (e.g. "Generating 4 packages").
func Title(format string, args ...any) {
	log.Infof(format, args...)
}

// Debug logs fine-grained progress, only visible when verbose is enabled.
func Debug(format string, args ...any) {
	log.Debugf(format, args...)
}

// Info logs a normal progress line.
func Info(format string, args ...any) {
	log.Infof(format, args...)
}

// Warn logs a recoverable problem.
func Warn(format string, args ...any) {
	log.Warnf(format, args...)
}

// Error logs a failure that will be surfaced in the run report.
func Error(format string, args ...any) {
	log.Errorf(format, args...)
}

// WithField returns an entry pre-tagged with a blueprint coordinate, used by
// per-blueprint pipeline stages so every log line can be grepped by name.
func WithField(key string, value any) *logrus.Entry {
	return log.WithField(key, value)
}
