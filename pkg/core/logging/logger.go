// Package logging provides the structured log line required by §7: one
// entry per batch, carrying stage, academic year, rows affected, and
// elapsed time. The interface/implementation split mirrors
// yairfalse-vaino's internal/logger package.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow surface every engine and the orchestrator depend on.
type Logger interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string, err error)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// logrusLogger is the only production implementation; a no-op or buffering
// Logger is trivial to substitute in tests.
type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger that writes structured fields via logrus, formatted
// as text with a timestamp (the default the teacher's dependency pulls in).
func New() Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Info(msg string)  { l.entry.Info(msg) }
func (l *logrusLogger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *logrusLogger) Error(msg string, err error) {
	l.entry.WithError(err).Error(msg)
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// BatchLogger logs the one line per batch that §7 mandates: stage, year,
// rows affected, elapsed time.
func BatchLogger(log Logger, stage, year string, rowsAffected int, elapsed time.Duration) {
	log.WithFields(map[string]interface{}{
		"stage":         stage,
		"academic_year": year,
		"rows_affected": rowsAffected,
		"elapsed_ms":    elapsed.Milliseconds(),
	}).Info("batch complete")
}
