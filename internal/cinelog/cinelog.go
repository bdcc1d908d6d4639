// Package cinelog wraps logrus with cinecut's default level/format-from-env
// setup. Adapted from sonic0214-CreativeStudioServer/pkg/logger: same
// level/format knobs, but writes to stderr so a CLI's stdout stays clean
// for --review prompts and piped output.
package cinelog

import (
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// Init configures the package-level Logger from level/format strings
// (typically sourced from internal/config). format is "json" or "text".
func Init(level, format string) {
	Logger = logrus.New()

	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	Logger.SetLevel(lv)

	if format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}

	Logger.SetOutput(os.Stderr)
}

func init() {
	// Always-usable default so packages can log before Init runs (e.g. in
	// tests that never call config.Load).
	Init("info", "text")
}

// NewRunID generates a correlation ID for one orchestrator run, so every
// log line a run emits can be grepped together in a shared log stream
// (e.g. several sources processed back to back). Content-addressed paths
// already make artifacts themselves resumable and collision-free; this ID
// exists purely for log correlation, never for naming an on-disk artifact.
func NewRunID() string {
	return uuid.NewString()
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

func Info(args ...interface{})  { Logger.Info(args...) }
func Infof(f string, a ...interface{}) { Logger.Infof(f, a...) }
func Warn(args ...interface{})  { Logger.Warn(args...) }
func Warnf(f string, a ...interface{}) { Logger.Warnf(f, a...) }
func Error(args ...interface{}) { Logger.Error(args...) }
func Errorf(f string, a ...interface{}) { Logger.Errorf(f, a...) }
func Debug(args ...interface{}) { Logger.Debug(args...) }
func Debugf(f string, a ...interface{}) { Logger.Debugf(f, a...) }
