// Package logging configures the process logger
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the logrus standard logger and returns it. Packages that log
// without an injected logger write through the same sink.
func Setup(level logrus.Level, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := logrus.StandardLogger()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

// ParseLevel returns the level named by s, falling back to debug
func ParseLevel(s string) logrus.Level {
	if s == "" {
		return logrus.DebugLevel
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.DebugLevel
	}
	return lvl
}
