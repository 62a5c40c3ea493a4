// Package logging holds the logger shared by the moldsmith packages.
// Library code is silent by default; binaries install a real logger with
// SetLogger.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var loggerPtr atomic.Pointer[logrus.Logger]

func init() {
	loggerPtr.Store(newDiscard())
}

func newDiscard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// SetLogger installs l for all packages. Passing nil restores the silent
// default. Safe for concurrent use.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newDiscard()
	}
	loggerPtr.Store(l)
}

// Logger returns the active logger.
func Logger() *logrus.Logger {
	return loggerPtr.Load()
}

// New builds a stderr logger for the given level name ("debug", "info",
// ...). json selects the JSON formatter.
func New(level string, json bool) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
