package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Init configures the shared logger. JSON output is used in release mode.
func Init(json bool, level string) {
	if json {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

func L() *logrus.Logger {
	return base
}

// WithContext returns an entry tagged with the component and action.
func WithContext(component, action string) *logrus.Entry {
	return base.WithFields(logrus.Fields{
		"component": component,
		"action":    action,
	})
}
