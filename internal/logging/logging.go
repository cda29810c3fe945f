package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger: JSON to stdout, level parsed from level
// (info when it does not parse).
func New(level, service string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		logger.Warnf("invalid LOG_LEVEL %q, using %s", level, lvl)
	}
	logger.SetLevel(lvl)
	return logger.WithField("service", service)
}
