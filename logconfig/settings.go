package logconfig

import (
	"strings"

	"github.com/cockroachdb/errors"
	myLogger "github.com/sirupsen/logrus"
)

// This output format is used in the test (has terminal).
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(textFormatter())
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(textFormatter())
}

// This output format is used in production.
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
}

// ConfigLogger applies a level name ("debug", "info", ...) and a format
// ("text" or "json") to the standard logger.
func ConfigLogger(level, format string) error {
	lvl := myLogger.InfoLevel
	if level != "" {
		parsed, err := myLogger.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "log level %q", level)
		}
		lvl = parsed
	}
	myLogger.SetLevel(lvl)
	myLogger.SetReportCaller(lvl >= myLogger.DebugLevel)

	switch strings.ToLower(format) {
	case "", "text":
		myLogger.SetFormatter(textFormatter())
	case "json":
		myLogger.SetFormatter(&myLogger.JSONFormatter{})
	default:
		return errors.Newf("unknown log format %q", format)
	}
	return nil
}

func textFormatter() *myLogger.TextFormatter {
	return &myLogger.TextFormatter{
		ForceColors:            true,
		FullTimestamp:          true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	}
}
