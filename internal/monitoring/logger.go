// Package monitoring builds the daemon logger and holds the package-level
// diagnostic hook used by low-level helpers.
package monitoring

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logf is the package-level diagnostic logger. It defaults to the logrus
// standard logger but may be replaced by SetLogger. Tests or production code
// can redirect or mute it.
var Logf func(format string, v ...interface{}) = logrus.Debugf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger returns a debug-level logger writing to console. When logFile
// is non-empty the output is duplicated to that file, opened for append.
// The returned closer releases the file.
func NewLogger(console io.Writer, logFile string) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		DisableColors:   logFile != "",
	})

	if logFile == "" {
		log.SetOutput(console)
		return log, nopCloser{}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(console, f))
	return log, f, nil
}
