package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

var discard = newDiscard()

func newDiscard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	l.ExitFunc = func(int) {}
	return NewLogrusAdapter(logrus.NewEntry(l))
}

// NewNullLogger returns a Logger that drops everything, for components
// created without one. Fatal does not exit.
func NewNullLogger() Logger {
	return discard
}
