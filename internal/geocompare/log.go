package geocompare

import "log"

// logf is the package logger, log.Printf unless replaced by SetLogger
var logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
// It must be called before any Manager is created.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		logf = func(string, ...any) {}
		return
	}
	logf = f
}
