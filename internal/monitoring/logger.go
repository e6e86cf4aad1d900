// Package monitoring holds the operator-visible diagnostic stream used by the
// acquisition pipeline for non-fatal errors.
package monitoring

import (
	"log"
	"os"
)

var opsLog = log.New(os.Stderr, "multimeter: ", log.LstdFlags)

// Logf is the package-level diagnostic logger. It defaults to a stderr logger
// but may be replaced by SetLogger. Tests or production code can redirect or
// mute it.
var Logf func(format string, v ...interface{}) = opsLog.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Reportf sends an operator message tagged with the failing stage. The stage
// is one of the pipeline step names ("query", "read", "normalize", ...).
func Reportf(stage string, format string, v ...interface{}) {
	Logf("[%s] "+format, append([]interface{}{stage}, v...)...)
}
