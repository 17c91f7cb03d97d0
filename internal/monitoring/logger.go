// Package monitoring routes diagnostics from the library packages
// (magcal, sensors, telemetry). The commands log with the standard log
// package directly.
package monitoring

import "log"

// Logf receives every diagnostic line. Commands leave it on log.Printf;
// tests mute it with SetLogger(nil).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger installs f as Logf, or a logger that drops everything when f
// is nil.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
}
