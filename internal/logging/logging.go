// Package logging is a small leveled wrapper around the standard logger.
package logging

import (
	"io"
	"log"
	"strings"
)

// Log level constants
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levels = []string{LevelDebug, LevelInfo, LevelWarn, LevelError}

var currentLogLevel = LevelInfo

// SetLevel sets the global logging level. Unknown levels fall back to info.
func SetLevel(level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	if indexOf(level) < 0 {
		level = LevelInfo
	}
	currentLogLevel = level
}

// Level returns the active level.
func Level() string {
	return currentLogLevel
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	if shouldLog(LevelDebug) {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if shouldLog(LevelInfo) {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if shouldLog(LevelWarn) {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if shouldLog(LevelError) {
		log.Printf("[ERROR] "+format, args...)
	}
}

func shouldLog(level string) bool {
	return indexOf(level) >= indexOf(currentLogLevel)
}

func indexOf(level string) int {
	for i, l := range levels {
		if l == level {
			return i
		}
	}
	return -1
}
