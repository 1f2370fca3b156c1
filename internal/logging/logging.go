// Package logging configures the shared rotating log file. The log captures
// request traffic and execution events without cluttering the terminal.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// DevMode mirrors the CLAUDE_CLI_DEBUG environment switch; when set,
	// log output is duplicated to stderr.
	DevMode = os.Getenv("CLAUDE_CLI_DEBUG") == "1"

	// Logger is the shared logger instance. Setup replaces it; until then
	// it discards everything.
	Logger = log.New(io.Discard, "", 0)
)

// Setup points the shared logger at a rotating file. The returned closer
// flushes and closes the underlying file.
func Setup(path string) (io.Closer, error) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	var out io.Writer = rotator
	if DevMode {
		out = io.MultiWriter(rotator, os.Stderr)
	}
	Logger = log.New(out, "claude-cli ", log.LstdFlags|log.Lmicroseconds)
	return rotator, nil
}

// DevLog logs only when CLAUDE_CLI_DEBUG=1.
func DevLog(format string, args ...interface{}) {
	if DevMode {
		Logger.Printf("[DEV] "+format, args...)
	}
}

// ErrorLog records errors worth keeping in the log file.
func ErrorLog(format string, args ...interface{}) {
	Logger.Printf("[ERROR] "+format, args...)
}
