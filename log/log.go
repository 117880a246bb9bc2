// Package log is a thin, process-wide wrapper around zerolog providing
// the level-named helpers (Infof/Debugf/Warnf/Errorf, Debugw/Warnw, Error)
// the rest of this module logs through, mirroring the log package's test
// surface (log_test.go) from the teacher: Init(level, output, config),
// the same helper set, and a panicOnInvalidChars safety check on
// formatted output.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// fatalExit is os.Exit by default; tests can swap it to observe Fatal
// without killing the test binary.
var fatalExit = os.Exit

var (
	mu     sync.Mutex
	logger zerolog.Logger

	// panicOnInvalidChars guards against accidentally logging raw
	// binary data formatted as %s; it is a package var (rather than a
	// constant) purely so tests can flip it.
	panicOnInvalidChars = true

	// logTestWriter/logTestWriterName let tests redirect output without
	// touching the filesystem or stderr.
	logTestWriter     io.Writer = io.Discard
	logTestWriterName           = "test"
)

func init() {
	Init("info", "stderr", nil)
}

// Init (re)configures the global logger: level is one of
// debug/info/warn/error, output is "stderr", "stdout", or the sentinel
// logTestWriterName used by tests.
func Init(level, output string, config *zerolog.ConsoleWriter) {
	mu.Lock()
	defer mu.Unlock()

	var w io.Writer
	switch output {
	case "stdout":
		w = os.Stdout
	case logTestWriterName:
		w = logTestWriter
	default:
		w = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Level returns the logger's current minimum level as a string.
func Level() string {
	mu.Lock()
	defer mu.Unlock()
	return logger.GetLevel().String()
}

func checkFormatted(s string) {
	if !panicOnInvalidChars {
		return
	}
	if !utf8.ValidString(s) {
		panic(fmt.Sprintf("log: formatted output contains invalid UTF-8: %q", s))
	}
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	checkFormatted(s)
	mu.Lock()
	logger.Info().Msg(s)
	mu.Unlock()
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	checkFormatted(s)
	mu.Lock()
	logger.Debug().Msg(s)
	mu.Unlock()
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	checkFormatted(s)
	mu.Lock()
	logger.Warn().Msg(s)
	mu.Unlock()
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	checkFormatted(s)
	mu.Lock()
	logger.Error().Msg(s)
	mu.Unlock()
}

// Error logs err directly at error level.
func Error(err error) {
	mu.Lock()
	logger.Error().Err(err).Send()
	mu.Unlock()
}

// Fatal logs err at error level and terminates the process, used by
// command-line entry points that cannot recover from a setup failure.
func Fatal(err error) {
	mu.Lock()
	logger.Error().Err(err).Send()
	mu.Unlock()
	fatalExit(1)
}

// kv logs a message with structured key/value pairs at the given level.
func kv(event *zerolog.Event, msg string, keysAndValues ...any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		event = event.Interface(key, keysAndValues[i+1])
	}
	event.Msg(msg)
}

// Debugw logs msg at debug level with alternating key/value pairs.
func Debugw(msg string, keysAndValues ...any) {
	mu.Lock()
	kv(logger.Debug(), msg, keysAndValues...)
	mu.Unlock()
}

// Warnw logs msg at warn level with alternating key/value pairs.
func Warnw(msg string, keysAndValues ...any) {
	mu.Lock()
	kv(logger.Warn(), msg, keysAndValues...)
	mu.Unlock()
}
