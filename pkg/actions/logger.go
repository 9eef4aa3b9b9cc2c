package actions

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger writes GitHub Actions workflow commands through the standard log package.
// A nil *Logger discards everything, so components can be used without one.
type Logger struct {
	l     *log.Logger
	debug bool
}

// NewLogger returns a Logger writing to w. Debug lines are emitted only when debug
// is true or the runner has step debugging enabled (RUNNER_DEBUG=1).
func NewLogger(w io.Writer, debug bool) *Logger {
	return &Logger{
		l:     log.New(w, "", 0),
		debug: debug || os.Getenv("RUNNER_DEBUG") == "1",
	}
}

func (lg *Logger) Debugf(format string, args ...any) {
	if lg == nil || !lg.debug {
		return
	}
	lg.command("debug", fmt.Sprintf(format, args...))
}

func (lg *Logger) Infof(format string, args ...any) {
	if lg == nil {
		return
	}
	lg.l.Print(fmt.Sprintf(format, args...))
}

func (lg *Logger) Warningf(format string, args ...any) {
	if lg == nil {
		return
	}
	lg.command("warning", fmt.Sprintf(format, args...))
}

func (lg *Logger) Errorf(format string, args ...any) {
	if lg == nil {
		return
	}
	lg.command("error", fmt.Sprintf(format, args...))
}

func (lg *Logger) command(name, msg string) {
	lg.l.Printf("::%s::%s", name, escapeData(msg))
}

// escapeData encodes the characters the runner treats as command separators.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}
