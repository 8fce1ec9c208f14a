// Package logger provides the subsystem-tagged coloured logging used
// across the engine, the same shape as the original monitor's per-
// subsystem loggers but built on the standard log package.
package logger

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
)

// Logger prefixes every line with a coloured subsystem tag.
type Logger struct {
	prefix string
	color  *color.Color
	std    *log.Logger
}

var subsystemColors = map[string]*color.Color{
	"DECODER":    color.New(color.FgCyan),
	"ENGINE":     color.New(color.FgGreen, color.Bold),
	"SCHEDULER":  color.New(color.FgMagenta),
	"STREAM":     color.New(color.FgYellow),
	"CONNECTION": color.New(color.FgBlue),
	"AUDIT":      color.New(color.FgWhite),
	"ADMIN":      color.New(color.FgHiBlue),
}

// New returns a Logger tagged with subsystem, e.g. New("ENGINE").
func New(subsystem string) *Logger {
	c, ok := subsystemColors[subsystem]
	if !ok {
		c = color.New(color.FgWhite)
	}
	return &Logger{
		prefix: "[" + subsystem + "]",
		color:  c,
		std:    log.New(os.Stdout, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.std.Print(l.color.Sprintf("%s %s", l.prefix, fmt.Sprintf(format, args...)))
}

func (l *Logger) Println(args ...interface{}) {
	l.std.Print(l.color.Sprintf("%s %s", l.prefix, fmt.Sprintln(args...)))
}

func (l *Logger) Error(format string, args ...interface{}) {
	red := color.New(color.FgRed, color.Bold)
	l.std.Print(red.Sprintf("%s %s", l.prefix, fmt.Sprintf(format, args...)))
}
