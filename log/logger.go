package log

import (
	"io"
	"os"

	"github.com/op/go-logging"
)

type Level logging.Level

// The levels that can be passed to the SetLevel function.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var levelMap = map[Level]logging.Level{
	Debug:   logging.DEBUG,
	Info:    logging.INFO,
	Notice:  logging.NOTICE,
	Warning: logging.WARNING,
	Error:   logging.ERROR,
}

// The format applied to all log records.
var format = logging.MustStringFormatter(
	`%{color}%{time:15:04:05.000} %{level:.4s} [%{module}]%{color:reset} %{message}`,
)

// The shared leveled backend; SetLevel adjusts its verbosity for all loggers.
var leveledBackend logging.LeveledBackend

// Logger is implemented by the named loggers handed out by New.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// Create a named logger. Loggers share a common backend so verbosity and
// output sink changes apply to all of them.
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// Redirect log output to the given sink, preserving the current level.
func SetSink(sink io.Writer) {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(sink, "", 0), format)
	leveledBackend = logging.AddModuleLevel(backend)
	leveledBackend.SetLevel(levelMap[Notice], "")
	logging.SetBackend(leveledBackend)
}

// Set the verbosity for all loggers.
func SetLevel(level Level) {
	if mapped, exists := levelMap[level]; exists {
		leveledBackend.SetLevel(mapped, "")
	}
}

func init() {
	SetSink(os.Stdout)
}
