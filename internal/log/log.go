// Package log wraps go-kit's structured logger behind the Debug/Info/Error
// method set every component in this daemon is written against, the same
// convention CometBFT/tenderdash's own libs/log package follows on top of
// the identical go-kit dependency.
package log

import (
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Logger is the leveled, structured key/value logger every component takes
// at construction.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
}

type kitLogger struct {
	l kitlog.Logger
}

// NewNopLogger discards everything, for tests that don't care about log
// output.
func NewNopLogger() Logger {
	return kitLogger{l: kitlog.NewNopLogger()}
}

func (k kitLogger) Debug(msg string, kv ...interface{}) {
	_ = level.Debug(k.l).Log(prepend(msg, kv)...)
}

func (k kitLogger) Info(msg string, kv ...interface{}) {
	_ = level.Info(k.l).Log(prepend(msg, kv)...)
}

func (k kitLogger) Error(msg string, kv ...interface{}) {
	_ = level.Error(k.l).Log(prepend(msg, kv)...)
}

func (k kitLogger) With(kv ...interface{}) Logger {
	return kitLogger{l: kitlog.With(k.l, kv...)}
}

func prepend(msg string, kv []interface{}) []interface{} {
	out := make([]interface{}, 0, len(kv)+2)
	out = append(out, "msg", msg)
	return append(out, kv...)
}

// FilterLevel maps the -v verbosity level (0..2) to a go-kit/log/level
// option: 0 is info-and-above, anything higher is debug-and-above (go-kit
// has no finer level than debug).
func FilterLevel(verbosity int) level.Option {
	if verbosity <= 0 {
		return level.AllowInfo()
	}
	return level.AllowDebug()
}

// NewFilteredLogfmtLogger is go-kit's logfmt logger plus a verbosity-derived
// level filter, the shape cmd/lightanchord wires from its integer
// `-v/--verbosity` flag.
func NewFilteredLogfmtLogger(w *os.File, verbosity int) Logger {
	base := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC)
	filtered := level.NewFilter(base, FilterLevel(verbosity))
	return kitLogger{l: filtered}
}
