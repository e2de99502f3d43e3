package badger

import (
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// storeLogger routes badger's printf-style logs through zap. Badger is
// chatty at info level (compaction, value log GC), so its info output is
// demoted to debug; warnings and errors keep their level.
type storeLogger struct {
	sugar *zap.SugaredLogger
}

var _ badgerdb.Logger = (*storeLogger)(nil)

func newStoreLogger(logger *zap.Logger) *storeLogger {
	return &storeLogger{sugar: logger.Sugar().With("component", "badger")}
}

// Badger terminates its messages with a newline; strip it so entries
// render as single zap lines.
func render(format string, args ...interface{}) string {
	return strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
}

func (l *storeLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Error(render(format, args...))
}

func (l *storeLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warn(render(format, args...))
}

func (l *storeLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debug(render(format, args...))
}

func (l *storeLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debug(render(format, args...))
}
