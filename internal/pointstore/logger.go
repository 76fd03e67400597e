package pointstore

import (
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger routes badger's printf-style logging into slog. Info is
// demoted to debug; badger is chatty on open and compaction.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(trim(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(trim(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(trim(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(trim(format, args...))
}

func trim(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
