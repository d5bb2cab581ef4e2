package compute

import (
	"sync"

	"go.uber.org/zap"
)

// Level is the severity of a backend log record.
type Level uint8

const (
	LevelInfo  Level = 1
	LevelError Level = 2
)

var (
	logMux sync.RWMutex
	log    *zap.Logger

	oncer sync.Once
)

// SetLogCallback registers logger as the destination of backend log records.
// Only the first registration takes effect. It reports whether this call registered the logger.
func SetLogCallback(logger *zap.Logger) bool {
	registered := false
	oncer.Do(func() {
		logMux.Lock()
		log = logger.Named("backend")
		logMux.Unlock()
		registered = true
	})
	return registered
}

// Log delivers a record to the registered logger. Records are dropped when no
// logger is registered or the logger filters their level.
func Log(level Level, msg string, fields ...zap.Field) {
	logMux.RLock()
	defer logMux.RUnlock()
	if log == nil {
		return
	}

	switch level {
	case LevelError:
		log.Error(msg, fields...)
	default:
		log.Info(msg, fields...)
	}
}
