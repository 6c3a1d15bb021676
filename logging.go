package records

import (
	"time"

	"go.uber.org/zap"
)

// ProjectionLogEvent describes one projection call.
type ProjectionLogEvent struct {
	Records      int
	Pairs        int
	OptionsField string
	Duration     time.Duration
	Err          error
	HookErr      error
}

// ProjectionLogger records projection events.
type ProjectionLogger interface {
	LogProjection(ProjectionLogEvent)
}

// ProjectionLoggerFunc adapts a function to ProjectionLogger.
type ProjectionLoggerFunc func(ProjectionLogEvent)

// LogProjection implements ProjectionLogger.
func (f ProjectionLoggerFunc) LogProjection(event ProjectionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopProjectionLogger struct{}

func (noopProjectionLogger) LogProjection(ProjectionLogEvent) {}

// NewZapLogger reports projection events through logger: successful calls at
// debug level, failures at warn level. A nil logger yields a noop logger.
func NewZapLogger(logger *zap.Logger) ProjectionLogger {
	if logger == nil {
		return noopProjectionLogger{}
	}
	return zapProjectionLogger{logger: logger.Named("records")}
}

type zapProjectionLogger struct {
	logger *zap.Logger
}

func (l zapProjectionLogger) LogProjection(event ProjectionLogEvent) {
	fields := []zap.Field{
		zap.Int("records", event.Records),
		zap.Int("pairs", event.Pairs),
		zap.String("options_field", event.OptionsField),
		zap.Duration("duration", event.Duration),
	}
	if event.HookErr != nil {
		l.logger.Warn("activity hooks failed", append(fields, zap.Error(event.HookErr))...)
	}
	if event.Err != nil {
		l.logger.Warn("projection failed", append(fields, zap.Error(event.Err))...)
		return
	}
	l.logger.Debug("records projected", fields...)
}
