package metrics

import "go.uber.org/zap"

// logger is the small structured-logging seam the library writes through.
// It is a small interface so embedders can plug in
// any backend; the default is a no-op logger, and NewZapLogger wraps
// go.uber.org/zap.
type logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NewNoopLogger returns a logger that discards everything. Useful for tests
// and embedders who want the library silent on its fail-quiet paths.
func NewNoopLogger() logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// zapLogger adapts a *zap.Logger (in SugaredLogger form) to the logger interface.
// It is used only when an embedder passes NewZapLogger to a constructor.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps an existing *zap.Logger. Pass nil to build a production
// default via zap.NewProduction (falling back to zap.NewNop on construction error).
func NewZapLogger(l *zap.Logger) logger {
	if l == nil {
		built, err := zap.NewProduction()
		if err != nil {
			built = zap.NewNop()
		}
		l = built
	}
	return &zapLogger{s: l.Sugar()}
}

func (z *zapLogger) Debugf(format string, args ...interface{}) { z.s.Debugf(format, args...) }
func (z *zapLogger) Infof(format string, args ...interface{})  { z.s.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...interface{})  { z.s.Warnf(format, args...) }
func (z *zapLogger) Errorf(format string, args ...interface{}) { z.s.Errorf(format, args...) }

// defaultLogger is the logger used when a constructor is not given one explicitly.
// Stays silent on the hot path by default; embedders opt into
// NewZapLogger (or their own logger) for production observability.
func defaultLogger() logger { return NewNoopLogger() }
