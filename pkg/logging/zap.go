package logging

import "go.uber.org/zap"

// zapLogger adapts *zap.SugaredLogger to the Logger interface. This is the
// default backend for cmd/rookd and cmd/rookctl.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZap builds a Logger backed by a production zap configuration.
func NewZap() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: z.Sugar()}, nil
}

// NewZapFrom wraps an already-constructed zap.Logger.
func NewZapFrom(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Debug(msg string, keyvals ...any) { l.s.Debugw(msg, keyvals...) }
func (l *zapLogger) Info(msg string, keyvals ...any)  { l.s.Infow(msg, keyvals...) }
func (l *zapLogger) Warn(msg string, keyvals ...any)  { l.s.Warnw(msg, keyvals...) }
func (l *zapLogger) Error(msg string, keyvals ...any) { l.s.Errorw(msg, keyvals...) }

func (l *zapLogger) With(keyvals ...any) Logger {
	return &zapLogger{s: l.s.With(keyvals...)}
}
