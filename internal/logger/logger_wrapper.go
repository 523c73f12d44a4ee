package logger

import (
	"os"
	"sync"
	"time"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements contracts.Logger on top of zap.
type ZapLogger struct {
	mu     sync.RWMutex
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger creates a JSON production logger writing to stderr.
func NewZapLogger() contracts.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	z := &ZapLogger{level: level}
	if err := z.build("stderr"); err != nil {
		z.logger = zap.NewNop()
	}
	return z
}

// NewWithCore wraps an existing zap core. Used to plug in observers and tees.
func NewWithCore(core zapcore.Core) *ZapLogger {
	return &ZapLogger{
		logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)),
		level:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

func (z *ZapLogger) build(path string) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = z.level
	cfg.OutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return err
	}
	z.mu.Lock()
	old := z.logger
	z.logger = l
	z.mu.Unlock()
	if old != nil {
		_ = old.Sync()
	}
	return nil
}

// Info logs a message at the INFO level
func (z *ZapLogger) Info(msg string, fields ...contracts.Field) {
	z.log(zapcore.InfoLevel, msg, fields...)
}

// Error logs a message at the ERROR level
func (z *ZapLogger) Error(msg string, fields ...contracts.Field) {
	z.log(zapcore.ErrorLevel, msg, fields...)
}

// Debug logs a message at the DEBUG level
func (z *ZapLogger) Debug(msg string, fields ...contracts.Field) {
	z.log(zapcore.DebugLevel, msg, fields...)
}

// Warn logs a message at the WARN level
func (z *ZapLogger) Warn(msg string, fields ...contracts.Field) {
	z.log(zapcore.WarnLevel, msg, fields...)
}

// Fatal logs a message at the FATAL level and terminates the application
func (z *ZapLogger) Fatal(msg string, fields ...contracts.Field) {
	z.log(zapcore.FatalLevel, msg, fields...)
	os.Exit(1)
}

// Field returns a builder for structured fields.
func (z *ZapLogger) Field() contracts.Field {
	return zapField{}
}

// SetLevel sets the minimum level that gets written.
func (z *ZapLogger) SetLevel(level contracts.LogLevel) {
	z.level.SetLevel(toZapLevel(level))
}

// Level returns the current minimum level.
func (z *ZapLogger) Level() contracts.LogLevel {
	return contracts.LogLevel(z.level.Level())
}

// SetDestination redirects output. FileLog needs a path; ConsoleLog goes to stderr.
func (z *ZapLogger) SetDestination(dest contracts.LogDestination, filePath ...string) {
	path := "stderr"
	if dest == contracts.FileLog {
		if len(filePath) == 0 || filePath[0] == "" {
			z.Warn("file log destination requested without a path; keeping current output")
			return
		}
		path = filePath[0]
	}
	if err := z.build(path); err != nil {
		z.Error("failed to change log destination",
			z.Field().String("path", path),
			z.Field().Error("error", err))
	}
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.logger.Sync()
}

func (z *ZapLogger) log(level zapcore.Level, msg string, fields ...contracts.Field) {
	if level < zapcore.FatalLevel && !z.level.Enabled(level) {
		return
	}
	z.mu.RLock()
	l := z.logger
	z.mu.RUnlock()

	if ce := l.Check(level, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func toZapLevel(level contracts.LogLevel) zapcore.Level {
	switch {
	case level <= contracts.DebugLevel:
		return zapcore.DebugLevel
	case level == contracts.InfoLevel:
		return zapcore.InfoLevel
	case level == contracts.WarnLevel:
		return zapcore.WarnLevel
	case level == contracts.ErrorLevel:
		return zapcore.ErrorLevel
	}
	return zapcore.FatalLevel
}

func toZapFields(fields []contracts.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if f, ok := field.(zapField); ok && f.field.Key != "" {
			out = append(out, f.field)
		}
	}
	return out
}

// zapField implements contracts.Field
type zapField struct {
	field zap.Field
}

func wrap(f zap.Field) contracts.Field {
	return zapField{field: f}
}

func (zapField) Bool(key string, val bool) contracts.Field { return wrap(zap.Bool(key, val)) }

func (zapField) Int(key string, val int) contracts.Field { return wrap(zap.Int(key, val)) }

func (zapField) Float64(key string, val float64) contracts.Field {
	return wrap(zap.Float64(key, val))
}

func (zapField) String(key string, val string) contracts.Field {
	return wrap(zap.String(key, val))
}

func (zapField) Time(key string, val time.Time) contracts.Field { return wrap(zap.Time(key, val)) }

func (zapField) Duration(key string, val time.Duration) contracts.Field {
	return wrap(zap.Duration(key, val))
}

func (zapField) Int64(key string, val int64) contracts.Field { return wrap(zap.Int64(key, val)) }

func (zapField) Error(key string, val error) contracts.Field {
	return wrap(zap.NamedError(key, val))
}

func (zapField) Uint64(key string, val uint64) contracts.Field {
	return wrap(zap.Uint64(key, val))
}

func (zapField) Uint8(key string, val uint8) contracts.Field { return wrap(zap.Uint8(key, val)) }
