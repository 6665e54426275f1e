// Package logger provides a simple, clean logging interface.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Constants for logging operations.
const (
	callerSkipFrames = 1 // Skip the zapLogger method so the caller is reported
)

// Logger defines the logging interface.
type Logger interface {
	// Context-aware variants
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Field constructors.
func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field        { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field              { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Time(key string, val time.Time) Field         { return Field{Key: key, Value: val} }
func Any(key string, val interface{}) Field        { return Field{Key: key, Value: val} }
func Error(err error) Field                        { return Field{Key: "error", Value: err} }

// zapLogger implements Logger using zap.
type zapLogger struct {
	l *zap.Logger
}

func (z *zapLogger) Named(name string) Logger {
	return &zapLogger{l: z.l.Named(name)}
}

func (z *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	z.l.Info(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	z.l.Error(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	z.l.Debug(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	z.l.Warn(msg, convertFields(ctx, fields)...)
}

func (z *zapLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	z.l.Fatal(msg, convertFields(ctx, fields)...)
}

// convertFields converts our Field type to zap fields and appends the active
// trace identifiers, if any.
func convertFields(ctx context.Context, fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	if ctx == nil {
		return out
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = append(out,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return out
}

var (
	mu     sync.RWMutex
	global Logger
	base   *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// options configures Init.
type options struct {
	format     string
	output     io.Writer
	file       string
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
}

// Option applies a configuration option to Init.
type Option func(*options)

// WithFormat selects the encoder: "json" (default) or "console".
func WithFormat(format string) Option {
	return func(o *options) {
		if format != "" {
			o.format = format
		}
	}
}

// WithOutput redirects log output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithFile additionally writes logs to a rotating file.
func WithFile(path string, maxSizeMB, maxBackups, maxAgeDays int, compress bool) Option {
	return func(o *options) {
		o.file = path
		o.maxSizeMB = maxSizeMB
		o.maxBackups = maxBackups
		o.maxAgeDays = maxAgeDays
		o.compress = compress
	}
}

// Init initializes the global logger.
func Init(opts ...Option) error {
	o := &options{format: "json", output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "source",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	switch strings.ToLower(o.format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "text":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return fmt.Errorf("unknown log format: %s", o.format)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(o.output)}
	if o.file != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    o.maxSizeMB,
			MaxBackups: o.maxBackups,
			MaxAge:     o.maxAgeDays,
			Compress:   o.compress,
		}))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)
	l := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkipFrames),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	mu.Lock()
	defer mu.Unlock()
	base = l
	global = &zapLogger{l: l}
	return nil
}

// Get returns the global logger.
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		// The logger should be explicitly initialized by the application
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named creates a named logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l == nil {
		return nil
	}
	err := l.Sync()
	// stdout and stderr cannot be fsynced on most platforms.
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(lvl string) error {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "", "info":
		level.SetLevel(zapcore.InfoLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level: %s", lvl)
	}
	return nil
}
