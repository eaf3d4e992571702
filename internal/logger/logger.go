package logger

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	jwtRegex   = regexp.MustCompile(`eyJ[^\s"]+`)
	tokenRegex = regexp.MustCompile(`\btoken\s*=\s*[^\s&"]+`)
)

var (
	mu        sync.RWMutex
	base      = mustBuild(zapcore.InfoLevel)
	useSentry bool
)

// Logger is a module-tagged view over the process-wide zap logger.
// Package-level loggers are created before Init runs, so the zap core
// is resolved on every call.
type Logger struct{}

// New creates a new Logger
func New() *Logger {
	return &Logger{}
}

// Init configures the level of the shared logger and, when dsn is set,
// forwards error entries to Sentry.
func Init(level, dsn string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	z, err := build(lvl)
	if err != nil {
		return err
	}

	sentryOn := false
	if dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			return fmt.Errorf("sentry init failed: %w", err)
		}
		sentryOn = true
	}

	mu.Lock()
	base = z
	useSentry = sentryOn
	mu.Unlock()
	return nil
}

// UseCore swaps the underlying core; tests use it with zaptest/observer.
func UseCore(core zapcore.Core) {
	mu.Lock()
	base = zap.New(core)
	mu.Unlock()
}

// Sync flushes buffered entries and pending Sentry events.
func Sync() {
	mu.RLock()
	z, s := base, useSentry
	mu.RUnlock()
	_ = z.Sync()
	if s {
		sentry.Flush(2 * time.Second)
	}
}

func build(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "json"
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func mustBuild(level zapcore.Level) *zap.Logger {
	z, err := build(level)
	if err != nil {
		return zap.NewNop()
	}
	return z
}

// Anonymize replaces sensitive information in logs (emails, session tokens, seed tokens)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = jwtRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = tokenRegex.ReplaceAllString(s, "token=[REDACTED_TOKEN]")
	return s
}

func (l *Logger) log(module string, level zapcore.Level, msg string, err error) {
	mu.RLock()
	z, s := base, useSentry
	mu.RUnlock()

	fields := []zap.Field{zap.String("module", module)}
	if err != nil {
		fields = append(fields, zap.String("error", Anonymize(err.Error())))
	}
	if ce := z.Check(level, Anonymize(msg)); ce != nil {
		ce.Write(fields...)
	}

	if s && level >= zapcore.ErrorLevel {
		if err == nil {
			err = errors.New(msg)
		}
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("module", module)
			scope.SetExtra("message", Anonymize(msg))
			sentry.CaptureException(err)
		})
	}
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string) {
	l.log(module, zapcore.InfoLevel, msg, nil)
}

func (l *Logger) Debug(module, msg string) {
	l.log(module, zapcore.DebugLevel, msg, nil)
}

func (l *Logger) Warn(module, msg string) {
	l.log(module, zapcore.WarnLevel, msg, nil)
}

func (l *Logger) Error(module, msg string, err error) {
	l.log(module, zapcore.ErrorLevel, msg, err)
}
