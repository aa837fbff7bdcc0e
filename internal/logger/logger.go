package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// global backs every context that carries no logger of its own.
	//nolint:gochecknoglobals // One process-wide logger, named per component through the context.
	global *zap.SugaredLogger
	// level is shared by every logger built by New, so log_level applies to all of them.
	//nolint:gochecknoglobals // Changed once at startup from the config file.
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() { //nolint:gochecknoinits // Packages log before the config file is read.
	global = New(nil)
}

// New builds a console logger writing to stdout.
// A nil enabler means the shared level that SetLevel changes.
func New(enabler zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if enabler == nil {
		enabler = level
	}

	//nolint:exhaustruct // Unset encoder keys stay empty.
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		NameKey:          "component",
		LevelKey:         "level",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: ", ",
	})

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), enabler), options...).Sugar()
}

// SetLevelFromString applies a level name such as "debug" from the config file.
// Unknown names are reported with false and change nothing.
func SetLevelFromString(s string) bool {
	lvl, ok := ParseLogLevel(s)
	if ok {
		SetLevel(lvl)
	}

	return ok
}

// ParseLogLevel maps a case-insensitive level name to its zap level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel, false
	}

	return lvl, true
}

// SetLevel changes the shared level.
func SetLevel(lvl zapcore.Level) {
	//nolint:errcheck // Stdout sync errors are not actionable.
	defer global.Sync()

	level.SetLevel(lvl)
}

// Debug logs args at debug level through the context logger.
func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

// DebugKV logs message with key-value pairs at debug level.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info logs args at info level through the context logger.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// InfoKV logs message with key-value pairs at info level.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn logs args at warn level through the context logger.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// WarnKV logs message with key-value pairs at warn level.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// ErrorKV logs message with key-value pairs at error level.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
