package mqtt

import (
	"context"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// pahoLogger forwards paho's internal logging to zap at a fixed level.
type pahoLogger struct {
	log   *zap.SugaredLogger
	level zapcore.Level
}

// Println implements paho.Logger.
func (l pahoLogger) Println(v ...any) {
	l.write(fmt.Sprintln(v...))
}

// Printf implements paho.Logger.
func (l pahoLogger) Printf(format string, v ...any) {
	l.write(fmt.Sprintf(format, v...))
}

func (l pahoLogger) write(msg string) {
	if ce := l.log.Desugar().Check(l.level, strings.TrimRight(msg, "\r\n")); ce != nil {
		ce.Write()
	}
}

// InstallLogger routes paho's package-level loggers through the context logger.
// With trace enabled the client's debug chatter is written even when the
// global level is higher. This mutates paho globals, so call it once at startup.
func InstallLogger(ctx context.Context, trace bool) {
	base := logger.FromContext(logger.WithName(ctx, "paho"))

	paho.ERROR = pahoLogger{log: base, level: zapcore.ErrorLevel}
	paho.CRITICAL = pahoLogger{log: base, level: zapcore.ErrorLevel}
	paho.WARN = pahoLogger{log: base, level: zapcore.WarnLevel}

	if trace {
		debug := base.Desugar().WithOptions(logger.WithLevel(zapcore.DebugLevel)).Sugar()
		paho.DEBUG = pahoLogger{log: debug, level: zapcore.DebugLevel}

		return
	}

	paho.DEBUG = paho.NOOPLogger{}
}
