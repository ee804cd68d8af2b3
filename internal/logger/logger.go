package logger

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	ServiceName   string
	IsDevelopment bool
	IsDebug       bool
	InitialFields []zap.Field

	// Output receives the JSON log lines. Defaults to stderr, stdout only carries the report.
	Output io.Writer
}

func NewLogger(_ context.Context, loggerConfig LoggerConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.WarnLevel)
	if loggerConfig.IsDebug {
		level.SetLevel(zap.DebugLevel)
	}

	var output io.Writer = os.Stderr
	if loggerConfig.Output != nil {
		output = loggerConfig.Output
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(GetEncoderConfig(zapcore.DefaultLineEnding)),
		zapcore.Lock(zapcore.AddSync(output)),
		level,
	)

	opts := []zap.Option{
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(
			zap.String("service", loggerConfig.ServiceName),
			zap.Int("pid", os.Getpid()),
		),
		zap.Fields(loggerConfig.InitialFields...),
	}

	if loggerConfig.IsDevelopment {
		opts = append(opts, zap.Development())
	}

	if loggerConfig.IsDebug {
		opts = append(opts, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	}

	return zap.New(core, opts...), nil
}

// GetEncoderConfig returns the encoder of the JSON log lines.
// Durations are written as strings, region walks log them in debug mode.
func GetEncoderConfig(lineEnding string) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		MessageKey:     "message",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		LineEnding:     lineEnding,
	}
}
