package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig defines the zap backend configuration
type ZapConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
	Output string // "stderr", "stdout"
	Caller bool
}

// DefaultZapConfig keeps diagnostics on stderr and out of the way of command output
func DefaultZapConfig() ZapConfig {
	return ZapConfig{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	}
}

// NewZapLogger builds LogFuncs backed by a zap sugared logger. The returned
// function flushes buffered entries and should be deferred by the caller.
func NewZapLogger(config ZapConfig) (LogFuncs, func() error, error) {
	zapLogger, err := createZapLogger(config)
	if err != nil {
		return LogFuncs{}, nil, err
	}
	sugar := zapLogger.Sugar()

	funcs := LogFuncs{
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	}
	return funcs, zapLogger.Sync, nil
}

func createZapLogger(config ZapConfig) (*zap.Logger, error) {
	level, err := getLevelFromString(config.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	switch config.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	switch config.Output {
	case "stdout":
		writeSyncer = zapcore.Lock(zapcore.AddSync(os.Stdout))
	default:
		writeSyncer = zapcore.Lock(zapcore.AddSync(os.Stderr))
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)

	opts := []zap.Option{}
	if config.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	return zap.New(core, opts...), nil
}

// zap v1.20 has no zapcore.ParseLevel. zap numbers its levels from -1, ours
// from 0.
func getLevelFromString(levelStr string) (zapcore.Level, error) {
	if levelStr == "" {
		return zap.WarnLevel, nil
	}
	for level := LogLevelDebug; level <= LogLevelError; level++ {
		if LevelName(level) == levelStr {
			return zapcore.Level(level - 1), nil
		}
	}
	return zap.InfoLevel, fmt.Errorf("invalid log level: %s", levelStr)
}
