package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// fileEncoderConfig is used for the rotated JSON log file.
func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// consoleEncoderConfig is used on stderr, where a person reads the lines
// between command output.
func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.StacktraceKey = ""
	return cfg
}

func FileEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(fileEncoderConfig())
}

func ConsoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(consoleEncoderConfig())
}

// DefaultOption attaches the caller to every entry and a stack trace to
// DPanic and above.
func DefaultOption() []zap.Option {
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.DPanicLevel),
	}
}

// rotatingFile keeps at most three old files of 50 MB next to filePath.
func rotatingFile(filePath string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    50,
		MaxBackups: 3,
		LocalTime:  true,
		Compress:   true,
	}
}
