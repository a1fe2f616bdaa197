package log

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type plugin = zapcore.Core

func NewLogger(plugin zapcore.Core, options ...zap.Option) *zap.Logger {
	return zap.New(plugin, append(DefaultOption(), options...)...)
}

func NewPlugin(writer zapcore.WriteSyncer, enabler zapcore.LevelEnabler) plugin {
	return zapcore.NewCore(FileEncoder(), writer, enabler)
}

// NewStderrPlugin writes console-formatted entries, leaving stdout to
// command output.
func NewStderrPlugin(enabler zapcore.LevelEnabler) plugin {
	return zapcore.NewCore(ConsoleEncoder(), zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler)
}

func NewFilePlugin(filePath string, enabler zapcore.LevelEnabler) (plugin, io.Closer) {
	writer := rotatingFile(filePath)
	return NewPlugin(zapcore.AddSync(writer), enabler), writer
}

// ParseLevel reads a level name such as "info" or "DEBUG"; an empty name is
// InfoLevel.
func ParseLevel(text string) (zapcore.Level, error) {
	if strings.TrimSpace(text) == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(strings.TrimSpace(text))
}

// Setup builds the process logger: stderr, plus a rotated JSON file when
// filePath is set. The returned closer flushes and closes the file.
func Setup(level, filePath string) (*zap.Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	core := NewStderrPlugin(lvl)
	var closer io.Closer = nopCloser{}
	if filePath != "" {
		var file plugin
		file, closer = NewFilePlugin(filePath, lvl)
		core = zapcore.NewTee(core, file)
	}
	logger := NewLogger(core)
	return logger, syncCloser{logger: logger, Closer: closer}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type syncCloser struct {
	logger *zap.Logger
	io.Closer
}

func (s syncCloser) Close() error {
	_ = s.logger.Sync()
	return s.Closer.Close()
}
