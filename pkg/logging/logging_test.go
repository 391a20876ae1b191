package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type recordedLine struct {
	level string
	text  string
}

func recordingFuncs(lines *[]recordedLine) LogFuncs {
	record := func(level string) LogFunc {
		return func(format string, args ...interface{}) {
			*lines = append(*lines, recordedLine{level: level, text: fmt.Sprintf(format, args...)})
		}
	}
	return LogFuncs{
		Debugf: record("debug"),
		Infof:  record("info"),
		Warnf:  record("warn"),
		Errorf: record("error"),
	}
}

func TestLogger_PrefixAndLevels(t *testing.T) {
	var lines []recordedLine
	logger := ForModule("filelock", recordingFuncs(&lines))

	logger.Debugf("acquired %s", "/run/foo.pid.lock")
	logger.Infof("info")
	logger.Warnf("warn")
	logger.Errorf("error %d", 1)
	logger.LogLevelf(LogLevelInfo, "via level")

	require.Len(t, lines, 5)
	assert.Equal(t, recordedLine{"debug", "module: filelock, acquired /run/foo.pid.lock"}, lines[0])
	assert.Equal(t, "warn", lines[2].level)
	assert.Equal(t, "module: filelock, error 1", lines[3].text)
	assert.Equal(t, "info", lines[4].level)
}

func TestLogger_LogLevelfTakesPrecedence(t *testing.T) {
	var levels []int
	logger := NewLogger("", LogFuncs{
		LogLevelf: func(level int, format string, args ...interface{}) {
			levels = append(levels, level)
		},
		Infof: func(format string, args ...interface{}) {
			t.Fatal("Infof must not be called when LogLevelf is set")
		},
	})

	logger.Infof("x")
	logger.Errorf("y")

	assert.Equal(t, []int{LogLevelInfo, LogLevelError}, levels)
}

func TestLogger_UnknownLevelIsDropped(t *testing.T) {
	var lines []recordedLine
	NewLogger("", recordingFuncs(&lines)).LogLevelf(7, "lost")
	assert.Empty(t, lines)
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "debug", LevelName(LogLevelDebug))
	assert.Equal(t, "error", LevelName(LogLevelError))
	assert.Equal(t, "level(9)", LevelName(9))
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Debugf("a")
		logger.Errorf("b %d", 2)
	})
}

func TestNewZapLogger(t *testing.T) {
	funcs, sync, err := NewZapLogger(ZapConfig{Level: "debug", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	require.NotNil(t, sync)
	assert.NotNil(t, funcs.Debugf)
	assert.NotNil(t, funcs.Errorf)

	_, _, err = NewZapLogger(ZapConfig{Level: "verbose"})
	assert.Error(t, err)
}

func TestGetLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"info", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"", zap.WarnLevel},
	}
	for _, tt := range tests {
		level, err := getLevelFromString(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, level, tt.input)
	}

	_, err := getLevelFromString("trace")
	assert.Error(t, err)
}
