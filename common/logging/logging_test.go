package logging

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(w io.Writer) *Logger {
	return &Logger{
		logger: log.NewJSONLogger(w),
	}
}

func TestJSONLogger(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logger := newJSONLogger(&buf)
	logger.Info("this is a test", "foo", 3)

	const expectedOutput1 = `{"foo":3,"level":"info","msg":"this is a test"}` + "\n"
	require.Equal(expectedOutput1, buf.String())

	buf.Reset()
	logger.With("module", "test").Warn("this is another test", "foo", 42)

	const expectedOutput2 = `{"foo":42,"level":"warn","module":"test","msg":"this is another test"}` + "\n"
	require.Equal(expectedOutput2, buf.String())
}

func TestLevelFilter(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logger := newJSONLogger(&buf)
	logger.level = LevelWarn

	logger.Debug("dropped")
	logger.Info("dropped")
	require.Empty(buf.String(), "entries below the level must be discarded")

	logger.Error("kept")
	require.Contains(buf.String(), `"msg":"kept"`)
}

func TestLevelFlag(t *testing.T) {
	require := require.New(t)

	var lvl Level
	require.NoError(lvl.Set("info"))
	require.Equal(LevelInfo, lvl)
	require.Equal("INFO", lvl.String())
	require.Error(lvl.Set("verbose"))

	var fmt Format
	require.NoError(fmt.Set("json"))
	require.Equal(FmtJSON, fmt)
	require.Error(fmt.Set("xml"))
}

func TestModuleLevels(t *testing.T) {
	require := require.New(t)

	b := logBackend{
		defaultLevel: LevelError,
		moduleLevels: map[string]Level{
			"pool":        LevelInfo,
			"pool/ledger": LevelDebug,
		},
	}

	l := &Logger{module: "pool/ledger"}
	b.setupLogLevelLocked(l)
	require.Equal(LevelDebug, l.level, "longest prefix should win")

	l = &Logger{module: "pool/gateway"}
	b.setupLogLevelLocked(l)
	require.Equal(LevelInfo, l.level)

	l = &Logger{module: "config"}
	b.setupLogLevelLocked(l)
	require.Equal(LevelError, l.level, "unmatched modules use the default")
}
