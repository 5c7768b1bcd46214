package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/smithy-go/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.log")

	l, err := New(
		WithFormat("json"),
		WithLevel("warn"),
		WithOutputPaths(path),
		WithAppName("nodeupload-gw"),
		WithAppVersion("test"))
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("visible")
	FastHTTP(l).Printf("from %s", "fasthttp")
	AWS(l).Logf(logging.Warn, "from %s", "aws")
	AWS(l).Logf(logging.Debug, "debug from aws")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	require.Contains(t, out, `"msg":"visible"`)
	require.Contains(t, out, `"app_name":"nodeupload-gw"`)
	require.Contains(t, out, "from fasthttp")
	require.Contains(t, out, "from aws")
	require.NotContains(t, out, "hidden")
	require.NotContains(t, out, "debug from aws")
}

func TestSafeLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}

	for name, lvl := range cases {
		require.Equal(t, lvl, safeLevel(name).Level(), name)
	}
}
