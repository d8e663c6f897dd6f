package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLogger_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectral.log")
	l := NewZapLogger(path, true)

	l.Info("reducer", "Line skipped", map[string]interface{}{"device": "stella1", "index": 2})
	l.Debug("reducer", "not written to the file", nil)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"message":"Line skipped"`)
	assert.Contains(t, out, `"module":"reducer"`)
	assert.Contains(t, out, `"device":"stella1"`)
	assert.NotContains(t, out, "not written to the file")
	assert.Equal(t, path, l.FilePath())
}

func TestNopLogger(t *testing.T) {
	var l Logger = NewNopLogger()
	assert.NotPanics(t, func() {
		l.Error("workspace", "ignored", map[string]interface{}{"k": "v"})
		_ = l.Sync()
	})
}
