package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innashapovalenko/stem-stella-class-website/internal/logger"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
	"github.com/innashapovalenko/stem-stella-class-website/internal/workspace"
)

func writeStella1CSV(t *testing.T) string {
	t.Helper()
	header := append([]string{parser.Stella1BatchColumn, parser.Stella1TimestampColumn}, parser.Stella1IrradianceColumns...)
	cells := []string{"5", "20230717T10:00:00"}
	for range parser.Stella1IrradianceColumns {
		cells = append(cells, "100.0")
	}
	path := filepath.Join(t.TempDir(), "stella1.csv")
	content := strings.Join(header, ",") + "\n" + strings.Join(cells, ",") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApp_BoundMethods(t *testing.T) {
	log := logger.NewNopLogger()
	app := NewApp(workspace.New(nil, nil, log), log)

	msg, err := app.LoadTableFile("stella1", writeStella1CSV(t))
	require.NoError(t, err)
	assert.Equal(t, "Loaded 1 rows.", msg)

	lines, err := app.AddLine("stella1", map[string]string{"dp1": "5", "dp2": "5", "cal1": "5", "cal2": "5", "date": "2023-07-17"})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	result, err := app.Compute("stella1")
	require.NoError(t, err)
	require.Len(t, result.Rows, 12)
	assert.Equal(t, "1.0000", result.Rows[0].ReflectanceText())

	_, err = app.RemoveLine("stella1", 4)
	assert.ErrorIs(t, err, workspace.ErrLineIndexOutOfRange)

	lines, err = app.RemoveLine("stella1", 0)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, app.Clear("stella1"))
	result, err = app.Compute("stella1")
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
}

func TestApp_UnknownDevice(t *testing.T) {
	log := logger.NewNopLogger()
	app := NewApp(workspace.New(nil, nil, log), log)

	_, err := app.Compute("stella7")
	assert.ErrorIs(t, err, parser.ErrUnknownDevice)
	_, err = app.LoadTableFile("stella7", "missing.csv")
	assert.ErrorIs(t, err, parser.ErrUnknownDevice)
}
