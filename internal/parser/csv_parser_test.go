package parser

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stella1CSV(rows ...string) string {
	header := append([]string{Stella1BatchColumn, Stella1TimestampColumn}, Stella1IrradianceColumns...)
	return strings.Join(append([]string{strings.Join(header, ",")}, rows...), "\n") + "\n"
}

func stella1Row(batch, ts, value string) string {
	cells := []string{batch, ts}
	for range Stella1IrradianceColumns {
		cells = append(cells, value)
	}
	return strings.Join(cells, ",")
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"stella1", DeviceStella1, false},
		{" StellaQ2 ", DeviceStellaQ2, false},
		{"stella3", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDevice(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDevice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeviceBands(t *testing.T) {
	assert.Equal(t, 12, DeviceStella1.BandCount())
	assert.Equal(t, 18, DeviceStellaQ2.BandCount())
	assert.Len(t, Stella1IrradianceColumns, len(Stella1Wavelengths))
	assert.Equal(t, 0, Device("other").BandCount())
}

func TestParseRawTable_Stella1(t *testing.T) {
	raw := stella1CSV(
		stella1Row("5", "20230717T10:00:00", "100.0"),
		stella1Row("6", "20230717T11:00:00", "50"),
	)

	table, err := ParseRawBytes(DeviceStella1, []byte(raw))
	require.NoError(t, err)

	assert.NoError(t, table.SchemaErr())
	assert.Empty(t, table.ParseErrors)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 5, first.Batch)
	assert.Equal(t, "20230717T10:00:00", first.Timestamp)
	assert.Equal(t, 1, first.Attempt)
	require.Len(t, first.Readings, 12)
	for _, v := range first.Readings {
		assert.Equal(t, 100.0, v)
	}
	assert.Equal(t, 6, table.Rows[1].Batch, "rows keep file order")
}

func TestParseRawTable_TrimsHeaderAndBOM(t *testing.T) {
	raw := "\ufeff batch , iso8601_utc ,mmn,  irrad.uW/(cm^2)\n1,20230717T10:00:00,1,3.5\n"

	table, err := ParseRawBytes(DeviceStellaQ2, []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []string{"batch", "iso8601_utc", "mmn", "irrad.uW/(cm^2)"}, table.Columns)
	assert.NoError(t, table.SchemaErr())
	require.Len(t, table.Rows, 1)
	assert.Equal(t, RawRow{Batch: 1, Timestamp: "20230717T10:00:00", Attempt: 1, Readings: []float64{3.5}}, table.Rows[0])
}

func TestParseRawTable_MissingColumnsIsNotFatal(t *testing.T) {
	raw := "batch,iso8601_utc\n1,20230717T10:00:00\n"

	table, err := ParseRawBytes(DeviceStellaQ2, []byte(raw))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{StellaQ2AttemptColumn, StellaQ2IrradianceColumn}, table.Missing)

	var schemaErr *SchemaError
	require.True(t, errors.As(table.SchemaErr(), &schemaErr))
	assert.Equal(t, DeviceStellaQ2, schemaErr.Device)
	assert.NotEmpty(t, table.ParseErrors)
}

func TestParseRawTable_BadCells(t *testing.T) {
	raw := "batch,iso8601_utc,mmn,irrad.uW/(cm^2)\n" +
		"1,20230717T10:00:00,1,abc\n" +
		"1,20230717T10:00:00,2,\n" +
		"x,20230717T10:00:00,1,4.0\n" +
		"2.0,20230717T10:00:00,3.0,4.0\n"

	table, err := ParseRawBytes(DeviceStellaQ2, []byte(raw))
	require.NoError(t, err)

	require.Len(t, table.Rows, 3, "row with a non-integer batch is skipped")
	assert.True(t, math.IsNaN(table.Rows[0].Readings[0]))
	assert.True(t, math.IsNaN(table.Rows[1].Readings[0]))
	assert.Equal(t, 2, table.Rows[2].Batch)
	assert.Equal(t, 3, table.Rows[2].Attempt)
	assert.Len(t, table.ParseErrors, 3)
}

func TestParseRawTable_OutOfRangeBatchIsSkipped(t *testing.T) {
	raw := "batch,iso8601_utc,mmn,irrad.uW/(cm^2)\n" +
		"1e300,20230717T10:00:00,1,4.0\n" +
		"7,20230717T10:00:00,1,4.0\n"

	table, err := ParseRawBytes(DeviceStellaQ2, []byte(raw))
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, 7, table.Rows[0].Batch)
	require.Len(t, table.ParseErrors, 1)
	assert.Contains(t, table.ParseErrors[0], "'1e300' is not an integer")
}

func TestParseRawTable_Unreadable(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := ParseRawBytes(DeviceStella1, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no columns to parse")
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := ParseRawBytes(DeviceStellaQ2, []byte("batch,iso8601_utc,mmn,irrad.uW/(cm^2)\n1,\"unterminated,1,2\n"))
		assert.Error(t, err)
	})

	t.Run("unknown device", func(t *testing.T) {
		_, err := ParseRawBytes(Device("nope"), []byte("a,b\n"))
		assert.ErrorIs(t, err, ErrUnknownDevice)
	})
}

func TestParseRawTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stella1.csv")
	require.NoError(t, os.WriteFile(path, []byte(stella1CSV(stella1Row("1", "20230717T10:00:00", "1"))), 0o644))

	table, err := ParseRawTableFile(DeviceStella1, path)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)

	_, err = ParseRawTableFile(DeviceStella1, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestParseIntCell(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{"5.0", 5, false},
		{"-2", -2, false},
		{"5.5", 0, true},
		{"NaN", 0, true},
		{"", 0, true},
		{"1e300", 0, true},
		{"-1e300", 0, true},
		{"9223372036854775808.0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseIntCell(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawRow_MarshalJSONWritesNaNAsNull(t *testing.T) {
	data, err := json.Marshal(RawRow{Batch: 1, Timestamp: "20230717T10", Attempt: 2, Readings: []float64{1.5, math.NaN()}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"batch":1,"timestamp":"20230717T10","attempt":2,"readings":[1.5,null]}`, string(data))
}
