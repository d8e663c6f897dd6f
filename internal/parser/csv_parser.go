package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ParseRawTableFile opens a CSV export on disk and parses it for the device.
func ParseRawTableFile(device Device, filepath string) (*RawTable, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return ParseRawTable(device, file)
}

// ParseRawBytes parses an uploaded CSV payload.
func ParseRawBytes(device Device, raw []byte) (*RawTable, error) {
	return ParseRawTable(device, bytes.NewReader(raw))
}

// ParseRawTable reads a device CSV export. Header names are whitespace-trimmed and rows are kept in file order.
// Missing required columns and bad cells are recorded on the table; only an unreadable stream is an error.
func ParseRawTable(device Device, r io.Reader) (*RawTable, error) {
	if device.BandCount() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, string(device))
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // short rows read as missing cells

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no columns to parse from %s file", device.DisplayName())
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	table := NewRawTable(device)
	headerMap := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.TrimSpace(h)
		table.Columns = append(table.Columns, name)
		if _, dup := headerMap[name]; !dup {
			headerMap[name] = i
		}
	}

	for _, col := range device.RequiredColumns() {
		if _, ok := headerMap[col]; !ok {
			table.Missing = append(table.Missing, col)
		}
	}
	if len(table.Missing) > 0 {
		table.ParseErrors = append(table.ParseErrors, (&SchemaError{Device: device, Missing: table.Missing}).Error())
	}

	lineNo := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNo++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV data at line %d: %w", lineNo, err)
		}
		if len(record) > len(header) {
			table.ParseErrors = append(table.ParseErrors, fmt.Sprintf("Warning: line %d has %d fields, header has %d. Extra fields ignored.", lineNo, len(record), len(header)))
		}

		row, rowErrs, ok := parseRecord(device, record, headerMap, lineNo)
		table.ParseErrors = append(table.ParseErrors, rowErrs...)
		if ok {
			table.Rows = append(table.Rows, row)
		}
	}

	return table, nil
}

// parseRecord converts one CSV record. ok is false when the row cannot take part in selection at all.
func parseRecord(device Device, record []string, headerMap map[string]int, lineNo int) (RawRow, []string, bool) {
	var problems []string

	get := func(col string) (string, bool) {
		idx, ok := headerMap[col]
		if !ok {
			return "", false
		}
		if idx >= len(record) {
			return "", true
		}
		return strings.TrimSpace(record[idx]), true
	}

	readFloat := func(col string) float64 {
		raw, present := get(col)
		if !present {
			return math.NaN()
		}
		if raw == "" {
			problems = append(problems, fmt.Sprintf("Warning: line %d, column '%s' is empty. Using NaN.", lineNo, col))
			return math.NaN()
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("Error converting value '%s' in column '%s' at line %d. Using NaN. Error: %v", raw, col, lineNo, err))
			return math.NaN()
		}
		return val
	}

	readInt := func(col string) (int, bool) {
		raw, present := get(col)
		if !present {
			return 0, true
		}
		val, err := parseIntCell(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("Warning: line %d, column '%s' value '%s' is not an integer. Row skipped.", lineNo, col, raw))
			return 0, false
		}
		return val, true
	}

	row := RawRow{Attempt: 1}

	switch device {
	case DeviceStella1:
		batch, ok := readInt(Stella1BatchColumn)
		if !ok {
			return RawRow{}, problems, false
		}
		row.Batch = batch
		row.Timestamp, _ = get(Stella1TimestampColumn)
		row.Readings = make([]float64, len(Stella1IrradianceColumns))
		for i, col := range Stella1IrradianceColumns {
			row.Readings[i] = readFloat(col)
		}

	case DeviceStellaQ2:
		batch, ok := readInt(StellaQ2BatchColumn)
		if !ok {
			return RawRow{}, problems, false
		}
		attempt, ok := readInt(StellaQ2AttemptColumn)
		if !ok {
			return RawRow{}, problems, false
		}
		row.Batch = batch
		row.Attempt = attempt
		row.Timestamp, _ = get(StellaQ2TimestampColumn)
		row.Readings = []float64{readFloat(StellaQ2IrradianceColumn)}
	}

	return row, problems, true
}

// parseIntCell accepts "5" as well as integral floats such as "5.0", which spreadsheet exports produce.
func parseIntCell(raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("integer out of range: %s", raw)
	}
	return int(f), nil
}
