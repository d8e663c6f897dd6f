package analysis

import (
	"strings"
	"time"

	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
)

// Accepted time query layouts. Single-digit month, day, hour and minute are accepted.
const (
	dateTimeQueryLayout = "2006-1-2 15:4"
	dateQueryLayout     = "2006-1-2"
)

// TimePrefix converts a user time query into the timestamp prefix rows are matched against:
// "2023-07-17 10:00" -> "20230717T10", "2023-07-17" -> "20230717T".
// On failure it returns "" (which matches every timestamp) together with a *DateParseError.
func TimePrefix(query string) (string, error) {
	q := strings.TrimSpace(query)
	if strings.Contains(q, " ") {
		t, err := time.Parse(dateTimeQueryLayout, q)
		if err != nil {
			return "", &DateParseError{Query: q, Err: err}
		}
		return t.Format("20060102T15"), nil
	}
	t, err := time.Parse(dateQueryLayout, q)
	if err != nil {
		return "", &DateParseError{Query: q, Err: err}
	}
	return t.Format("20060102") + "T", nil
}

// MatchRows returns the rows with the batch id whose timestamp starts with prefix, in load order.
// attempt > 0 additionally requires the repeat-attempt index to match.
func MatchRows(table *parser.RawTable, batch int, prefix string, attempt int) []parser.RawRow {
	if table == nil {
		return nil
	}
	var matched []parser.RawRow
	for _, row := range table.Rows {
		if row.Batch != batch || !strings.HasPrefix(row.Timestamp, prefix) {
			continue
		}
		if attempt > 0 && row.Attempt != attempt {
			continue
		}
		matched = append(matched, row)
	}
	return matched
}

// Select extracts the wavelength vector for a batch and timestamp prefix.
//
// STELLA-1.1: the readings of the first matching row in load order (attempt is ignored).
// STELLA-Q2: the readings of every row matching the attempt, concatenated in load order; the result may be
// shorter or longer than the band count and is trimmed by Aggregate.
//
// A miss or a table lacking required columns yields a zero vector of the device's band count.
func (r *Reducer) Select(table *parser.RawTable, batch int, prefix string, attempt int) []float64 {
	device := table.Device
	if err := table.SchemaErr(); err != nil {
		r.log.Error("selector", "Required column missing, using zero vector", map[string]interface{}{
			"device": string(device),
			"batch":  batch,
			"error":  err.Error(),
		})
		return make([]float64, device.BandCount())
	}

	if device == parser.DeviceStella1 {
		attempt = 0
	}
	matched := MatchRows(table, batch, prefix, attempt)
	if len(matched) == 0 {
		r.log.Debug("selector", "No rows matched, using zero vector", map[string]interface{}{
			"device":  string(device),
			"batch":   batch,
			"prefix":  prefix,
			"attempt": attempt,
		})
		return make([]float64, device.BandCount())
	}

	if device == parser.DeviceStella1 {
		return append([]float64(nil), matched[0].Readings...)
	}

	readings := make([]float64, 0, len(matched))
	for _, row := range matched {
		readings = append(readings, row.Readings...)
	}
	return readings
}
