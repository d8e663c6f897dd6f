package analysis

import (
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
)

func constVector(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func stella1Table(rows ...parser.RawRow) *parser.RawTable {
	t := parser.NewRawTable(parser.DeviceStella1)
	t.Columns = parser.DeviceStella1.RequiredColumns()
	t.Rows = append(t.Rows, rows...)
	return t
}

func stella1Row(batch int, ts string, v float64) parser.RawRow {
	return parser.RawRow{Batch: batch, Timestamp: ts, Attempt: 1, Readings: constVector(12, v)}
}

// q2Rows builds one row per band for a single attempt, reading value v on every band.
func q2Rows(batch int, ts string, attempt int, bands int, v float64) []parser.RawRow {
	rows := make([]parser.RawRow, bands)
	for i := range rows {
		rows[i] = parser.RawRow{Batch: batch, Timestamp: ts, Attempt: attempt, Readings: []float64{v}}
	}
	return rows
}

func q2Table(rows ...[]parser.RawRow) *parser.RawTable {
	t := parser.NewRawTable(parser.DeviceStellaQ2)
	t.Columns = parser.DeviceStellaQ2.RequiredColumns()
	for _, r := range rows {
		t.Rows = append(t.Rows, r...)
	}
	return t
}
