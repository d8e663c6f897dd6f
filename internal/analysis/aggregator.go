package analysis

import (
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
)

// RepeatAttempts are the STELLA-Q2 repeat-attempt indexes averaged per scan.
var RepeatAttempts = []int{1, 2, 3}

// Aggregate averages the STELLA-Q2 repeat attempts of one scan. An attempt with fewer readings than the
// band count counts as a zero vector; one with more is cut to the first band-count readings.
// All three attempts always take part in the mean, so a complete miss yields a zero vector.
func (r *Reducer) Aggregate(table *parser.RawTable, batch int, prefix string) []float64 {
	bands := table.Device.BandCount()
	attempts := make([][]float64, 0, len(RepeatAttempts))

	for _, attempt := range RepeatAttempts {
		readings := r.Select(table, batch, prefix, attempt)
		if len(readings) < bands {
			r.log.Debug("aggregator", "Not enough irradiance values, using zero vector", map[string]interface{}{
				"batch":    batch,
				"prefix":   prefix,
				"attempt":  attempt,
				"expected": bands,
				"got":      len(readings),
			})
			attempts = append(attempts, make([]float64, bands))
			continue
		}
		attempts = append(attempts, readings[:bands])
	}

	return meanVectors(attempts...)
}

// Irradiance returns the scan's wavelength vector: the first match for STELLA-1.1, the attempt mean for STELLA-Q2.
func (r *Reducer) Irradiance(table *parser.RawTable, batch int, prefix string) []float64 {
	if table.Device == parser.DeviceStellaQ2 {
		return r.Aggregate(table, batch, prefix)
	}
	return r.Select(table, batch, prefix, 0)
}
