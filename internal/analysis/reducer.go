package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/innashapovalenko/stem-stella-class-website/internal/logger"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
)

// Reducer turns a raw table and line definitions into reflectance rows.
// It holds no state besides the logger and is safe for concurrent use on immutable tables.
type Reducer struct {
	log logger.Logger
}

func NewReducer(log logger.Logger) *Reducer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Reducer{log: log}
}

// Reduce computes every line against the table. A failing line contributes no rows and is reported in
// AnalysisErrors; the remaining lines are still processed. An empty table yields no rows.
func (r *Reducer) Reduce(table *parser.RawTable, lines []LineDefinition) (*ReductionResult, error) {
	if table == nil {
		return nil, fmt.Errorf("raw table is nil, cannot reduce")
	}
	result := NewReductionResult(table.Device)
	if table.Empty() {
		return result, nil
	}

	for i, line := range lines {
		rows, err := r.ReduceLine(table, line, i)
		if err != nil {
			name := line.DisplayName(i)
			r.log.Error("reducer", "Line skipped", map[string]interface{}{
				"device": string(table.Device),
				"index":  i,
				"line":   name,
				"error":  err.Error(),
			})
			result.AnalysisErrors = append(result.AnalysisErrors, fmt.Sprintf("Error generating table data for %s line %d (%s): %v", table.Device.DisplayName(), i, name, err))
			continue
		}
		result.Rows = append(result.Rows, rows...)
	}

	return result, nil
}

// ReduceLine computes the reflectance rows of a single line at position index.
func (r *Reducer) ReduceLine(table *parser.RawTable, line LineDefinition, index int) ([]ReflectanceRow, error) {
	if math.IsNaN(line.Distance) || math.IsInf(line.Distance, 0) || line.Distance < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDistance, line.Distance)
	}

	prefix, err := TimePrefix(line.Date)
	if err != nil {
		var dateErr *DateParseError
		if errors.As(err, &dateErr) {
			r.log.Warn("selector", "Date parsing failed, matching without time prefix", map[string]interface{}{
				"query": dateErr.Query,
				"line":  line.DisplayName(index),
			})
		}
	}

	target := meanVectors(
		r.Irradiance(table, line.DP1, prefix),
		r.Irradiance(table, line.DP2, prefix),
	)
	targetRadiance := RadianceTarget(target, line.Distance)

	referenceRadiance, err := RadianceReference(
		r.Irradiance(table, line.Cal1, prefix),
		line.Distance,
		r.Irradiance(table, line.Cal2, prefix),
	)
	if err != nil {
		return nil, err
	}

	reflectance, guarded, err := Reflectance(targetRadiance, referenceRadiance)
	if err != nil {
		return nil, err
	}
	if guarded > 0 {
		r.log.Warn("optics", "Reference radiance contains zero values, substituted epsilon", map[string]interface{}{
			"line":    line.DisplayName(index),
			"guarded": guarded,
		})
	}

	wavelengths := table.Device.Wavelengths()
	if len(target) != len(wavelengths) || len(reflectance) != len(wavelengths) {
		return nil, fmt.Errorf("expected %d bands, got irradiance %d and reflectance %d", len(wavelengths), len(target), len(reflectance))
	}

	name := line.DisplayName(index)
	rows := make([]ReflectanceRow, len(wavelengths))
	for j, wl := range wavelengths {
		rows[j] = ReflectanceRow{
			Line:        name,
			Wavelength:  wl,
			Irradiance:  target[j],
			Reflectance: reflectance[j],
		}
	}
	return rows, nil
}
