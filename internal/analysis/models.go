package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
)

// Defaults applied to absent or unparseable line-definition fields.
const (
	DefaultDistance = 1.0
	DefaultBatch    = 0
)

// LineDefinition is one user-authored measurement configuration.
type LineDefinition struct {
	Name     string  `json:"line_name"` // empty means "Line N"
	Date     string  `json:"date"`
	Distance float64 `json:"distance"`
	Cal1     int     `json:"cal1"`
	Cal2     int     `json:"cal2"`
	DP1      int     `json:"dp1"`
	DP2      int     `json:"dp2"`
}

// NewLineDefinition returns a definition carrying the documented defaults.
func NewLineDefinition() LineDefinition {
	return LineDefinition{Distance: DefaultDistance}
}

// DisplayName is the line's name, or "Line N" for the 0-based position index when unnamed.
func (d LineDefinition) DisplayName(index int) string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("Line %d", index+1)
}

// ReflectanceRow is one band of one reduced line.
type ReflectanceRow struct {
	Line        string  `json:"line"`
	Wavelength  int     `json:"wavelength_nm"`
	Irradiance  float64 `json:"irradiance"`
	Reflectance float64 `json:"reflectance"`
}

// MarshalJSON writes non-finite values as null.
func (r ReflectanceRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Line        string   `json:"line"`
		Wavelength  int      `json:"wavelength_nm"`
		Irradiance  *float64 `json:"irradiance"`
		Reflectance *float64 `json:"reflectance"`
	}{r.Line, r.Wavelength, finiteOrNil(r.Irradiance), finiteOrNil(r.Reflectance)})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// IrradianceText formats the averaged irradiance (uW/cm^2) with 2 decimals.
func (r ReflectanceRow) IrradianceText() string {
	return fmt.Sprintf("%.2f", r.Irradiance)
}

// ReflectanceText formats the reflectance with 4 decimals.
func (r ReflectanceRow) ReflectanceText() string {
	return fmt.Sprintf("%.4f", r.Reflectance)
}

// ReductionResult holds the rows produced for one device plus the problems recovered on the way.
type ReductionResult struct {
	Device         parser.Device
	Rows           []ReflectanceRow
	AnalysisErrors []string
}

func NewReductionResult(device parser.Device) *ReductionResult {
	return &ReductionResult{
		Device:         device,
		Rows:           make([]ReflectanceRow, 0),
		AnalysisErrors: make([]string, 0),
	}
}

// ErrInvalidDistance rejects a line whose distance is negative or not finite.
var ErrInvalidDistance = errors.New("distance must be a finite value >= 0")

// DateParseError reports a time query matching neither accepted layout.
type DateParseError struct {
	Query string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("date query %q is neither 'YYYY-MM-DD' nor 'YYYY-MM-DD HH:MM': %v", e.Query, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// NumericDefaultError reports a line-definition field that fell back to its default.
type NumericDefaultError struct {
	Field   string
	Value   string
	Default string
	Err     error
}

func (e *NumericDefaultError) Error() string {
	return fmt.Sprintf("field %s: cannot parse %q, using default %s", e.Field, e.Value, e.Default)
}

func (e *NumericDefaultError) Unwrap() error { return e.Err }
