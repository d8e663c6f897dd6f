package analysis

import (
	"strconv"
	"strings"
)

// Form keys of a line definition.
const (
	FieldLineName = "line_name"
	FieldDate     = "date"
	FieldDistance = "distance"
	FieldCal1     = "cal1"
	FieldCal2     = "cal2"
	FieldDP1      = "dp1"
	FieldDP2      = "dp2"
)

// ParseLineDefinition builds a typed definition from submitted form fields.
// Absent or blank numeric fields take their defaults silently; unparseable ones take their defaults and are
// reported as *NumericDefaultError.
func ParseLineDefinition(fields map[string]string) (LineDefinition, []error) {
	def := NewLineDefinition()
	var problems []error

	def.Name = strings.TrimSpace(fields[FieldLineName])
	def.Date = fields[FieldDate]

	if raw := strings.TrimSpace(fields[FieldDistance]); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems = append(problems, &NumericDefaultError{Field: FieldDistance, Value: raw, Default: "1.0", Err: err})
		} else {
			def.Distance = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{FieldCal1, &def.Cal1},
		{FieldCal2, &def.Cal2},
		{FieldDP1, &def.DP1},
		{FieldDP2, &def.DP2},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(fields[f.key])
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, &NumericDefaultError{Field: f.key, Value: raw, Default: "0", Err: err})
			continue
		}
		*f.dst = v
	}

	return def, problems
}
