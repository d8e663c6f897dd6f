package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Device identifies an instrument family.
type Device string

const (
	DeviceStella1  Device = "stella1"  // STELLA-1.1, 12 bands, one column per band
	DeviceStellaQ2 Device = "stellaq2" // STELLA-Q2, 18 bands, one row per band reading
)

// Devices lists the supported devices in display order.
var Devices = []Device{DeviceStella1, DeviceStellaQ2}

// ErrUnknownDevice is returned for device ids outside Devices.
var ErrUnknownDevice = errors.New("unknown device")

// Column names of the STELLA-1.1 export.
const (
	Stella1BatchColumn     = "batch_number"
	Stella1TimestampColumn = "timestamp_iso8601"
)

// Stella1IrradianceColumns are positionally aligned with Stella1Wavelengths.
var Stella1IrradianceColumns = []string{
	"irradiance_450nm_blue_irradiance_uW_per_cm_squared",
	"irradiance_500nm_cyan_irradiance_uW_per_cm_squared",
	"irradiance_550nm_green_irradiance_uW_per_cm_squared",
	"irradiance_570nm_yellow_irradiance_uW_per_cm_squared",
	"irradiance_600nm_orange_irradiance_uW_per_cm_squared",
	"irradiance_610nm_orange_irradiance_uW_per_cm_squared",
	"irradiance_650nm_red_irradiance_uW_per_cm_squared",
	"irradiance_680nm_near_infrared_irradiance_uW_per_cm_squared",
	"irradiance_730nm_near_infrared_irradiance_uW_per_cm_squared",
	"irradiance_760nm_near_infrared_irradiance_uW_per_cm_squared",
	"irradiance_810nm_near_infrared_irradiance_uW_per_cm_squared",
	"irradiance_860nm_near_infrared_irradiance_uW_per_cm_squared",
}

// Column names of the STELLA-Q2 export.
const (
	StellaQ2BatchColumn      = "batch"
	StellaQ2TimestampColumn  = "iso8601_utc"
	StellaQ2AttemptColumn    = "mmn"
	StellaQ2IrradianceColumn = "irrad.uW/(cm^2)"
)

var (
	Stella1Wavelengths  = []int{450, 500, 550, 570, 600, 610, 650, 680, 730, 760, 810, 860}
	StellaQ2Wavelengths = []int{410, 435, 460, 485, 510, 535, 560, 585, 610, 645, 680, 705, 730, 760, 810, 860, 900, 940}
)

// ParseDevice maps a (case-insensitive) device id to a Device.
func ParseDevice(s string) (Device, error) {
	d := Device(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Devices {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDevice, s)
}

// Wavelengths returns the band labels (nm) of the device. The slice is shared; do not modify it.
func (d Device) Wavelengths() []int {
	switch d {
	case DeviceStella1:
		return Stella1Wavelengths
	case DeviceStellaQ2:
		return StellaQ2Wavelengths
	}
	return nil
}

// BandCount is the fixed length of a wavelength vector for the device.
func (d Device) BandCount() int {
	return len(d.Wavelengths())
}

// DisplayName is the instrument name used in reports.
func (d Device) DisplayName() string {
	switch d {
	case DeviceStella1:
		return "STELLA-1.1"
	case DeviceStellaQ2:
		return "STELLA-Q2"
	}
	return strings.ToUpper(string(d))
}

// RequiredColumns lists the header names the device's selector depends on.
func (d Device) RequiredColumns() []string {
	switch d {
	case DeviceStella1:
		cols := []string{Stella1BatchColumn, Stella1TimestampColumn}
		return append(cols, Stella1IrradianceColumns...)
	case DeviceStellaQ2:
		return []string{StellaQ2BatchColumn, StellaQ2TimestampColumn, StellaQ2AttemptColumn, StellaQ2IrradianceColumn}
	}
	return nil
}

// SchemaError reports required columns absent from a raw table header.
type SchemaError struct {
	Device  Device
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s table is missing required column(s): %s", e.Device.DisplayName(), strings.Join(e.Missing, ", "))
}

// RawRow is one measurement sample.
// A STELLA-1.1 row carries all 12 band readings; a STELLA-Q2 row carries a single reading.
type RawRow struct {
	Batch     int       `json:"batch"`
	Timestamp string    `json:"timestamp"`
	Attempt   int       `json:"attempt"`
	Readings  []float64 `json:"readings"`
}

// MarshalJSON writes NaN readings (empty or unparseable cells) as null.
func (r RawRow) MarshalJSON() ([]byte, error) {
	readings := make([]*float64, len(r.Readings))
	for i := range r.Readings {
		if v := r.Readings[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			readings[i] = &v
		}
	}
	return json.Marshal(struct {
		Batch     int        `json:"batch"`
		Timestamp string     `json:"timestamp"`
		Attempt   int        `json:"attempt"`
		Readings  []*float64 `json:"readings"`
	}{r.Batch, r.Timestamp, r.Attempt, readings})
}

// RawTable is a loaded raw measurement table. Rows keep load order; the table is not modified after loading.
type RawTable struct {
	Device      Device
	Columns     []string // trimmed header names in file order
	Rows        []RawRow
	Missing     []string // required columns absent from the header
	ParseErrors []string // non-fatal problems found while loading
}

// NewRawTable initializes an empty table for the device.
func NewRawTable(device Device) *RawTable {
	return &RawTable{
		Device:      device,
		Columns:     make([]string, 0),
		Rows:        make([]RawRow, 0),
		Missing:     make([]string, 0),
		ParseErrors: make([]string, 0),
	}
}

// SchemaErr returns a *SchemaError when required columns are missing, nil otherwise.
func (t *RawTable) SchemaErr() error {
	if t == nil || len(t.Missing) == 0 {
		return nil
	}
	return &SchemaError{Device: t.Device, Missing: append([]string(nil), t.Missing...)}
}

// HasColumn reports whether the header contained name.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Empty reports whether the table holds no rows.
func (t *RawTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}
