package report

import (
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
)

// MissingCell is shown where a line has no value for a wavelength.
const MissingCell = "N/A"

// Cell is one line's formatted values at one wavelength.
type Cell struct {
	Irradiance  string
	Reflectance string
}

// PivotTable is the wavelength x line display table of one device.
type PivotTable struct {
	Device      parser.Device
	Wavelengths []int
	Lines       []string // unique line names, sorted
	cells       map[int]map[string]Cell
}

// Pivot arranges reflectance rows by wavelength and line. Rows at wavelengths the device does not measure are
// dropped; when two lines share a name the later row wins.
func Pivot(device parser.Device, rows []analysis.ReflectanceRow) *PivotTable {
	p := &PivotTable{
		Device:      device,
		Wavelengths: device.Wavelengths(),
		Lines:       make([]string, 0),
		cells:       make(map[int]map[string]Cell),
	}
	for _, wl := range p.Wavelengths {
		p.cells[wl] = make(map[string]Cell)
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		if !seen[row.Line] {
			seen[row.Line] = true
			p.Lines = append(p.Lines, row.Line)
		}
		byLine, ok := p.cells[row.Wavelength]
		if !ok {
			continue
		}
		byLine[row.Line] = Cell{
			Irradiance:  row.IrradianceText(),
			Reflectance: row.ReflectanceText(),
		}
	}
	sort.Strings(p.Lines)
	return p
}

// Empty reports whether the table has no lines.
func (p *PivotTable) Empty() bool {
	return len(p.Lines) == 0
}

// Cell returns the formatted values at (wavelength, line), MissingCell for both when absent.
func (p *PivotTable) Cell(wavelength int, line string) Cell {
	if c, ok := p.cells[wavelength][line]; ok {
		return c
	}
	return Cell{Irradiance: MissingCell, Reflectance: MissingCell}
}

// Row returns the cells of one wavelength in Lines order.
func (p *PivotTable) Row(wavelength int) []Cell {
	out := make([]Cell, len(p.Lines))
	for i, line := range p.Lines {
		out[i] = p.Cell(wavelength, line)
	}
	return out
}

type htmlRow struct {
	Wavelength int
	Cells      []Cell
}

type htmlTable struct {
	Device string
	Lines  []string
	Rows   []htmlRow
}

var tableTemplate = template.Must(template.New("table").Parse(`{{if not .Lines -}}
<p class='text-center text-gray-500'>No data to display for {{.Device}} table. Upload a CSV and add a line.</p>
{{- else -}}
<table class='min-w-full bg-white border border-gray-300 rounded-md shadow-sm'><thead><tr class='bg-gray-100'>
<th class='py-2 px-4 border-b text-left text-sm font-semibold text-gray-700'>Wavelength (nm)</th>
{{- range .Lines}}
<th class='py-2 px-4 border-b text-left text-sm font-semibold text-gray-700'>{{.}} (Irradiance)</th>
<th class='py-2 px-4 border-b text-left text-sm font-semibold text-gray-700'>{{.}} (Reflectance)</th>
{{- end}}
</tr></thead><tbody>
{{- range .Rows}}
<tr><td class='py-2 px-4 border-b text-sm text-gray-800'>{{.Wavelength}}</td>
{{- range .Cells}}<td class='py-2 px-4 border-b text-sm text-gray-800'>{{.Irradiance}}</td><td class='py-2 px-4 border-b text-sm text-gray-800'>{{.Reflectance}}</td>{{end}}</tr>
{{- end}}
</tbody></table>
{{- end}}`))

// RenderHTML writes the pivot table as an HTML fragment. Line names are escaped.
func RenderHTML(w io.Writer, p *PivotTable) error {
	data := htmlTable{Device: string(p.Device), Lines: p.Lines}
	if !p.Empty() {
		for _, wl := range p.Wavelengths {
			data.Rows = append(data.Rows, htmlRow{Wavelength: wl, Cells: p.Row(wl)})
		}
	}
	if err := tableTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s table: %w", p.Device, err)
	}
	return nil
}
