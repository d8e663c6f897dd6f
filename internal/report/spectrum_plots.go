package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Values a spectrum plot can show.
const (
	SpectrumReflectance = "reflectance"
	SpectrumIrradiance  = "irradiance"
)

var plotColors = []color.Color{
	color.RGBA{R: 255, G: 0, B: 0, A: 255},   // Red
	color.RGBA{G: 160, A: 255},               // Green
	color.RGBA{B: 255, A: 255},               // Blue
	color.RGBA{R: 255, G: 165, B: 0, A: 255}, // Orange
	color.RGBA{R: 128, G: 0, B: 128, A: 255}, // Purple
	color.RGBA{G: 128, B: 128, A: 255},       // Teal
}

// groupByLine splits rows per line, keeping first-appearance order of lines.
func groupByLine(rows []analysis.ReflectanceRow) ([]string, map[string][]analysis.ReflectanceRow) {
	order := make([]string, 0)
	byLine := make(map[string][]analysis.ReflectanceRow)
	for _, row := range rows {
		if _, ok := byLine[row.Line]; !ok {
			order = append(order, row.Line)
		}
		byLine[row.Line] = append(byLine[row.Line], row)
	}
	return order, byLine
}

// CreateSpectrumPlot draws one line per measurement line: reflectance or irradiance against wavelength.
func CreateSpectrumPlot(device parser.Device, rows []analysis.ReflectanceRow, valueKind string) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no reflectance rows to plot")
	}

	p := plot.New()

	switch valueKind {
	case SpectrumReflectance:
		p.Title.Text = fmt.Sprintf("Reflectance Spectra (%s)", device.DisplayName())
		p.Y.Label.Text = "Reflectance"
	case SpectrumIrradiance:
		p.Title.Text = fmt.Sprintf("Averaged Target Irradiance (%s)", device.DisplayName())
		p.Y.Label.Text = "Irradiance (uW/cm^2)"
	default:
		return nil, fmt.Errorf("unknown plot type: %s", valueKind)
	}
	p.X.Label.Text = "Wavelength (nm)"

	wavelengths := device.Wavelengths()
	if len(wavelengths) > 0 {
		p.X.Min = float64(wavelengths[0]) - 10
		p.X.Max = float64(wavelengths[len(wavelengths)-1]) + 10
		ticks := make([]plot.Tick, len(wavelengths))
		for i, wl := range wavelengths {
			ticks[i] = plot.Tick{Value: float64(wl), Label: fmt.Sprintf("%d", wl)}
		}
		p.X.Tick.Marker = plot.ConstantTicks(ticks)
	}

	p.Add(plotter.NewGrid())

	order, byLine := groupByLine(rows)
	linesPlotted := false
	for i, name := range order {
		pts := make(plotter.XYs, 0, len(byLine[name]))
		for _, row := range byLine[name] {
			val := row.Reflectance
			if valueKind == SpectrumIrradiance {
				val = row.Irradiance
			}
			if math.IsNaN(val) || math.IsInf(val, 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(row.Wavelength), Y: val})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create line for %s: %w", name, err)
		}
		line.Color = plotColors[i%len(plotColors)]
		line.LineStyle.Width = vg.Points(1.5)

		marks, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create markers for %s: %w", name, err)
		}
		marks.GlyphStyle.Color = line.Color
		marks.GlyphStyle.Radius = vg.Points(2)

		p.Add(line, marks)
		p.Legend.Add(name, line, marks)
		linesPlotted = true
	}

	if !linesPlotted && valueKind == SpectrumReflectance {
		p.Y.Min = 0
		p.Y.Max = 1
	}

	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-10)

	writer, err := p.WriterTo(vg.Points(800), vg.Points(400), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %w", err)
	}
	return buf.Bytes(), nil
}
