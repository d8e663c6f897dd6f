package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// reflectanceGrid implements plotter.GridXYZ: columns are band indexes, rows are lines.
type reflectanceGrid struct {
	cols int
	rows int
	z    [][]float64 // [row][col]
}

func (g *reflectanceGrid) Dims() (c, r int) { return g.cols, g.rows }
func (g *reflectanceGrid) Z(c, r int) float64 { return g.z[r][c] }
func (g *reflectanceGrid) X(c int) float64    { return float64(c) }
func (g *reflectanceGrid) Y(r int) float64    { return float64(r) }

// CreateHeatmapPlot renders reflectance per (band, line). Lines are sorted by name, bands keep device order.
// Values outside [0, maxReflectance] take the palette's end colors; maxReflectance <= 0 scales to the
// 5th..95th percentile of the finite values.
func CreateHeatmapPlot(device parser.Device, rows []analysis.ReflectanceRow, maxReflectance float64) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no reflectance rows to plot heatmap")
	}

	wavelengths := device.Wavelengths()
	bandIndex := make(map[int]int, len(wavelengths))
	for i, wl := range wavelengths {
		bandIndex[wl] = i
	}

	order, byLine := groupByLine(rows)
	sort.Strings(order)

	grid := &reflectanceGrid{cols: len(wavelengths), rows: len(order), z: make([][]float64, len(order))}
	var allValid []float64
	for r, name := range order {
		grid.z[r] = make([]float64, len(wavelengths))
		for c := range grid.z[r] {
			grid.z[r][c] = math.NaN()
		}
		for _, row := range byLine[name] {
			c, ok := bandIndex[row.Wavelength]
			if !ok {
				continue
			}
			grid.z[r][c] = row.Reflectance
			if !math.IsNaN(row.Reflectance) && !math.IsInf(row.Reflectance, 0) {
				allValid = append(allValid, row.Reflectance)
			}
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Reflectance Heatmap (%s)", device.DisplayName())
	p.X.Label.Text = "Wavelength (nm)"
	p.Y.Label.Text = "Line"

	xTicks := make([]plot.Tick, len(wavelengths))
	for i, wl := range wavelengths {
		xTicks[i] = plot.Tick{Value: float64(i), Label: fmt.Sprintf("%d", wl)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.X.Min = -0.5
	p.X.Max = float64(len(wavelengths)) - 0.5

	yTicks := make([]plot.Tick, len(order))
	for i, name := range order {
		yTicks[i] = plot.Tick{Value: float64(i), Label: name}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)
	p.Y.Min = -0.5
	p.Y.Max = float64(len(order)) - 0.5

	pal := palette.Heat(12, 1)
	hm := plotter.NewHeatMap(grid, pal)
	hm.NaN = color.Gray{Y: 200}
	hm.Underflow = pal.Colors()[0]
	hm.Overflow = pal.Colors()[len(pal.Colors())-1]

	hm.Min, hm.Max = heatmapScale(allValid, maxReflectance)
	p.Add(hm)

	writer, err := p.WriterTo(vg.Points(1000), vg.Points(float64(120+30*len(order))), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create heatmap writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write heatmap to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

// Percentiles bounding the uncapped heatmap scale, so a single blown-up ratio does not flatten the rest.
const (
	heatmapLowPercentile  = 0.05
	heatmapHighPercentile = 0.95
)

// heatmapScale returns the color range for the finite values. values is not modified.
func heatmapScale(values []float64, maxReflectance float64) (lo, hi float64) {
	if maxReflectance > 0 {
		return 0, maxReflectance
	}
	if len(values) == 0 {
		return 0, 1
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	last := float64(len(sorted) - 1)
	i, j := int(math.Ceil(heatmapLowPercentile*last)), int(math.Floor(heatmapHighPercentile*last))
	if i > j {
		i, j = 0, len(sorted)-1
	}
	lo, hi = sorted[i], sorted[j]
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}
