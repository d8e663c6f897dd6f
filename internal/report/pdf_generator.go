package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)

	linesPerTable = 4 // pivot columns per line are split over several tables beyond this
)

// Plot keys understood by BuildPDFReport.
const (
	PlotSpectrumReflectance = "spectrum_reflectance"
	PlotSpectrumIrradiance  = "spectrum_irradiance"
	PlotHeatmapReflectance  = "heatmap_reflectance"
)

// HeatmapReflectanceCap is the top of the report heatmap's color scale. Cells above it, such as the
// near-zero-denominator ratios, show as the overflow color.
const HeatmapReflectanceCap = 1.5

// ReportInput is everything rendered into a device report.
type ReportInput struct {
	Device      parser.Device
	Lines       []analysis.LineDefinition
	Result      *analysis.ReductionResult
	PlotImages  map[string][]byte
	GeneratedAt time.Time
}

// GeneratePlots renders every report plot for the rows. Plots that fail are skipped and reported.
func GeneratePlots(device parser.Device, rows []analysis.ReflectanceRow) (map[string][]byte, []string) {
	images := make(map[string][]byte)
	var problems []string
	if len(rows) == 0 {
		return images, problems
	}

	plotConfigs := []struct {
		Key  string
		Make func() ([]byte, error)
	}{
		{PlotSpectrumReflectance, func() ([]byte, error) { return CreateSpectrumPlot(device, rows, SpectrumReflectance) }},
		{PlotSpectrumIrradiance, func() ([]byte, error) { return CreateSpectrumPlot(device, rows, SpectrumIrradiance) }},
		{PlotHeatmapReflectance, func() ([]byte, error) { return CreateHeatmapPlot(device, rows, HeatmapReflectanceCap) }},
	}
	for _, pc := range plotConfigs {
		img, err := pc.Make()
		if err != nil {
			problems = append(problems, fmt.Sprintf("Error generating plot %s: %v", pc.Key, err))
			continue
		}
		images[pc.Key] = img
	}
	return images, problems
}

// pdfStyler holds reusable styling and the flowing Y position.
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	tr          func(string) string
	styles      map[string]func()
	lineHeight  float64
	currentY    float64
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		tr:          pdf.UnicodeTranslatorFromDescriptor(""),
		styles:      make(map[string]func()),
		lineHeight:  6, // mm
		pageHeight:  pdfPageHeightLandscape - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["small"] = func() {
		s.pdf.SetFont("Arial", "", 8)
		s.pdf.SetTextColor(90, 90, 90)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellMuted"] = func() { // N/A cells
		s.pdf.SetFont("Arial", "I", 9)
		s.pdf.SetTextColor(150, 150, 150)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.newPage()
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	s.checkAddPage(s.lineHeight)
	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, s.tr(text), "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.checkAddPage(height)
	s.currentY += height
}

// writeTable draws a bordered table; cells equal to MissingCell are muted.
func (s *pdfStyler) writeTable(headers []string, colWidthsRel []float64, rows [][]string) {
	colWidthsAbs := make([]float64, len(colWidthsRel))
	for i, rel := range colWidthsRel {
		colWidthsAbs[i] = rel * pdfContentWidth
	}

	drawHeader := func() {
		sX := pdfMargin
		s.applyStyle("tableHeader")
		for i, header := range headers {
			s.pdf.SetXY(sX, s.currentY)
			s.pdf.CellFormat(colWidthsAbs[i], s.lineHeight, s.tr(header), "1", 0, "C", true, 0, "")
			sX += colWidthsAbs[i]
		}
		s.currentY += s.lineHeight
	}

	s.checkAddPage(s.lineHeight * math.Min(float64(len(rows))+1, 6))
	drawHeader()
	for _, row := range rows {
		if s.currentY+s.lineHeight > s.pageHeight {
			s.newPage()
			drawHeader()
		}
		sX := pdfMargin
		for i, cellData := range row {
			s.pdf.SetXY(sX, s.currentY)
			if cellData == MissingCell {
				s.applyStyle("tableCellMuted")
			} else {
				s.applyStyle("tableCell")
			}
			s.pdf.CellFormat(colWidthsAbs[i], s.lineHeight, s.tr(cellData), "1", 0, "C", false, 0, "")
			sX += colWidthsAbs[i]
		}
		s.currentY += s.lineHeight
	}
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width float64, height float64, caption string) {
	info := s.pdf.RegisterImageReader(imageName, "PNG", bytes.NewReader(imageBytes))
	if info != nil && info.Width() > 0 {
		height = width * info.Height() / info.Width()
	}
	if maxHeight := s.pageHeight - s.contentTopY - 2*s.lineHeight; height > maxHeight {
		width *= maxHeight / height
		height = maxHeight
	}

	if width > pdfContentWidth {
		ratio := pdfContentWidth / width
		width = pdfContentWidth
		height *= ratio
	}

	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	s.pdf.Image(imageName, pdfMargin+(pdfContentWidth-width)/2, s.currentY, width, height, false, "PNG", 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "small", "C")
	}
	s.addSpacer(2)
}

// BuildPDFReport writes the device report (line definitions, pivot table, warnings, plots) to w.
func BuildPDFReport(w io.Writer, in ReportInput) error {
	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	styler := newPDFStyler(pdf)

	generatedAt := in.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	styler.writeParagraph(fmt.Sprintf("%s Reflectance Report", in.Device.DisplayName()), "h1", "C")
	styler.writeParagraph(fmt.Sprintf("Generated %s", generatedAt.Format("2006-01-02 15:04")), "small", "C")
	styler.addSpacer(5)

	styler.writeParagraph("Line Definitions", "h2", "L")
	if len(in.Lines) == 0 {
		styler.writeParagraph("No lines defined.", "normal", "L")
	} else {
		rows := make([][]string, len(in.Lines))
		for i, l := range in.Lines {
			rows[i] = []string{
				strconv.Itoa(i + 1),
				l.DisplayName(i),
				l.Date,
				strconv.FormatFloat(l.Distance, 'f', -1, 64),
				strconv.Itoa(l.DP1),
				strconv.Itoa(l.DP2),
				strconv.Itoa(l.Cal1),
				strconv.Itoa(l.Cal2),
			}
		}
		styler.writeTable(
			[]string{"#", "Line", "Date", "Distance", "DP1", "DP2", "Cal1", "Cal2"},
			[]float64{0.05, 0.25, 0.2, 0.1, 0.1, 0.1, 0.1, 0.1},
			rows,
		)
	}
	styler.addSpacer(5)

	var rows []analysis.ReflectanceRow
	if in.Result != nil {
		rows = in.Result.Rows
	}
	pivot := Pivot(in.Device, rows)

	styler.writeParagraph("Irradiance (uW/cm^2) and Reflectance", "h2", "L")
	if pivot.Empty() {
		styler.writeParagraph(fmt.Sprintf("No data to display for %s. Upload a CSV and add a line.", in.Device.DisplayName()), "normal", "L")
	}
	for start := 0; start < len(pivot.Lines); start += linesPerTable {
		end := start + linesPerTable
		if end > len(pivot.Lines) {
			end = len(pivot.Lines)
		}
		chunk := pivot.Lines[start:end]

		headers := []string{"Wavelength (nm)"}
		widths := []float64{0.12}
		colWidth := 0.88 / float64(2*len(chunk))
		for _, name := range chunk {
			headers = append(headers, name+" (Irr.)", name+" (Refl.)")
			widths = append(widths, colWidth, colWidth)
		}

		tableRows := make([][]string, len(pivot.Wavelengths))
		for i, wl := range pivot.Wavelengths {
			r := []string{strconv.Itoa(wl)}
			for _, name := range chunk {
				c := pivot.Cell(wl, name)
				r = append(r, c.Irradiance, c.Reflectance)
			}
			tableRows[i] = r
		}
		styler.writeTable(headers, widths, tableRows)
		styler.addSpacer(4)
	}

	if in.Result != nil && len(in.Result.AnalysisErrors) > 0 {
		styler.writeParagraph("Warnings", "h2", "L")
		for _, e := range in.Result.AnalysisErrors {
			styler.writeParagraph("- "+e, "small", "L")
		}
	}

	plotDefs := []struct {
		Key     string
		Title   string
		Caption string
	}{
		{PlotSpectrumReflectance, "Reflectance Spectra", "Reflectance (target radiance / reference radiance) per line"},
		{PlotSpectrumIrradiance, "Target Irradiance", "Averaged target irradiance (uW/cm^2) per line"},
		{PlotHeatmapReflectance, "Reflectance Heatmap", "Reflectance by wavelength and line"},
	}

	imgWidth := pdfContentWidth * 0.85
	imgHeight := imgWidth * 0.5

	for _, pDef := range plotDefs {
		imgBytes, ok := in.PlotImages[pDef.Key]
		if !ok || len(imgBytes) == 0 {
			continue
		}
		styler.newPage()
		styler.writeParagraph(pDef.Title, "h2", "L")
		styler.addImage(imgBytes, pDef.Key, imgWidth, imgHeight, pDef.Caption)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF report: %w", err)
	}
	return nil
}

// BuildPDFReportFile writes the report to filepath.
func BuildPDFReportFile(filepath string, in ReportInput) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create PDF file: %w", err)
	}
	if err := BuildPDFReport(file, in); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
