package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/logger"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
	"github.com/innashapovalenko/stem-stella-class-website/internal/report"
	"github.com/innashapovalenko/stem-stella-class-website/internal/workspace"
)

// App struct
type App struct {
	ctx context.Context
	ws  *workspace.Workspace
	log logger.Logger
}

// NewApp creates a new App application struct
func NewApp(ws *workspace.Workspace, log logger.Logger) *App {
	return &App{ws: ws, log: log}
}

// Startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	runtime.WindowSetTitle(a.ctx, "STELLA Reflectance")
	if err := a.ws.Restore(); err != nil {
		a.sendStatus(fmt.Sprintf("Could not restore saved tables: %v", err))
	}
}

func (a *App) sendStatus(message string) {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "statusUpdate", message)
	}
	a.log.Info("app", message, nil)
}

func (a *App) clearLog() {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "clearLog")
	}
}

// SelectTableFile opens a file dialog for a raw CSV log.
func (a *App) SelectTableFile() (string, error) {
	return runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select raw CSV",
		Filters: []runtime.FileFilter{
			{DisplayName: "CSV files (*.csv)", Pattern: "*.csv"},
		},
	})
}

// LoadTableFile replaces the device's raw table with the CSV at path.
func (a *App) LoadTableFile(device string, path string) (string, error) {
	d, err := parser.ParseDevice(device)
	if err != nil {
		return "", err
	}

	a.clearLog()
	a.sendStatus(fmt.Sprintf("Parsing: %s", path))
	raw, err := os.ReadFile(path)
	if err != nil {
		a.sendStatus(fmt.Sprintf("Error reading file: %v", err))
		return "", err
	}

	table, err := a.ws.LoadTable(d, raw)
	if err != nil {
		a.sendStatus(fmt.Sprintf("Error parsing CSV: %v", err))
		return "", err
	}
	a.sendStatus(fmt.Sprintf("Parsed %d rows for %s.", len(table.Rows), d.DisplayName()))
	if len(table.ParseErrors) > 0 {
		a.sendStatus("Parsing Warnings/Errors:")
		for _, e := range table.ParseErrors {
			a.sendStatus(fmt.Sprintf("- %s", e))
		}
	}
	if schemaErr := table.SchemaErr(); schemaErr != nil {
		a.sendStatus(schemaErr.Error())
	}
	return fmt.Sprintf("Loaded %d rows.", len(table.Rows)), nil
}

// AddLine appends a line built from form fields (line_name, date, distance, cal1, cal2, dp1, dp2).
func (a *App) AddLine(device string, fields map[string]string) ([]analysis.LineDefinition, error) {
	d, err := parser.ParseDevice(device)
	if err != nil {
		return nil, err
	}

	def, problems := analysis.ParseLineDefinition(fields)
	for _, p := range problems {
		a.sendStatus(fmt.Sprintf("- %v", p))
	}
	count, err := a.ws.AddLine(d, def)
	if err != nil {
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("Line '%s' added to %s.", def.DisplayName(count-1), d.DisplayName()))
	return a.ws.Lines(d)
}

func (a *App) Lines(device string) ([]analysis.LineDefinition, error) {
	d, err := parser.ParseDevice(device)
	if err != nil {
		return nil, err
	}
	return a.ws.Lines(d)
}

func (a *App) RemoveLine(device string, index int) ([]analysis.LineDefinition, error) {
	d, err := parser.ParseDevice(device)
	if err != nil {
		return nil, err
	}
	removed, err := a.ws.RemoveLine(d, index)
	if err != nil {
		a.sendStatus(fmt.Sprintf("Invalid line index for %s.", d.DisplayName()))
		return nil, err
	}
	a.sendStatus(fmt.Sprintf("Line '%s' removed from %s.", removed.DisplayName(index), d.DisplayName()))
	return a.ws.Lines(d)
}

func (a *App) Clear(device string) error {
	d, err := parser.ParseDevice(device)
	if err != nil {
		return err
	}
	res, err := a.ws.Clear(d)
	if err != nil {
		a.sendStatus(fmt.Sprintf("Error clearing %s: %v", d.DisplayName(), err))
		return err
	}
	a.sendStatus(fmt.Sprintf("Cleared %s: %d line(s), table removed: %t.", d.DisplayName(), res.LinesRemoved, res.HadTable))
	return nil
}

// Compute returns the current reflectance rows of the device.
func (a *App) Compute(device string) (*analysis.ReductionResult, error) {
	d, err := parser.ParseDevice(device)
	if err != nil {
		return nil, err
	}
	result, err := a.ws.Compute(d)
	if err != nil {
		return nil, err
	}
	for _, e := range result.AnalysisErrors {
		a.sendStatus(fmt.Sprintf("- %s", e))
	}
	return result, nil
}

// HandleExportReport writes the device's PDF report in the background and signals completion by event.
func (a *App) HandleExportReport(device string) (string, error) {
	d, err := parser.ParseDevice(device)
	if err != nil {
		return "", err
	}

	pdfFilePath, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Save report",
		DefaultFilename: string(d) + "_reflectance.pdf",
		Filters: []runtime.FileFilter{
			{DisplayName: "PDF files (*.pdf)", Pattern: "*.pdf"},
		},
	})
	if err != nil {
		return "", err
	}
	if pdfFilePath == "" {
		return "Export cancelled.", nil
	}

	a.clearLog()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errMsg := fmt.Sprintf("PANIC recovered: %v", r)
				a.sendStatus(errMsg)
				runtime.EventsEmit(a.ctx, "generationComplete", false, errMsg)
			}
		}()

		runtime.EventsEmit(a.ctx, "generationStart")

		lines, result, err := a.ws.Snapshot(d)
		if err != nil {
			errMsg := fmt.Sprintf("Error reducing data: %v", err)
			a.sendStatus(errMsg)
			runtime.EventsEmit(a.ctx, "generationComplete", false, errMsg)
			return
		}
		a.sendStatus(fmt.Sprintf("Reduction complete. %d rows from %d line(s).", len(result.Rows), len(lines)))

		a.sendStatus("Generating plots...")
		images, problems := report.GeneratePlots(d, result.Rows)
		for _, p := range problems {
			a.sendStatus(p)
		}

		a.sendStatus(fmt.Sprintf("Generating PDF: %s...", pdfFilePath))
		err = report.BuildPDFReportFile(pdfFilePath, report.ReportInput{
			Device:      d,
			Lines:       lines,
			Result:      result,
			PlotImages:  images,
			GeneratedAt: time.Now(),
		})
		if err != nil {
			errMsg := fmt.Sprintf("Error generating PDF report: %v", err)
			a.sendStatus(errMsg)
			runtime.EventsEmit(a.ctx, "generationComplete", false, errMsg)
			return
		}
		successMsg := fmt.Sprintf("PDF report successfully generated: %s", pdfFilePath)
		a.sendStatus(successMsg)
		runtime.EventsEmit(a.ctx, "generationComplete", true, successMsg)
	}()

	return "Report generation started in background.", nil
}
