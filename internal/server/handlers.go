package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
	"github.com/innashapovalenko/stem-stella-class-website/internal/report"
	"github.com/innashapovalenko/stem-stella-class-website/internal/workspace"
)

// Flash categories, as shown to the user.
const (
	CategorySuccess = "success"
	CategoryInfo    = "info"
	CategoryWarning = "warning"
	CategoryError   = "error"
)

// Flash is the response body of every mutating route.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func flash(c *fiber.Ctx, status int, category, message string) error {
	return c.Status(status).JSON(Flash{Category: category, Message: message})
}

// device resolves the :device route parameter. When ok is false the error response is already written
// and the handler returns respErr.
func (s *Server) device(c *fiber.Ctx) (device parser.Device, ok bool, respErr error) {
	device, err := parser.ParseDevice(c.Params("device"))
	if err != nil {
		s.log.Warn("server", "Invalid device", map[string]interface{}{"device": c.Params("device"), "path": c.Path()})
		return "", false, flash(c, fiber.StatusNotFound, CategoryError, fmt.Sprintf("Invalid device: %s", c.Params("device")))
	}
	return device, true, nil
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}
	label := strings.ToUpper(string(device))

	fh, err := c.FormFile("file")
	if err != nil {
		return flash(c, fiber.StatusBadRequest, CategoryError, "No file part in the request.")
	}
	if fh.Filename == "" {
		return flash(c, fiber.StatusBadRequest, CategoryWarning, "No selected file.")
	}

	f, err := fh.Open()
	if err != nil {
		return flash(c, fiber.StatusBadRequest, CategoryError, fmt.Sprintf("Error uploading file for %s: %v", label, err))
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return flash(c, fiber.StatusBadRequest, CategoryError, fmt.Sprintf("Error uploading file for %s: %v", label, err))
	}

	table, err := s.ws.LoadTable(device, raw)
	if err != nil {
		return flash(c, fiber.StatusBadRequest, CategoryError, fmt.Sprintf("Error uploading file for %s: %v", label, err))
	}
	if schemaErr := table.SchemaErr(); schemaErr != nil {
		return flash(c, fiber.StatusOK, CategoryWarning, fmt.Sprintf("File for %s uploaded, but %v", label, schemaErr))
	}
	return flash(c, fiber.StatusOK, CategorySuccess, fmt.Sprintf("File for %s uploaded successfully!", label))
}

func (s *Server) handleAddLine(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}

	fields := make(map[string]string)
	for _, key := range []string{
		analysis.FieldLineName, analysis.FieldDate, analysis.FieldDistance,
		analysis.FieldCal1, analysis.FieldCal2, analysis.FieldDP1, analysis.FieldDP2,
	} {
		if v := c.FormValue(key); v != "" {
			fields[key] = v
		}
	}

	def, problems := analysis.ParseLineDefinition(fields)
	for _, p := range problems {
		s.log.Warn("server", "Line field fell back to default", map[string]interface{}{
			"device": string(device),
			"error":  p.Error(),
		})
	}

	count, err := s.ws.AddLine(device, def)
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}

	msg := fmt.Sprintf("New line '%s' added to %s table!", def.DisplayName(count-1), strings.ToUpper(string(device)))
	if len(problems) > 0 {
		msg = fmt.Sprintf("%s (%d field(s) defaulted)", msg, len(problems))
	}
	return flash(c, fiber.StatusOK, CategoryInfo, msg)
}

func (s *Server) handleRemoveLine(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}
	label := strings.ToUpper(string(device))

	idx, err := c.ParamsInt("idx")
	if err != nil {
		return flash(c, fiber.StatusBadRequest, CategoryWarning, fmt.Sprintf("Invalid line index for %s.", label))
	}

	removed, err := s.ws.RemoveLine(device, idx)
	if errors.Is(err, workspace.ErrLineIndexOutOfRange) {
		return flash(c, fiber.StatusBadRequest, CategoryWarning, fmt.Sprintf("Invalid line index for %s.", label))
	}
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}

	return flash(c, fiber.StatusOK, CategoryInfo, fmt.Sprintf("Line '%s' removed from %s table.", removed.DisplayName(idx), label))
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}
	label := strings.ToUpper(string(device))

	res, err := s.ws.Clear(device)
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, fmt.Sprintf("Error clearing %s: %v", label, err))
	}
	if res.FileRemoved || res.HadTable {
		return flash(c, fiber.StatusOK, CategorySuccess, fmt.Sprintf("All lines and data file for %s cleared!", label))
	}
	return flash(c, fiber.StatusOK, CategorySuccess, fmt.Sprintf("All lines for %s cleared!", label))
}

func (s *Server) handleLines(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}
	lines, err := s.ws.Lines(device)
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}
	return c.JSON(lines)
}

func (s *Server) handleRawData(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}
	table, err := s.ws.Table(device)
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}
	if table == nil {
		return c.JSON([]parser.RawRow{})
	}
	return c.JSON(table.Rows)
}

type tableResponse struct {
	Device   string                    `json:"device"`
	Rows     []analysis.ReflectanceRow `json:"rows"`
	Warnings []string                  `json:"warnings"`
}

func (s *Server) handleTable(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}
	result, err := s.ws.Compute(device)
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}
	return c.JSON(tableResponse{Device: string(device), Rows: result.Rows, Warnings: result.AnalysisErrors})
}

func (s *Server) handleReport(c *fiber.Ctx) error {
	device, ok, err := s.device(c)
	if !ok {
		return err
	}
	lines, result, err := s.ws.Snapshot(device)
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}

	images, problems := report.GeneratePlots(device, result.Rows)
	for _, p := range problems {
		s.log.Warn("server", p, map[string]interface{}{"device": string(device)})
	}

	var buf bytes.Buffer
	err = report.BuildPDFReport(&buf, report.ReportInput{
		Device:      device,
		Lines:       lines,
		Result:      result,
		PlotImages:  images,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", string(device)+"_reflectance.pdf"))
	return c.Send(buf.Bytes())
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>STELLA Reflectance</title></head>
<body>
{{range .}}<section id="{{.ID}}"><h2>{{.Title}}</h2>
{{.Table}}
</section>
{{end}}</body></html>`))

type indexSection struct {
	ID    string
	Title string
	Table template.HTML
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	sections := make([]indexSection, 0, len(parser.Devices))
	for _, device := range parser.Devices {
		result, err := s.ws.Compute(device)
		if err != nil {
			return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
		}
		var buf bytes.Buffer
		if err := report.RenderHTML(&buf, report.Pivot(device, result.Rows)); err != nil {
			return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
		}
		sections = append(sections, indexSection{
			ID:    string(device),
			Title: device.DisplayName(),
			Table: template.HTML(buf.String()), // produced by html/template, already escaped
		})
	}

	var page bytes.Buffer
	if err := indexTemplate.Execute(&page, sections); err != nil {
		return flash(c, fiber.StatusInternalServerError, CategoryError, err.Error())
	}
	c.Type("html", "utf-8")
	return c.Send(page.Bytes())
}
