package workspace

import (
	"errors"
	"fmt"
	"sync"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/logger"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
	"github.com/innashapovalenko/stem-stella-class-website/internal/storage"
)

// ErrLineIndexOutOfRange is returned by RemoveLine for an index outside the line sequence.
var ErrLineIndexOutOfRange = errors.New("line index out of range")

// SnapshotStore persists the last uploaded raw file per device.
type SnapshotStore interface {
	Save(key string, raw []byte) error
	Load(key string) ([]byte, error)
	Remove(key string) (bool, error)
}

// deviceContext owns one device's raw table and line sequence.
type deviceContext struct {
	mu    sync.RWMutex
	table *parser.RawTable
	lines []analysis.LineDefinition
}

// Workspace is the processing context of every supported device. It is created on start-up, a table is
// replaced on upload and both table and lines are reset on clear.
type Workspace struct {
	contexts map[parser.Device]*deviceContext
	reducer  *analysis.Reducer
	store    SnapshotStore
	log      logger.Logger
}

// New builds an empty workspace. store may be nil, in which case tables live in memory only.
func New(reducer *analysis.Reducer, store SnapshotStore, log logger.Logger) *Workspace {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if reducer == nil {
		reducer = analysis.NewReducer(log)
	}
	w := &Workspace{
		contexts: make(map[parser.Device]*deviceContext, len(parser.Devices)),
		reducer:  reducer,
		store:    store,
		log:      log,
	}
	for _, d := range parser.Devices {
		w.contexts[d] = &deviceContext{lines: make([]analysis.LineDefinition, 0)}
	}
	return w
}

func (w *Workspace) context(device parser.Device) (*deviceContext, error) {
	c, ok := w.contexts[device]
	if !ok {
		return nil, fmt.Errorf("%w: %q", parser.ErrUnknownDevice, string(device))
	}
	return c, nil
}

// Restore reloads every device table from its snapshot. Devices without a snapshot stay empty.
func (w *Workspace) Restore() error {
	if w.store == nil {
		return nil
	}
	var errs []error
	for _, device := range parser.Devices {
		raw, err := w.store.Load(string(device))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", device, err))
			continue
		}
		table, err := parser.ParseRawBytes(device, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", device, err))
			continue
		}
		c := w.contexts[device]
		c.mu.Lock()
		c.table = table
		c.mu.Unlock()
		w.log.Info("workspace", "Restored raw table from snapshot", map[string]interface{}{
			"device": string(device),
			"rows":   len(table.Rows),
		})
	}
	return errors.Join(errs...)
}

// LoadTable parses raw and makes it the device's table. On a parse failure the previous table is kept.
// The returned table may carry a schema problem (see RawTable.SchemaErr); it is loaded all the same.
func (w *Workspace) LoadTable(device parser.Device, raw []byte) (*parser.RawTable, error) {
	c, err := w.context(device)
	if err != nil {
		return nil, err
	}

	table, err := parser.ParseRawBytes(device, raw)
	if err != nil {
		w.log.Error("workspace", "Error reading uploaded CSV", map[string]interface{}{
			"device": string(device),
			"error":  err.Error(),
		})
		return nil, err
	}

	// The snapshot is written under the same lock so a concurrent Clear or upload cannot leave memory and
	// disk disagreeing.
	c.mu.Lock()
	c.table = table
	if w.store != nil {
		if err := w.store.Save(string(device), raw); err != nil {
			w.log.Error("workspace", "Failed to persist raw table snapshot", map[string]interface{}{
				"device": string(device),
				"error":  err.Error(),
			})
		}
	}
	c.mu.Unlock()

	w.log.Info("workspace", "Raw table loaded", map[string]interface{}{
		"device":   string(device),
		"rows":     len(table.Rows),
		"columns":  table.Columns,
		"missing":  table.Missing,
		"warnings": len(table.ParseErrors),
	})
	return table, nil
}

// AddLine appends a line definition and returns the new line count.
func (w *Workspace) AddLine(device parser.Device, def analysis.LineDefinition) (int, error) {
	c, err := w.context(device)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, def)

	w.log.Info("workspace", "Line added", map[string]interface{}{
		"device": string(device),
		"line":   def.DisplayName(len(c.lines) - 1),
	})
	return len(c.lines), nil
}

// RemoveLine deletes the line at index. An out-of-range index leaves the sequence unchanged and returns
// ErrLineIndexOutOfRange.
func (w *Workspace) RemoveLine(device parser.Device, index int) (analysis.LineDefinition, error) {
	c, err := w.context(device)
	if err != nil {
		return analysis.LineDefinition{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return analysis.LineDefinition{}, fmt.Errorf("%w: %d (have %d)", ErrLineIndexOutOfRange, index, len(c.lines))
	}

	removed := c.lines[index]
	lines := make([]analysis.LineDefinition, 0, len(c.lines)-1)
	lines = append(lines, c.lines[:index]...)
	c.lines = append(lines, c.lines[index+1:]...)
	return removed, nil
}

// ClearResult tells what a Clear removed.
type ClearResult struct {
	LinesRemoved int
	HadTable     bool
	FileRemoved  bool
}

// Clear empties the device's line sequence and raw table and deletes its snapshot.
func (w *Workspace) Clear(device parser.Device) (ClearResult, error) {
	c, err := w.context(device)
	if err != nil {
		return ClearResult{}, err
	}

	c.mu.Lock()
	res := ClearResult{LinesRemoved: len(c.lines), HadTable: c.table != nil}
	c.lines = make([]analysis.LineDefinition, 0)
	c.table = nil
	if w.store != nil {
		removed, err := w.store.Remove(string(device))
		if err != nil {
			c.mu.Unlock()
			return res, err
		}
		res.FileRemoved = removed
	}
	c.mu.Unlock()

	w.log.Info("workspace", "Device cleared", map[string]interface{}{
		"device":       string(device),
		"lines":        res.LinesRemoved,
		"file_removed": res.FileRemoved,
	})
	return res, nil
}

// Lines returns a copy of the device's line sequence.
func (w *Workspace) Lines(device parser.Device) ([]analysis.LineDefinition, error) {
	c, err := w.context(device)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]analysis.LineDefinition(nil), c.lines...), nil
}

// Table returns the device's current raw table, nil when none is loaded. Tables are never modified in place.
func (w *Workspace) Table(device parser.Device) (*parser.RawTable, error) {
	c, err := w.context(device)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table, nil
}

// Compute reduces the device's lines against its table. Without a table the result has no rows.
func (w *Workspace) Compute(device parser.Device) (*analysis.ReductionResult, error) {
	_, result, err := w.Snapshot(device)
	return result, err
}

// Snapshot returns the device's line sequence together with its reduction. Table and lines are read under
// one read lock, so the lines always describe the result even with a concurrent upload, edit or clear.
func (w *Workspace) Snapshot(device parser.Device) ([]analysis.LineDefinition, *analysis.ReductionResult, error) {
	c, err := w.context(device)
	if err != nil {
		return nil, nil, err
	}

	c.mu.RLock()
	table := c.table
	lines := append([]analysis.LineDefinition(nil), c.lines...)
	c.mu.RUnlock()

	if table == nil {
		return lines, analysis.NewReductionResult(device), nil
	}
	result, err := w.reducer.Reduce(table, lines)
	if err != nil {
		return nil, nil, err
	}
	return lines, result, nil
}
