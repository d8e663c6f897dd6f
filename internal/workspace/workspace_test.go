package workspace

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innashapovalenko/stem-stella-class-website/internal/analysis"
	"github.com/innashapovalenko/stem-stella-class-website/internal/parser"
	"github.com/innashapovalenko/stem-stella-class-website/internal/storage"
)

func stella1CSV(batch, ts, value string) []byte {
	header := append([]string{parser.Stella1BatchColumn, parser.Stella1TimestampColumn}, parser.Stella1IrradianceColumns...)
	cells := []string{batch, ts}
	for range parser.Stella1IrradianceColumns {
		cells = append(cells, value)
	}
	return []byte(strings.Join(header, ",") + "\n" + strings.Join(cells, ",") + "\n")
}

func line(name string) analysis.LineDefinition {
	return analysis.LineDefinition{Name: name, DP1: 5, DP2: 5, Cal1: 5, Cal2: 5, Date: "2023-07-17 10:00", Distance: 1}
}

func newStore(t *testing.T, dir string) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(dir, 1)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// blockingStore is an in-memory SnapshotStore whose Save waits for release once it has been entered.
type blockingStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ops     []string
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		data:    make(map[string][]byte),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) Save(key string, raw []byte) error {
	close(s.entered)
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), raw...)
	s.ops = append(s.ops, "save")
	return nil
}

func (s *blockingStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return raw, nil
}

func (s *blockingStore) Remove(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	s.ops = append(s.ops, "remove")
	return ok, nil
}

func TestWorkspace_UnknownDevice(t *testing.T) {
	ws := New(nil, nil, nil)

	_, err := ws.AddLine("stella9", line("a"))
	assert.ErrorIs(t, err, parser.ErrUnknownDevice)
	_, err = ws.Compute("stella9")
	assert.ErrorIs(t, err, parser.ErrUnknownDevice)
	_, err = ws.LoadTable("stella9", nil)
	assert.ErrorIs(t, err, parser.ErrUnknownDevice)
}

func TestWorkspace_LoadAndCompute(t *testing.T) {
	ws := New(nil, nil, nil)

	result, err := ws.Compute(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Empty(t, result.Rows, "no table yet")

	_, err = ws.LoadTable(parser.DeviceStella1, stella1CSV("5", "20230717T10:00:00", "100.0"))
	require.NoError(t, err)
	count, err := ws.AddLine(parser.DeviceStella1, line("grass"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	result, err = ws.Compute(parser.DeviceStella1)
	require.NoError(t, err)
	require.Len(t, result.Rows, 12)
	assert.Equal(t, "1.0000", result.Rows[0].ReflectanceText())

	other, err := ws.Compute(parser.DeviceStellaQ2)
	require.NoError(t, err)
	assert.Empty(t, other.Rows, "devices are independent")
}

func TestWorkspace_FailedLoadKeepsPreviousTable(t *testing.T) {
	ws := New(nil, nil, nil)
	_, err := ws.LoadTable(parser.DeviceStella1, stella1CSV("5", "20230717T10:00:00", "1"))
	require.NoError(t, err)

	_, err = ws.LoadTable(parser.DeviceStella1, []byte{})
	require.Error(t, err)

	table, err := ws.Table(parser.DeviceStella1)
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Len(t, table.Rows, 1)
}

func TestWorkspace_RemoveLine(t *testing.T) {
	ws := New(nil, nil, nil)
	for _, name := range []string{"a", "b", "c"} {
		_, err := ws.AddLine(parser.DeviceStella1, line(name))
		require.NoError(t, err)
	}

	for _, idx := range []int{-1, 3, 100} {
		_, err := ws.RemoveLine(parser.DeviceStella1, idx)
		assert.ErrorIs(t, err, ErrLineIndexOutOfRange)
	}
	lines, err := ws.Lines(parser.DeviceStella1)
	require.NoError(t, err)
	require.Len(t, lines, 3, "out-of-range removal leaves the sequence unchanged")

	removed, err := ws.RemoveLine(parser.DeviceStella1, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.Name)

	lines, err = ws.Lines(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, []string{lines[0].Name, lines[1].Name})
}

func TestWorkspace_LinesReturnsCopy(t *testing.T) {
	ws := New(nil, nil, nil)
	_, err := ws.AddLine(parser.DeviceStella1, line("a"))
	require.NoError(t, err)

	lines, err := ws.Lines(parser.DeviceStella1)
	require.NoError(t, err)
	lines[0].Name = "changed"

	again, err := ws.Lines(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].Name)
}

func TestWorkspace_Clear(t *testing.T) {
	store := newStore(t, t.TempDir())
	ws := New(nil, store, nil)

	_, err := ws.LoadTable(parser.DeviceStella1, stella1CSV("5", "20230717T10:00:00", "1"))
	require.NoError(t, err)
	_, err = ws.AddLine(parser.DeviceStella1, line("a"))
	require.NoError(t, err)

	res, err := ws.Clear(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Equal(t, ClearResult{LinesRemoved: 1, HadTable: true, FileRemoved: true}, res)

	lines, err := ws.Lines(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Empty(t, lines)
	table, err := ws.Table(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Nil(t, table)

	_, err = store.Load(string(parser.DeviceStella1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkspace_ClearDuringSnapshotSave(t *testing.T) {
	store := newBlockingStore()
	ws := New(nil, store, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := ws.LoadTable(parser.DeviceStella1, stella1CSV("5", "20230717T10:00:00", "1"))
		assert.NoError(t, err)
	}()
	<-store.entered

	go func() {
		defer wg.Done()
		_, err := ws.Clear(parser.DeviceStella1)
		assert.NoError(t, err)
	}()
	// Give Clear the chance to run ahead of the pending save.
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Equal(t, []string{"save", "remove"}, store.ops)
	table, err := ws.Table(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Nil(t, table)

	restarted := New(nil, store, nil)
	require.NoError(t, restarted.Restore())
	table, err = restarted.Table(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Nil(t, table, "a cleared device stays cleared after restart")
}

func TestWorkspace_Snapshot(t *testing.T) {
	ws := New(nil, nil, nil)

	lines, result, err := ws.Snapshot(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Empty(t, result.Rows)

	_, err = ws.LoadTable(parser.DeviceStella1, stella1CSV("5", "20230717T10:00:00", "100.0"))
	require.NoError(t, err)
	for _, name := range []string{"a", "b"} {
		_, err = ws.AddLine(parser.DeviceStella1, line(name))
		require.NoError(t, err)
	}

	lines, result, err = ws.Snapshot(parser.DeviceStella1)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Len(t, result.Rows, 24)

	_, _, err = ws.Snapshot("stella9")
	assert.ErrorIs(t, err, parser.ErrUnknownDevice)
}

func TestWorkspace_SnapshotLinesMatchResult(t *testing.T) {
	ws := New(nil, nil, nil)
	_, err := ws.LoadTable(parser.DeviceStella1, stella1CSV("5", "20230717T10:00:00", "100.0"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			ws.AddLine(parser.DeviceStella1, line("x"))
		}()
		go func() {
			defer wg.Done()
			ws.RemoveLine(parser.DeviceStella1, 0)
		}()
		go func() {
			defer wg.Done()
			lines, result, err := ws.Snapshot(parser.DeviceStella1)
			assert.NoError(t, err)
			assert.Len(t, result.Rows, 12*len(lines), "the lines describe the reduced rows")
		}()
	}
	wg.Wait()
}

func TestWorkspace_Restore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	first := New(nil, newStore(t, dir), nil)
	_, err := first.LoadTable(parser.DeviceStella1, stella1CSV("5", "20230717T10:00:00", "1"))
	require.NoError(t, err)

	second := New(nil, newStore(t, dir), nil)
	require.NoError(t, second.Restore())

	table, err := second.Table(parser.DeviceStella1)
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Len(t, table.Rows, 1)

	q2, err := second.Table(parser.DeviceStellaQ2)
	require.NoError(t, err)
	assert.Nil(t, q2)
}

func TestWorkspace_ConcurrentAccess(t *testing.T) {
	ws := New(nil, nil, nil)
	raw := stella1CSV("5", "20230717T10:00:00", "100")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			ws.LoadTable(parser.DeviceStella1, raw)
		}()
		go func() {
			defer wg.Done()
			ws.AddLine(parser.DeviceStella1, line("x"))
		}()
		go func() {
			defer wg.Done()
			result, err := ws.Compute(parser.DeviceStella1)
			assert.NoError(t, err)
			assert.Zero(t, len(result.Rows)%12, "a reduction never sees a partial line")
		}()
	}
	wg.Wait()

	lines, err := ws.Lines(parser.DeviceStella1)
	require.NoError(t, err)
	assert.Len(t, lines, 8)
}
