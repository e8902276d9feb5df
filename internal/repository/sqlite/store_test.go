package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/jaakkos/swarmwork/internal/app"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWriteReadRoundtrip(t *testing.T) {
	store := newTestStore(t)

	value := map[string]any{"status": "ok", "count": 3}
	if err := store.Write("audit", "k1", value, "writer-1", app.WriteOptions{Priority: 7, Tags: []string{"a", "b"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entry, err := store.Read("audit", "k1", "reader-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if entry == nil {
		t.Fatal("entry missing")
	}
	if entry.Writer != "writer-1" || entry.Priority != 7 {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.HasTag("a") || !entry.HasTag("b") || entry.HasTag("c") {
		t.Errorf("tags = %v", entry.Tags)
	}
	var decoded map[string]any
	if err := entry.Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded["status"] != "ok" {
		t.Errorf("decoded = %v", decoded)
	}
	if entry.CreatedAt.IsZero() || entry.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestReadAbsentReturnsNil(t *testing.T) {
	store := newTestStore(t)
	entry, err := store.Read("audit", "missing", "r")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if entry != nil {
		t.Errorf("entry = %+v, want nil", entry)
	}
}

func TestWriteOverwritesKeepsCreatedAt(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write("leads", "l1", map[string]any{"v": 1}, "w", app.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	first, _ := store.Read("leads", "l1", "r")

	if err := store.Write("leads", "l1", map[string]any{"v": 2}, "w2", app.WriteOptions{Priority: 3}); err != nil {
		t.Fatal(err)
	}
	second, _ := store.Read("leads", "l1", "r")

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on overwrite: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if second.Writer != "w2" || second.Priority != 3 {
		t.Errorf("entry = %+v", second)
	}
	var v map[string]int
	if err := second.Decode(&v); err != nil || v["v"] != 2 {
		t.Errorf("value = %v (%v)", v, err)
	}
}

func TestQueryFilters(t *testing.T) {
	store := newTestStore(t)
	writes := []struct {
		category string
		key      string
		priority int
		tags     []string
	}{
		{"directives", "d1", 1, []string{"tune"}},
		{"directives", "d2", 9, []string{"tune", "urgent"}},
		{"directives", "d3", 5, nil},
		{"requests", "r1", 2, []string{"urgent"}},
	}
	for _, w := range writes {
		if err := store.Write(w.category, w.key, map[string]any{"k": w.key}, "w", app.WriteOptions{Priority: w.priority, Tags: w.tags}); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("by category", func(t *testing.T) {
		entries, err := store.Query("r", app.EntryFilter{Category: "directives"})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 3 {
			t.Errorf("entries = %d, want 3", len(entries))
		}
	})

	t.Run("by tags all required", func(t *testing.T) {
		entries, err := store.Query("r", app.EntryFilter{Category: "directives", Tags: []string{"tune", "urgent"}})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Key != "d2" {
			t.Errorf("entries = %+v", entries)
		}
	})

	t.Run("priority descending", func(t *testing.T) {
		entries, err := store.Query("r", app.EntryFilter{Category: "directives", SortBy: "priority"})
		if err != nil {
			t.Fatal(err)
		}
		if entries[0].Key != "d2" || entries[1].Key != "d3" || entries[2].Key != "d1" {
			keys := make([]string, len(entries))
			for i, e := range entries {
				keys[i] = e.Key
			}
			t.Errorf("order = %v, want [d2 d3 d1]", keys)
		}
	})

	t.Run("no category matches all", func(t *testing.T) {
		entries, err := store.Query("r", app.EntryFilter{Tags: []string{"urgent"}})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Errorf("entries = %d, want 2", len(entries))
		}
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")
	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write("flags", "f1", map[string]any{"x": true}, "w", app.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	entry, err := reopened.Read("flags", "f1", "r")
	if err != nil || entry == nil {
		t.Fatalf("entry = %v, err = %v", entry, err)
	}
}
