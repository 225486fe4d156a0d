package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazypower/strata/internal/memory"
)

func TestParseLayoutKeepsOrder(t *testing.T) {
	data := []byte(`{
  "working_memory": {"zeta,iteration_3": "last written first", "alpha,iteration_1": "v1"},
  "storage": {"errors,iteration_1": "disk full", "count,iteration_2": 42},
  "other": true
}`)
	l, err := ParseLayout(data)
	if err != nil {
		t.Fatalf("ParseLayout: %v", err)
	}
	if len(l.WorkingMemory) != 2 || l.WorkingMemory[0].Key != "zeta,iteration_3" {
		t.Errorf("working_memory = %+v", l.WorkingMemory)
	}
	if l.Storage[1].Value != "42" {
		t.Errorf("non-string value = %q, want raw 42", l.Storage[1].Value)
	}
}

func TestParseLayoutErrors(t *testing.T) {
	for _, in := range []string{`{"working_memory": [1,2]}`, `[]`, `{not json`} {
		if _, err := ParseLayout([]byte(in)); err == nil {
			t.Errorf("ParseLayout(%s): expected error", in)
		}
	}
	l, err := ParseLayout([]byte("  "))
	if err != nil || len(l.WorkingMemory) != 0 {
		t.Errorf("blank layout: %+v, %v", l, err)
	}
}

func TestWriteReadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	in := &Layout{
		WorkingMemory: []Pair{{"b,iteration_2", "quote \" and\nnewline"}, {"a,iteration_1", "x"}},
	}
	if err := WriteLayout(path, in); err != nil {
		t.Fatalf("WriteLayout: %v", err)
	}

	out, err := ReadLayout(path)
	if err != nil {
		t.Fatalf("ReadLayout: %v", err)
	}
	if len(out.WorkingMemory) != 2 || out.WorkingMemory[0] != in.WorkingMemory[0] {
		t.Errorf("round trip = %+v", out.WorkingMemory)
	}
	if len(out.Storage) != 0 {
		t.Errorf("storage = %+v, want empty", out.Storage)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestReadLayoutMissing(t *testing.T) {
	l, err := ReadLayout(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("ReadLayout: %v", err)
	}
	if len(l.WorkingMemory)+len(l.Storage) != 0 {
		t.Errorf("expected empty layout, got %+v", l)
	}
}

func TestBackupLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.json")

	dest, err := BackupLayout(path)
	if err != nil || dest != "" {
		t.Fatalf("BackupLayout(missing) = %q, %v", dest, err)
	}

	if err := WriteLayout(path, &Layout{Storage: []Pair{{"s,iteration_1", "v"}}}); err != nil {
		t.Fatalf("WriteLayout: %v", err)
	}
	dest, err = BackupLayout(path)
	if err != nil {
		t.Fatalf("BackupLayout: %v", err)
	}
	l, err := ReadLayout(dest)
	if err != nil {
		t.Fatalf("ReadLayout(backup): %v", err)
	}
	if len(l.Storage) != 1 {
		t.Errorf("backup storage = %+v", l.Storage)
	}
}

func TestLayoutEntriesMapping(t *testing.T) {
	entries := []memory.Entry{
		{Key: "w,iteration_1", Value: []byte("w"), Tier: memory.Working},
		{Key: "d,iteration_2", Value: []byte("d"), Tier: memory.Disk},
		{Key: "a,iteration_3", Value: []byte("a"), Tier: memory.Archived},
	}
	l := LayoutFromEntries(entries)
	if len(l.WorkingMemory) != 1 || len(l.Storage) != 1 {
		t.Fatalf("layout = %+v", l)
	}

	l.Storage = append(l.Storage, Pair{"junk", "no marker"})
	back := l.Entries(9)
	if len(back) != 3 {
		t.Fatalf("got %d entries, want 3", len(back))
	}
	if back[1].Tier != memory.Disk || back[1].LastAccessed != 2 {
		t.Errorf("disk entry = %+v", back[1])
	}
	if back[2].LastAccessed != 9 {
		t.Errorf("malformed key last accessed = %d, want fallback 9", back[2].LastAccessed)
	}
}

func TestLayoutEntriesSkipsEmptyValues(t *testing.T) {
	l := &Layout{
		WorkingMemory: []Pair{{Key: "plan,iteration_1", Value: ""}, {Key: "goal,iteration_1", Value: "ship"}},
		Storage:       []Pair{{Key: "old,iteration_0", Value: ""}},
	}
	got := l.Entries(1)
	if len(got) != 1 || got[0].Key != "goal,iteration_1" {
		t.Fatalf("entries = %+v, want only goal", got)
	}

	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()
	if err := db.SaveEntries(got); err != nil {
		t.Fatalf("SaveEntries: %v", err)
	}
}
