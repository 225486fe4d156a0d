package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/memory"
	"github.com/lazypower/strata/internal/store"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"line one\n  line two", 40, "line one line two"},
		{"abcdefghij", 4, "abcd..."},
		{"héllo", 2, "h..."},
	}
	for _, tt := range tests {
		if got := preview(tt.in, tt.n); got != tt.want {
			t.Errorf("preview(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRenderEntries(t *testing.T) {
	entries := []engine.RankedEntry{
		{Entry: memory.Entry{Key: "plan,iteration_3", Value: []byte("ship it"), Importance: 70, LastAccessed: 3}, Score: 95},
	}

	var buf bytes.Buffer
	renderEntries(&buf, entries)
	out := buf.String()
	for _, want := range []string{"SCORE", "plan,iteration_3", "ship it", "95", "70"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	entries[0].Score = -1
	buf.Reset()
	renderEntries(&buf, entries)
	if strings.Contains(buf.String(), "SCORE") {
		t.Errorf("unscored listing has score column:\n%s", buf.String())
	}
}

func TestRenderTierStats(t *testing.T) {
	var buf bytes.Buffer
	renderTierStats(&buf, []memory.TierStats{
		{Tier: memory.Working, Name: "working", Entries: 2, Bytes: 120, Tokens: 30},
		{Tier: memory.Disk, Name: "disk", Entries: 1, Bytes: 80, Tokens: 20},
	})
	out := buf.String()
	for _, want := range []string{"working", "disk", "TOTAL", "200"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLayoutPath(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })

	cfg.Memory.LayoutPath = ""
	if _, err := layoutPath(nil); err == nil {
		t.Error("expected error without path or config")
	}

	cfg.Memory.LayoutPath = "/tmp/memory.json"
	if got, _ := layoutPath(nil); got != "/tmp/memory.json" {
		t.Errorf("layoutPath = %q", got)
	}
	if got, _ := layoutPath([]string{"x.json"}); got != "x.json" {
		t.Errorf("layoutPath = %q", got)
	}
}

func TestWriteCommandImportance(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "strata.db")
	t.Setenv("STRATA_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("STRATA_DB", dbPath)

	rootCmd.SetArgs([]string{"write", "hot", "payload", "--tier", "disk", "--iteration", "3", "--importance", "80"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("write: %v", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	entries, err := db.LoadEntries()
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.Key != "hot,iteration_3" || got.Tier != memory.Disk || got.Importance != 80 {
		t.Errorf("entry = %s %s importance %d, want hot,iteration_3 disk 80", got.Key, got.Tier, got.Importance)
	}
}
