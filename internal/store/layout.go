package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lazypower/strata/internal/memory"
	"github.com/tidwall/gjson"
)

// Pair is one key/value of the layout file.
type Pair struct {
	Key   string
	Value string
}

// Layout mirrors the JSON memory file shared with the agent process:
//
//	{"working_memory": {"<tags>,iteration_<N>": "<value>", ...},
//	 "storage":        {...}}
//
// Order of keys is significant and preserved.
type Layout struct {
	WorkingMemory []Pair
	Storage       []Pair
}

// ReadLayout parses the layout at path. A missing file yields an empty
// layout.
func ReadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Layout{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout parses layout JSON.
func ParseLayout(data []byte) (*Layout, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Layout{}, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("parse layout: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.New("parse layout: root is not an object")
	}

	l := &Layout{}
	var err error
	if l.WorkingMemory, err = readPairs(root.Get("working_memory"), "working_memory"); err != nil {
		return nil, err
	}
	if l.Storage, err = readPairs(root.Get("storage"), "storage"); err != nil {
		return nil, err
	}
	return l, nil
}

func readPairs(r gjson.Result, section string) ([]Pair, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsObject() {
		return nil, fmt.Errorf("parse layout: %s is not an object", section)
	}
	var pairs []Pair
	r.ForEach(func(k, v gjson.Result) bool {
		value := v.Raw
		if v.Type == gjson.String {
			value = v.String()
		}
		pairs = append(pairs, Pair{Key: k.String(), Value: value})
		return true
	})
	return pairs, nil
}

// Marshal renders the layout with keys in order.
func (l *Layout) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n  \"working_memory\": ")
	if err := writePairs(&buf, l.WorkingMemory); err != nil {
		return nil, err
	}
	buf.WriteString(",\n  \"storage\": ")
	if err := writePairs(&buf, l.Storage); err != nil {
		return nil, err
	}
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

func writePairs(buf *bytes.Buffer, pairs []Pair) error {
	if len(pairs) == 0 {
		buf.WriteString("{}")
		return nil
	}
	buf.WriteString("{")
	for i, p := range pairs {
		if i > 0 {
			buf.WriteString(",")
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return fmt.Errorf("marshal key: %w", err)
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return fmt.Errorf("marshal value of %s: %w", p.Key, err)
		}
		buf.WriteString("\n    ")
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
	}
	buf.WriteString("\n  }")
	return nil
}

// WriteLayout atomically replaces the file at path with l.
func WriteLayout(path string, l *Layout) error {
	data, err := l.Marshal()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// BackupLayout copies the layout at path to path+".bak" and returns the
// backup path. A missing layout is not backed up.
func BackupLayout(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read layout: %w", err)
	}
	dest := path + ".bak"
	if err := writeFileAtomic(dest, data); err != nil {
		return "", err
	}
	return dest, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create layout dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// LayoutFromEntries maps Working entries to working_memory and Disk entries
// to storage. Archived entries live only in the database.
func LayoutFromEntries(entries []memory.Entry) *Layout {
	l := &Layout{}
	for i := range entries {
		p := Pair{Key: entries[i].Key, Value: string(entries[i].Value)}
		switch entries[i].Tier {
		case memory.Working:
			l.WorkingMemory = append(l.WorkingMemory, p)
		case memory.Disk:
			l.Storage = append(l.Storage, p)
		}
	}
	return l
}

// Entries converts the layout to Working and Disk entries. Last access is
// taken from the key's iteration marker, or fallback for malformed keys.
// Pairs with empty values are dropped.
func (l *Layout) Entries(fallback uint64) []memory.Entry {
	var out []memory.Entry
	add := func(tier memory.Tier, pairs []Pair) {
		for _, p := range pairs {
			if p.Value == "" {
				continue
			}
			at := fallback
			if _, n, err := memory.ParseKey(p.Key); err == nil {
				at = n
			}
			out = append(out, memory.Entry{
				Key:          p.Key,
				Value:        []byte(p.Value),
				Tier:         tier,
				Importance:   memory.DefaultImportance,
				LastAccessed: at,
			})
		}
	}
	add(memory.Working, l.WorkingMemory)
	add(memory.Disk, l.Storage)
	return out
}
