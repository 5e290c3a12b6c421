package gallery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dkadlec/presence/internal/vision"
)

// storedEntry is the on-disk form of one gallery entry.
type storedEntry struct {
	Name     string    `json:"name"`
	Encoding []float32 `json:"encoding"`
}

// loadEntries reads the gallery file. A missing file is an empty gallery.
func loadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stored []storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse gallery file: %w", err)
	}

	entries := make([]Entry, 0, len(stored))
	for i, se := range stored {
		if len(se.Encoding) != vision.DescriptorSize {
			return nil, fmt.Errorf("entry %d (%s): encoding has %d values, want %d",
				i, se.Name, len(se.Encoding), vision.DescriptorSize)
		}
		var e Entry
		e.Name = se.Name
		copy(e.Encoding[:], se.Encoding)
		entries = append(entries, e)
	}
	return entries, nil
}

// saveEntries writes the whole gallery to a temp file in the target
// directory and renames it over the old file, so readers only ever see a
// complete gallery.
func saveEntries(path string, entries []Entry) error {
	stored := make([]storedEntry, 0, len(entries))
	for _, e := range entries {
		enc := make([]float32, vision.DescriptorSize)
		copy(enc, e.Encoding[:])
		stored = append(stored, storedEntry{Name: e.Name, Encoding: enc})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
