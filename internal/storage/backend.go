package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Backend persists named datasets as whole JSON documents. Load fills v with
// the last saved value for the dataset, or leaves v untouched (the caller's
// empty value) when the dataset is missing or unreadable. Save overwrites the
// whole document and must be visible to the next Load, including after a
// process restart.
type Backend interface {
	Load(ctx context.Context, dataset string, v interface{}) error
	Save(ctx context.Context, dataset string, v interface{}) error
}

// FileBackend stores each dataset as <dir>/<dataset>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend returns a backend rooted at dir. The directory is created
// lazily on first Save.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (b *FileBackend) path(dataset string) string {
	return filepath.Join(b.dir, dataset+".json")
}

// Load reads the dataset document. A missing file or undecodable content is
// treated as "empty": v is left as-is and no error is returned.
func (b *FileBackend) Load(_ context.Context, dataset string, v interface{}) error {
	data, err := os.ReadFile(b.path(dataset))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[storage] read %s: %v (treating as empty)", dataset, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("[storage] decode %s: %v (treating as empty)", dataset, err)
		return nil
	}
	return nil
}

// Save writes the document via a temp file and rename so a reader never
// observes a partial write.
func (b *FileBackend) Save(_ context.Context, dataset string, v interface{}) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", dataset, err)
	}
	tmp := b.path(dataset) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dataset, err)
	}
	if err := os.Rename(tmp, b.path(dataset)); err != nil {
		return fmt.Errorf("rename %s: %w", dataset, err)
	}
	return nil
}
