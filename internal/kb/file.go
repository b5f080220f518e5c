package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes indented JSON files under a root directory
type FileSink struct {
	root string
}

// NewFileSink creates a sink rooted at dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{root: dir}
}

// Path returns where an artifact is written
func (s *FileSink) Path(a Artifact) string {
	return filepath.Join(s.root, a.Category, a.Name)
}

// Put writes the artifact to a temp file and renames it into place
func (s *FileSink) Put(ctx context.Context, a Artifact) error {
	data, err := json.MarshalIndent(a.Payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", a.Key(), err)
	}

	path := s.Path(a)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", a.Key(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", a.Key(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit %s: %w", a.Key(), err)
	}
	return nil
}

// Clear removes the category directory
func (s *FileSink) Clear(ctx context.Context, category string) error {
	if err := os.RemoveAll(filepath.Join(s.root, category)); err != nil {
		return fmt.Errorf("clear %s: %w", category, err)
	}
	return nil
}

// Close is a no-op
func (s *FileSink) Close(ctx context.Context) error {
	return nil
}
