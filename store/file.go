package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vitalvas/autodoc/openapi"
)

// FileStore keeps the production document in a file encoded with its
// codec and the staged document in a JSON file, so a run can be resumed
// by a fresh process.
type FileStore struct {
	path       string
	stagedPath string
	codec      Codec

	mu sync.Mutex
}

// NewFile returns a file backend. It fails with ErrMisconfigured when path
// is empty. An empty stagedPath defaults to DefaultStagedPath(path).
func NewFile(path, stagedPath string, codec Codec) (*FileStore, error) {
	if path == "" {
		return nil, ErrMisconfigured
	}
	if stagedPath == "" {
		stagedPath = DefaultStagedPath(path)
	}
	if codec == nil {
		codec = CodecFor(path)
	}
	return &FileStore{path: path, stagedPath: stagedPath, codec: codec}, nil
}

// DefaultStagedPath returns the staged document path used next to the
// production document at path:
//
//	docs/openapi.yaml -> docs/.openapi.staged.json
func DefaultStagedPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(path), "."+base+".staged.json")
}

// Path returns the production document path.
func (s *FileStore) Path() string {
	return s.path
}

// StagedPath returns the staged document path.
func (s *FileStore) StagedPath() string {
	return s.stagedPath
}

// SaveStaged implements DocumentStore.
func (s *FileStore) SaveStaged(doc *openapi.Document) error {
	data, err := JSONCodec{}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode staged document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeFileAtomic(s.stagedPath, data)
}

// LoadStaged implements DocumentStore.
func (s *FileStore) LoadStaged() (*openapi.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.stagedPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read staged document: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	doc, err := JSONCodec{}.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("store: decode staged document: %w", err)
	}
	return doc, nil
}

// ClearStaged implements DocumentStore.
func (s *FileStore) ClearStaged() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clearStagedLocked()
}

func (s *FileStore) clearStagedLocked() error {
	if err := os.Remove(s.stagedPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: clear staged document: %w", err)
	}
	return nil
}

// Commit implements DocumentStore.
func (s *FileStore) Commit(doc *openapi.Document) error {
	data, err := s.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode production document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	return s.clearStagedLocked()
}

// ReadProduction implements DocumentStore.
func (s *FileStore) ReadProduction() (*openapi.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrProductionMissing
	}
	if err != nil {
		return nil, fmt.Errorf("store: read production document: %w", err)
	}

	doc, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("store: decode production document: %w", err)
	}
	return doc, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("store: create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}
