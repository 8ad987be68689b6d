package mapping

import (
	"encoding/json"
	"fmt"
	"os"
)

// Store reads and persists mapping documents.
type Store interface {
	Read() (*Document, error)
	Write(*Document) error
}

// FileStore keeps the mapping document in a single JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Read() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *FileStore) Write(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write mapping %s: %w", s.path, err)
	}
	return nil
}
