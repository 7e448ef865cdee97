// Package store persists the JSON document layout under a data directory:
// version_tags.json, summary.json, and one <environment>_deployments.json
// per non-empty environment.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aira-technology/tag-scanner/internal/model"
)

// DocumentFile is the canonical document's filename within the data dir.
const DocumentFile = "version_tags.json"

// SummaryFile is the materialized summary's filename.
const SummaryFile = "summary.json"

// Store is a single-writer document store over a data directory. All writes
// go through an internal mutex; read-merge-write sequences run as one
// logical unit via Update. Writes are atomic (temp file + rename).
type Store struct {
	dir    string
	pretty bool
	mu     sync.Mutex
}

// New creates a Store rooted at dir. Pretty-printed output is the default
// layout consumed by UIs.
func New(dir string, pretty bool) *Store {
	return &Store{dir: dir, pretty: pretty}
}

// Dir returns the data directory path.
func (s *Store) Dir() string { return s.dir }

// LoadDocument reads the canonical document. A missing file yields (nil, nil).
func (s *Store) LoadDocument() (*model.VersionTagDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDocument()
}

func (s *Store) loadDocument() (*model.VersionTagDocument, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, DocumentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc model.VersionTagDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.ValidationError{Path: DocumentFile, Reason: "not a valid document: " + err.Error()}
	}
	return &doc, nil
}

// Update runs fn with the current document (nil when none exists) and
// persists fn's result, holding the writer lock for the whole
// read-merge-write sequence.
func (s *Store) Update(fn func(existing *model.VersionTagDocument) (*model.VersionTagDocument, error)) (*model.VersionTagDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadDocument()
	if err != nil {
		return nil, err
	}

	doc, err := fn(existing)
	if err != nil {
		return nil, err
	}

	if err := s.writeJSON(DocumentFile, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveSummary persists the materialized summary view.
func (s *Store) SaveSummary(summary *model.SummaryDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(SummaryFile, summary)
}

// SaveEnvironments persists one deployment file per environment. Environments
// absent from the map produce no file; files from earlier scans are left in
// place, matching the document's no-deletion lifecycle.
func (s *Store) SaveEnvironments(docs map[string]*model.EnvironmentDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for env, doc := range docs {
		if err := s.writeJSON(env+"_deployments.json", doc); err != nil {
			return err
		}
	}
	return nil
}

// writeJSON writes v atomically: marshal, write a temp file in the same
// directory, then rename over the target.
func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var data []byte
	var err error
	if s.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
