package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aira-technology/tag-scanner/internal/model"
)

func testDocument(tag, repo string) *model.VersionTagDocument {
	doc := &model.VersionTagDocument{
		Metadata: model.Metadata{
			LastUpdated: "2025-06-01T12:00:00Z",
			ScanType:    model.ScanTypeSpecificTag,
			Version:     model.SchemaVersion,
		},
		Tags: model.NewTagGroups(),
	}
	doc.Tags.Set(tag, &model.TagGroup{
		TagName:      tag,
		Repositories: []model.RepositoryDetail{{RepositoryName: repo}},
	})
	return doc
}

func TestLoadDocumentMissingIsNil(t *testing.T) {
	s := New(t.TempDir(), true)
	doc, err := s.LoadDocument()
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Errorf("document: got %v, want nil", doc)
	}
}

func TestUpdateRoundTrips(t *testing.T) {
	s := New(t.TempDir(), true)

	_, err := s.Update(func(existing *model.VersionTagDocument) (*model.VersionTagDocument, error) {
		if existing != nil {
			t.Errorf("existing: got %v, want nil on first update", existing)
		}
		return testDocument("v0.75.5", "api-gateway"), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	doc, err := s.LoadDocument()
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		t.Fatal("document missing after update")
	}
	group := doc.Tags.Get("v0.75.5")
	if group == nil || group.Repositories[0].RepositoryName != "api-gateway" {
		t.Errorf("round trip: got %+v", group)
	}

	// The second update sees the persisted document.
	_, err = s.Update(func(existing *model.VersionTagDocument) (*model.VersionTagDocument, error) {
		if existing == nil {
			t.Fatal("existing: got nil on second update")
		}
		return existing, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdatePropagatesCallbackError(t *testing.T) {
	s := New(t.TempDir(), true)
	sentinel := errors.New("merge failed")

	_, err := s.Update(func(existing *model.VersionTagDocument) (*model.VersionTagDocument, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("error: got %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), DocumentFile)); !os.IsNotExist(err) {
		t.Error("failed update must not leave a document behind")
	}
}

func TestLoadDocumentRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DocumentFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(dir, true)
	_, err := s.LoadDocument()
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error: got %v, want ValidationError", err)
	}
}

func TestSaveEnvironmentsWritesPerEnvFiles(t *testing.T) {
	s := New(t.TempDir(), false)

	err := s.SaveEnvironments(map[string]*model.EnvironmentDocument{
		"production": {Environment: "production"},
		"staging":    {Environment: "staging"},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"production_deployments.json", "staging_deployments.json"} {
		if _, err := os.Stat(filepath.Join(s.Dir(), name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := New(t.TempDir(), true)

	if err := s.SaveSummary(&model.SummaryDocument{Tags: map[string]model.TagOverview{}}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != SummaryFile {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("data dir contents: got %v", names)
	}
}
