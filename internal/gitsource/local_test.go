package gitsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/aira-technology/tag-scanner/internal/model"
)

// initRepo creates a repository with one commit per tag.
func initRepo(t *testing.T, path string, tags []string, annotated bool) {
	t.Helper()

	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	sig := &object.Signature{
		Name:  "Felipe Martin",
		Email: "felipe@example.com",
		When:  time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC),
	}

	for _, tag := range tags {
		if err := os.WriteFile(filepath.Join(path, "VERSION"), []byte(tag+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add("VERSION"); err != nil {
			t.Fatal(err)
		}
		hash, err := wt.Commit("Release "+tag+"\n\ndetails", &git.CommitOptions{Author: sig, Committer: sig})
		if err != nil {
			t.Fatal(err)
		}

		var opts *git.CreateTagOptions
		if annotated {
			opts = &git.CreateTagOptions{Tagger: sig, Message: "Release " + tag}
		}
		if _, err := repo.CreateTag(tag, hash, opts); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListRepositoriesWalks(t *testing.T) {
	base := t.TempDir()
	initRepo(t, filepath.Join(base, "api-gateway"), []string{"v0.75.5"}, false)
	initRepo(t, filepath.Join(base, "nested", "billing-service"), []string{"v0.60.2"}, false)
	if err := os.MkdirAll(filepath.Join(base, "not-a-repo"), 0o755); err != nil {
		t.Fatal(err)
	}

	src := NewLocalSource()
	refs, err := src.ListRepositories(context.Background(), base)
	if err != nil {
		t.Fatal(err)
	}

	if len(refs) != 2 {
		t.Fatalf("repositories: got %d, want 2", len(refs))
	}
	names := map[string]bool{}
	for _, ref := range refs {
		names[ref.Name] = true
		if ref.Path == "" {
			t.Errorf("ref %s has no path", ref.Name)
		}
	}
	if !names["api-gateway"] || !names["billing-service"] {
		t.Errorf("names: got %v", names)
	}
}

func TestListTagsLightweight(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "api-gateway")
	initRepo(t, path, []string{"v0.74.0", "v0.75.5"}, false)

	src := NewLocalSource()
	tags, err := src.ListTags(context.Background(), repoRef(path))
	if err != nil {
		t.Fatal(err)
	}

	if len(tags) != 2 {
		t.Fatalf("tags: got %d, want 2", len(tags))
	}
	for _, tag := range tags {
		if len(tag.CommitID) != 40 {
			t.Errorf("tag %s commit: got %q, want full sha", tag.Name, tag.CommitID)
		}
	}
}

func TestListTagsAnnotatedPeelsToCommit(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "api-gateway")
	initRepo(t, path, []string{"v0.75.5"}, true)

	src := NewLocalSource()
	tags, err := src.ListTags(context.Background(), repoRef(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 {
		t.Fatalf("tags: got %d, want 1", len(tags))
	}

	// The commit id must reference a commit object, not the tag object.
	repo, err := git.PlainOpen(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CommitObject(plumbing.NewHash(tags[0].CommitID)); err != nil {
		t.Errorf("commit %s: %v", tags[0].CommitID, err)
	}
}

func TestListTagsNotARepository(t *testing.T) {
	src := NewLocalSource()
	_, err := src.ListTags(context.Background(), repoRef(t.TempDir()))
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("error: got %v, want ErrUnreachable", err)
	}
}

func TestCommitInfoLocal(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "api-gateway")
	initRepo(t, path, []string{"v0.75.5"}, false)

	src := NewLocalSource()
	tags, err := src.ListTags(context.Background(), repoRef(path))
	if err != nil {
		t.Fatal(err)
	}

	info, err := src.CommitInfo(context.Background(), repoRef(path), tags[0].CommitID)
	if err != nil {
		t.Fatal(err)
	}

	if info.Author != "Felipe Martin" {
		t.Errorf("author: got %q", info.Author)
	}
	if info.Email != "felipe@example.com" {
		t.Errorf("email: got %q", info.Email)
	}
	if info.Message != "Release v0.75.5" {
		t.Errorf("message: got %q, want first line only", info.Message)
	}
	if !info.Date.Equal(time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("date: got %v", info.Date)
	}
}

func repoRef(path string) model.RepositoryRef {
	return model.RepositoryRef{
		Name: filepath.Base(path),
		URL:  "file://" + path,
		Path: path,
	}
}
