package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/aira-technology/tag-scanner/internal/model"
)

// LocalSource implements TagSource over on-disk working copies found by
// walking a base path for .git markers.
type LocalSource struct{}

// NewLocalSource creates a local tag source.
func NewLocalSource() *LocalSource {
	return &LocalSource{}
}

// ListRepositories walks basePath recursively and returns one RepositoryRef
// per directory containing a .git marker. Unreadable directories are skipped.
func (s *LocalSource) ListRepositories(ctx context.Context, basePath string) ([]model.RepositoryRef, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}

	var refs []model.RepositoryRef
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // permission denied and friends: skip, keep walking
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() || d.Name() != ".git" {
			return nil
		}
		repoPath := filepath.Dir(path)
		refs = append(refs, model.RepositoryRef{
			Name: filepath.Base(repoPath),
			URL:  "file://" + repoPath,
			Path: repoPath,
		})
		return filepath.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", abs, err)
	}

	return refs, nil
}

// ListTags opens the repository and returns every tag with its resolved
// commit id. Annotated tags are peeled to their target commit. A directory
// that is not a valid repository yields ErrUnreachable.
func (s *LocalSource) ListTags(ctx context.Context, ref model.RepositoryRef) ([]model.TagRef, error) {
	repo, err := git.PlainOpen(ref.Path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s is not a git repository", ErrUnreachable, ref.Path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreachable, ref.Path, err)
	}

	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags in %s: %w", ref.Path, err)
	}
	defer iter.Close()

	var tags []model.TagRef
	err = iter.ForEach(func(r *plumbing.Reference) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		hash := r.Hash()
		if tagObj, err := repo.TagObject(hash); err == nil {
			// Annotated tag: resolve to the tagged commit.
			commit, err := tagObj.Commit()
			if err != nil {
				return nil // tag points at a tree or blob, skip
			}
			hash = commit.Hash
		}
		tags = append(tags, model.TagRef{Name: r.Name().Short(), CommitID: hash.String()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tags in %s: %w", ref.Path, err)
	}

	return tags, nil
}

// CommitInfo reads commit metadata from the repository's object store.
func (s *LocalSource) CommitInfo(ctx context.Context, ref model.RepositoryRef, commitID string) (*model.CommitInfo, error) {
	repo, err := git.PlainOpen(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreachable, ref.Path, err)
	}

	commit, err := repo.CommitObject(plumbing.NewHash(commitID))
	if err != nil {
		return nil, fmt.Errorf("commit %s in %s: %w", commitID, ref.Path, err)
	}

	return commitToInfo(commit), nil
}

// TagURL renders a local file reference to the tag ref.
func (s *LocalSource) TagURL(ref model.RepositoryRef, tag string) string {
	return "file://" + ref.Path + "/.git/refs/tags/" + tag
}

func commitToInfo(commit *object.Commit) *model.CommitInfo {
	return &model.CommitInfo{
		Author:  commit.Author.Name,
		Email:   commit.Author.Email,
		Date:    commit.Author.When.UTC(),
		Message: firstLine(commit.Message),
	}
}
