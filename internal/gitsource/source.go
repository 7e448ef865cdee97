// Package gitsource provides tag sources: uniform read-only access to the
// tags of a set of repositories, either hosted (GitHub REST API) or local
// (on-disk working copies).
package gitsource

import (
	"context"
	"errors"

	"github.com/aira-technology/tag-scanner/internal/model"
)

// ErrUnreachable marks a repository that could not be queried: network
// failure, authentication failure, or denied access. Scans log these and
// continue; they never abort the whole run.
var ErrUnreachable = errors.New("repository unreachable")

// TagSource is the capability boundary between the scan orchestrator and the
// outside world. A repository with no tags yields an empty ListTags result,
// not an error.
type TagSource interface {
	// ListRepositories enumerates the repositories in scope: an organization
	// name for hosted sources, a base filesystem path for local ones.
	ListRepositories(ctx context.Context, scope string) ([]model.RepositoryRef, error)

	// ListTags returns every tag of the repository with its resolved commit id.
	ListTags(ctx context.Context, ref model.RepositoryRef) ([]model.TagRef, error)

	// CommitInfo looks up author, date, and first message line for a commit.
	CommitInfo(ctx context.Context, ref model.RepositoryRef, commitID string) (*model.CommitInfo, error)

	// TagURL renders the browsable URL for a tag of the repository.
	TagURL(ref model.RepositoryRef, tag string) string
}
