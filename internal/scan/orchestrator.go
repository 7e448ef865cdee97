// Package scan orchestrates tag scans across a collection of repositories.
package scan

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aira-technology/tag-scanner/internal/gitsource"
	"github.com/aira-technology/tag-scanner/internal/match"
	"github.com/aira-technology/tag-scanner/internal/model"
)

// Options tune a single scan run.
type Options struct {
	// Workers is the number of repositories queried concurrently. Zero or
	// one means sequential, which is the default behavior.
	Workers int
	// PerRepoTimeout bounds each repository's external calls. On expiry the
	// repository is recorded as failed and the scan continues. Zero disables
	// the timeout.
	PerRepoTimeout time.Duration
	// MaxResults truncates the match sequence without affecting the scanned
	// or with-tag counters. Zero means unlimited.
	MaxResults int
	// MaxTagsPerRepo limits how many listed tags are inspected per
	// repository during pattern scans. Zero means all.
	MaxTagsPerRepo int
}

// Orchestrator runs scans against a TagSource. A per-repository failure is
// logged and skipped; the repository still counts as scanned.
type Orchestrator struct {
	source gitsource.TagSource
	logger *slog.Logger
}

// New creates an Orchestrator over the given source.
func New(source gitsource.TagSource, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{source: source, logger: logger}
}

// Run scans every repository in scope for tags matching spec.
func (o *Orchestrator) Run(ctx context.Context, scope string, spec match.Spec, opts Options) (*model.ScanResult, error) {
	start := time.Now()

	repos, err := o.source.ListRepositories(ctx, scope)
	if err != nil {
		return nil, err
	}

	// Matches are collected per repository slot so that the output order
	// follows the repository listing regardless of worker count.
	perRepo := make([][]model.TagMatch, len(repos))

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	if workers == 1 {
		for i, ref := range repos {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			perRepo[i] = o.scanRepository(ctx, ref, spec, opts)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, ref := range repos {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				perRepo[i] = o.scanRepository(gctx, ref, spec, opts)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var found []model.TagMatch
	withTag := make(map[string]struct{})
	for _, matches := range perRepo {
		for _, m := range matches {
			withTag[m.RepositoryName] = struct{}{}
		}
		found = append(found, matches...)
	}

	if opts.MaxResults > 0 && len(found) > opts.MaxResults {
		found = found[:opts.MaxResults]
	}

	return &model.ScanResult{
		TotalRepositoriesScanned: len(repos),
		RepositoriesWithTag:      len(withTag),
		TagsFound:                found,
		ScanTimestamp:            start.UTC().Format(time.RFC3339),
		ScanDurationSeconds:      time.Since(start).Seconds(),
	}, nil
}

// scanRepository queries one repository and returns its matching tags.
// Failures are logged as warnings and yield zero matches.
func (o *Orchestrator) scanRepository(ctx context.Context, ref model.RepositoryRef, spec match.Spec, opts Options) []model.TagMatch {
	if opts.PerRepoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.PerRepoTimeout)
		defer cancel()
	}

	tags, err := o.source.ListTags(ctx, ref)
	if err != nil {
		o.logger.Warn("list tags", "repository", ref.Name, "error", err)
		return nil
	}
	if len(tags) == 0 {
		return nil
	}

	var matched []model.TagRef
	if spec.Kind == match.Pattern {
		inspect := tags
		if opts.MaxTagsPerRepo > 0 && len(inspect) > opts.MaxTagsPerRepo {
			inspect = inspect[:opts.MaxTagsPerRepo]
		}
		for _, t := range inspect {
			if spec.Matches(t.Name) {
				matched = append(matched, t)
			}
		}
	} else if t, ok := pickTag(tags, spec); ok {
		matched = append(matched, t)
	}

	out := make([]model.TagMatch, 0, len(matched))
	for _, t := range matched {
		m := model.TagMatch{
			TagName:        t.Name,
			CommitID:       t.CommitID,
			RepositoryName: ref.Name,
			RepositoryURL:  ref.URL,
			TagURL:         o.source.TagURL(ref, t.Name),
			RepositoryPath: ref.Path,
		}
		info, err := o.source.CommitInfo(ctx, ref, t.CommitID)
		if err != nil {
			o.logger.Warn("commit lookup", "repository", ref.Name, "tag", t.Name, "error", err)
		} else {
			m.Author = formatAuthor(info.Author, info.Email)
			m.Date = info.Date.UTC().Format(time.RFC3339)
			m.Message = info.Message
		}
		out = append(out, m)
	}
	return out
}

// pickTag selects at most one tag for exact and normalized-prefix scans,
// preferring a verbatim match over a v-normalized one.
func pickTag(tags []model.TagRef, spec match.Spec) (model.TagRef, bool) {
	for _, t := range tags {
		if t.Name == spec.Version {
			return t, true
		}
	}
	if spec.Kind == match.NormalizedPrefix {
		for _, t := range tags {
			if spec.Matches(t.Name) {
				return t, true
			}
		}
	}
	return model.TagRef{}, false
}

func formatAuthor(name, email string) string {
	if email == "" {
		return name
	}
	return name + " <" + email + ">"
}
