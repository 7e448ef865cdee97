// Package transform converts scan results into the canonical version-tag
// document: grouping by tag, merging into an existing document by
// (tag, repository) key, deployment enrichment, and derived statistics.
package transform

import (
	"sort"
	"strings"
	"time"

	"github.com/aira-technology/tag-scanner/internal/deploy"
	"github.com/aira-technology/tag-scanner/internal/model"
)

// Options parameterize a transformation.
type Options struct {
	Organization  string
	ScanType      string // specific_tag, pattern_match, local_scan
	SchemaVersion string // defaults to model.SchemaVersion
	Now           func() time.Time
}

// Transform groups the scan result's matches by tag name and produces a
// VersionTagDocument. When existing is non-nil it is merged into: each
// incoming match upserts the detail record for its repository within the
// tag's group, never duplicating. The existing document is validated first;
// a malformed document is a fatal *model.ValidationError.
//
// Group summaries and top-level statistics are recomputed from the final
// detail set, and every detail record is re-enriched from cfg, so repeated
// transforms of identical input are idempotent.
func Transform(result *model.ScanResult, existing *model.VersionTagDocument, cfg deploy.Config, opts Options) (*model.VersionTagDocument, error) {
	if opts.SchemaVersion == "" {
		opts.SchemaVersion = model.SchemaVersion
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	doc := &model.VersionTagDocument{Tags: model.NewTagGroups()}
	if existing != nil {
		if err := Validate(existing); err != nil {
			return nil, err
		}
		doc.Tags = existing.Tags
	}

	doc.Metadata = model.Metadata{
		LastUpdated:              now().UTC().Format(time.RFC3339),
		ScanDurationSeconds:      result.ScanDurationSeconds,
		Organization:             opts.Organization,
		TotalRepositoriesScanned: result.TotalRepositoriesScanned,
		ScanType:                 opts.ScanType,
		Version:                  opts.SchemaVersion,
	}

	for _, m := range result.TagsFound {
		upsert(doc.Tags, m.TagName, toDetail(m))
	}

	enrich(doc, cfg)
	recompute(doc)
	return doc, nil
}

// toDetail expands a TagMatch into a detail record with derived fields.
// Deployment status and environment start unknown; enrichment fills them in.
func toDetail(m model.TagMatch) model.RepositoryDetail {
	name, email := splitAuthor(m.Author)
	return model.RepositoryDetail{
		RepositoryName:   m.RepositoryName,
		CommitID:         m.CommitID,
		CommitShort:      shortCommit(m.CommitID),
		Author:           name,
		AuthorEmail:      email,
		Date:             m.Date,
		Message:          m.Message,
		RepositoryURL:    m.RepositoryURL,
		TagURL:           m.TagURL,
		DeploymentStatus: model.StatusUnknown,
		Environment:      model.EnvironmentUnknown,
		RepositoryPath:   m.RepositoryPath,
	}
}

// upsert places the detail into the tag's group, replacing any existing
// record for the same repository.
func upsert(groups *model.TagGroups, tag string, detail model.RepositoryDetail) {
	group := groups.Get(tag)
	if group == nil {
		group = &model.TagGroup{TagName: tag}
		groups.Set(tag, group)
	}
	for i := range group.Repositories {
		if group.Repositories[i].RepositoryName == detail.RepositoryName {
			group.Repositories[i] = detail
			return
		}
	}
	group.Repositories = append(group.Repositories, detail)
}

// enrich fills deployment status and environment on every detail record from
// the deployment configuration. Running it over the whole document keeps
// previously merged records consistent with the current configuration.
func enrich(doc *model.VersionTagDocument, cfg deploy.Config) {
	for _, tag := range doc.Tags.Names() {
		group := doc.Tags.Get(tag)
		for i := range group.Repositories {
			d := &group.Repositories[i]
			v := cfg.Lookup(d.RepositoryName, tag)
			d.DeploymentStatus = v.Status
			d.Environment = v.Environment
			d.DeployedAt = v.DeployedAt
			d.DeploymentURL = v.DeploymentURL
		}
	}
}

// recompute rebuilds every group summary and the document statistics from the
// detail records. Both are pure functions of the details.
func recompute(doc *model.VersionTagDocument) {
	uniqueRepos := make(map[string]struct{})
	mostCommon := ""
	mostCommonCount := 0
	latestTagDate := ""

	for _, tag := range doc.Tags.Names() {
		group := doc.Tags.Get(tag)

		latest := ""
		envSet := make(map[string]struct{})
		for _, d := range group.Repositories {
			uniqueRepos[d.RepositoryName] = struct{}{}
			if d.Date > latest {
				latest = d.Date
			}
			if d.Environment != model.EnvironmentUnknown && d.Environment != model.EnvironmentNone {
				envSet[d.Environment] = struct{}{}
			}
		}

		envs := make([]string, 0, len(envSet))
		for e := range envSet {
			envs = append(envs, e)
		}
		sort.Strings(envs)

		group.Summary = model.TagSummary{
			TotalRepositories:      len(group.Repositories),
			LatestCommitDate:       latest,
			DeploymentEnvironments: envs,
		}

		// Ties keep the first-encountered tag.
		if len(group.Repositories) > mostCommonCount {
			mostCommonCount = len(group.Repositories)
			mostCommon = tag
		}
		if latest > latestTagDate {
			latestTagDate = latest
		}
	}

	doc.Statistics = model.Statistics{
		TotalUniqueTags:           doc.Tags.Len(),
		TotalRepositoriesWithTags: len(uniqueRepos),
		MostCommonTag:             mostCommon,
		LatestTagDate:             latestTagDate,
	}
}

// splitAuthor separates a "Name <email>" author string. Authors without an
// email pass through unchanged.
func splitAuthor(author string) (name, email string) {
	start := strings.IndexByte(author, '<')
	end := strings.IndexByte(author, '>')
	if start < 0 || end < start {
		return author, ""
	}
	return strings.TrimSpace(author[:start]), author[start+1 : end]
}

func shortCommit(commitID string) string {
	if len(commitID) > 7 {
		return commitID[:7]
	}
	return commitID
}
