// Package view derives UI-facing projections from the canonical document:
// a global summary and one deployment list per environment.
package view

import (
	"time"

	"github.com/aira-technology/tag-scanner/internal/model"
)

// Policy selects which detail records qualify for environment views. The two
// policies are distinct on purpose; callers choose one explicitly.
type Policy int

const (
	// AllStatuses includes every record with a concrete environment,
	// whatever its deployment status.
	AllStatuses Policy = iota
	// DeployedOnly includes only records whose status is "deployed".
	DeployedOnly
)

// Materialize derives the summary document and the per-environment documents
// from doc. Environments with zero qualifying records are absent from the
// returned map. Materialize never mutates doc.
func Materialize(doc *model.VersionTagDocument, policy Policy) (*model.SummaryDocument, map[string]*model.EnvironmentDocument) {
	summary := &model.SummaryDocument{
		LastUpdated:               doc.Metadata.LastUpdated,
		Organization:              doc.Metadata.Organization,
		TotalRepositoriesScanned:  doc.Metadata.TotalRepositoriesScanned,
		TotalUniqueTags:           doc.Statistics.TotalUniqueTags,
		TotalRepositoriesWithTags: doc.Statistics.TotalRepositoriesWithTags,
		MostCommonTag:             doc.Statistics.MostCommonTag,
		LatestTagDate:             doc.Statistics.LatestTagDate,
		Tags:                      make(map[string]model.TagOverview, doc.Tags.Len()),
	}

	generatedAt := time.Now().UTC().Format(time.RFC3339)
	envDocs := make(map[string]*model.EnvironmentDocument)

	for _, tag := range doc.Tags.Names() {
		group := doc.Tags.Get(tag)

		names := make([]string, 0, len(group.Repositories))
		for _, d := range group.Repositories {
			names = append(names, d.RepositoryName)
		}
		summary.Tags[tag] = model.TagOverview{
			TotalRepositories: group.Summary.TotalRepositories,
			LatestCommitDate:  group.Summary.LatestCommitDate,
			Environments:      group.Summary.DeploymentEnvironments,
			Repositories:      names,
		}

		for _, d := range group.Repositories {
			if !qualifies(d, policy) {
				continue
			}
			envDoc := envDocs[d.Environment]
			if envDoc == nil {
				envDoc = &model.EnvironmentDocument{
					Environment: d.Environment,
					GeneratedAt: generatedAt,
				}
				envDocs[d.Environment] = envDoc
			}
			envDoc.Deployments = append(envDoc.Deployments, model.EnvironmentDeployment{
				RepositoryName:   d.RepositoryName,
				TagName:          tag,
				CommitShort:      d.CommitShort,
				DeploymentStatus: d.DeploymentStatus,
				RepositoryURL:    d.RepositoryURL,
				TagURL:           d.TagURL,
				DeploymentURL:    d.DeploymentURL,
				Author:           d.Author,
				Date:             d.Date,
			})
		}
	}

	return summary, envDocs
}

func qualifies(d model.RepositoryDetail, policy Policy) bool {
	if d.Environment == "" || d.Environment == model.EnvironmentUnknown || d.Environment == model.EnvironmentNone {
		return false
	}
	return policy == AllStatuses || d.DeploymentStatus == model.StatusDeployed
}
