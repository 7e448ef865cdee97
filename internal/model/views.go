package model

// SummaryDocument is the UI-facing digest of a VersionTagDocument.
type SummaryDocument struct {
	LastUpdated               string                 `json:"last_updated"`
	Organization              string                 `json:"organization"`
	TotalRepositoriesScanned  int                    `json:"total_repositories_scanned"`
	TotalUniqueTags           int                    `json:"total_unique_tags"`
	TotalRepositoriesWithTags int                    `json:"total_repositories_with_tags"`
	MostCommonTag             string                 `json:"most_common_tag"`
	LatestTagDate             string                 `json:"latest_tag_date"`
	Tags                      map[string]TagOverview `json:"tags"`
}

// TagOverview is the per-tag slice of the summary.
type TagOverview struct {
	TotalRepositories int      `json:"total_repositories"`
	LatestCommitDate  string   `json:"latest_commit_date"`
	Environments      []string `json:"environments"`
	Repositories      []string `json:"repositories"`
}

// EnvironmentDocument lists every deployment record scoped to one environment.
type EnvironmentDocument struct {
	Environment string                  `json:"environment"`
	GeneratedAt string                  `json:"generated_at"`
	Deployments []EnvironmentDeployment `json:"deployments"`
}

// EnvironmentDeployment is one (repository, tag) record in an environment view.
type EnvironmentDeployment struct {
	RepositoryName   string `json:"repository_name"`
	TagName          string `json:"tag_name"`
	CommitShort      string `json:"commit_short"`
	DeploymentStatus string `json:"deployment_status"`
	RepositoryURL    string `json:"repository_url"`
	TagURL           string `json:"tag_url"`
	DeploymentURL    string `json:"deployment_url,omitempty"`
	Author           string `json:"author,omitempty"`
	Date             string `json:"date,omitempty"`
}
