package model

import "time"

// Scan types recorded in document metadata and scan history.
const (
	ScanTypeSpecificTag  = "specific_tag"
	ScanTypePatternMatch = "pattern_match"
	ScanTypeLocalScan    = "local_scan"
)

// RepositoryRef identifies a repository discovered during a scan. Remote
// repositories carry a URL and organization; local working copies carry a
// filesystem path instead.
type RepositoryRef struct {
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	Path         string `json:"path,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// TagRef is one tag as listed by a tag source: the name and the commit it
// resolves to. Commit metadata is looked up separately for matching tags only.
type TagRef struct {
	Name     string `json:"name"`
	CommitID string `json:"commit_id"`
}

// CommitInfo holds the commit metadata attached to a matched tag.
type CommitInfo struct {
	Author  string    `json:"author"`
	Email   string    `json:"email,omitempty"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"` // first line only
}

// TagMatch is one occurrence of a matching tag in one repository.
type TagMatch struct {
	TagName        string `json:"tag_name"`
	CommitID       string `json:"commit_id"`
	Author         string `json:"author,omitempty"`
	Date           string `json:"date,omitempty"` // RFC 3339, UTC
	Message        string `json:"message,omitempty"`
	RepositoryName string `json:"repository_name"`
	RepositoryURL  string `json:"repository_url"`
	TagURL         string `json:"tag_url"`
	RepositoryPath string `json:"repository_path,omitempty"`
}

// ScanResult is the outcome of one scan invocation. TotalRepositoriesScanned
// counts every repository the scan attempted, including ones that were
// unreachable or had no matching tags.
type ScanResult struct {
	TotalRepositoriesScanned int        `json:"total_repositories_scanned"`
	RepositoriesWithTag      int        `json:"repositories_with_tag"`
	TagsFound                []TagMatch `json:"tags_found"`
	ScanTimestamp            string     `json:"scan_timestamp"`
	ScanDurationSeconds      float64    `json:"scan_duration_seconds"`
}

// ScanRecord is a persisted scan-history entry.
type ScanRecord struct {
	ID                       int64      `json:"id"`
	ScanType                 string     `json:"scan_type"`
	Scope                    string     `json:"scope"` // organization name or base path
	Requested                string     `json:"requested"`
	TotalRepositoriesScanned int        `json:"total_repositories_scanned"`
	RepositoriesWithTag      int        `json:"repositories_with_tag"`
	DurationSeconds          float64    `json:"duration_seconds"`
	StartedAt                time.Time  `json:"started_at"`
	Matches                  []TagMatch `json:"matches,omitempty"`
}
