package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaVersion is the current version of the persisted document schema.
const SchemaVersion = "1.0.0"

// Deployment status values used when no deployment configuration entry exists.
const (
	StatusUnknown     = "unknown"
	StatusNotDeployed = "not_deployed"
	StatusDeployed    = "deployed"

	EnvironmentUnknown = "unknown"
	EnvironmentNone    = "none"
)

// VersionTagDocument is the canonical persisted representation of scan
// results, grouped by tag name. Summary and statistics fields are always
// recomputed from the detail records on write.
type VersionTagDocument struct {
	Metadata   Metadata   `json:"metadata"`
	Tags       *TagGroups `json:"tags"`
	Statistics Statistics `json:"statistics"`
}

// Metadata describes the scan that last updated the document.
type Metadata struct {
	LastUpdated              string  `json:"last_updated"`
	ScanDurationSeconds      float64 `json:"scan_duration_seconds"`
	Organization             string  `json:"organization"`
	TotalRepositoriesScanned int     `json:"total_repositories_scanned"`
	ScanType                 string  `json:"scan_type"`
	Version                  string  `json:"version"`
}

// TagGroup holds every repository detail record for one tag name, plus a
// summary derived from those records.
type TagGroup struct {
	TagName      string             `json:"tag_name"`
	Repositories []RepositoryDetail `json:"repositories"`
	Summary      TagSummary         `json:"summary"`
}

// RepositoryDetail is one repository's occurrence of a tag, enriched with
// deployment information.
type RepositoryDetail struct {
	RepositoryName   string `json:"repository_name"`
	CommitID         string `json:"commit_id"`
	CommitShort      string `json:"commit_short"`
	Author           string `json:"author"`
	AuthorEmail      string `json:"author_email,omitempty"`
	Date             string `json:"date"`
	Message          string `json:"message"`
	RepositoryURL    string `json:"repository_url"`
	TagURL           string `json:"tag_url"`
	DeploymentStatus string `json:"deployment_status"`
	Environment      string `json:"environment"`
	DeployedAt       string `json:"deployed_at,omitempty"`
	DeploymentURL    string `json:"deployment_url,omitempty"`
	RepositoryPath   string `json:"repository_path,omitempty"`
}

// TagSummary is derived from a group's detail records.
type TagSummary struct {
	TotalRepositories      int      `json:"total_repositories"`
	LatestCommitDate       string   `json:"latest_commit_date"`
	DeploymentEnvironments []string `json:"deployment_environments"`
}

// Statistics is derived from all detail records across every group.
type Statistics struct {
	TotalUniqueTags           int    `json:"total_unique_tags"`
	TotalRepositoriesWithTags int    `json:"total_repositories_with_tags"`
	MostCommonTag             string `json:"most_common_tag"`
	LatestTagDate             string `json:"latest_tag_date"`
}

// TagGroups is an insertion-ordered map from tag name to TagGroup. Order
// matters: the most-common-tag statistic breaks ties by first-encountered
// order, and that order must survive a round trip through the persisted file.
// It marshals as a plain JSON object.
type TagGroups struct {
	order  []string
	groups map[string]*TagGroup
}

// NewTagGroups returns an empty, ready-to-use TagGroups.
func NewTagGroups() *TagGroups {
	return &TagGroups{groups: make(map[string]*TagGroup)}
}

// Get returns the group for name, or nil if absent.
func (g *TagGroups) Get(name string) *TagGroup {
	return g.groups[name]
}

// Set inserts or replaces the group for name, preserving insertion order.
func (g *TagGroups) Set(name string, group *TagGroup) {
	if g.groups == nil {
		g.groups = make(map[string]*TagGroup)
	}
	if _, ok := g.groups[name]; !ok {
		g.order = append(g.order, name)
	}
	g.groups[name] = group
}

// Names returns tag names in insertion order.
func (g *TagGroups) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of groups.
func (g *TagGroups) Len() int {
	return len(g.order)
}

// MarshalJSON encodes the groups as a JSON object with keys in insertion order.
func (g *TagGroups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(g.groups[name])
		if err != nil {
			return nil, fmt.Errorf("marshal tag group %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, recording key order as it appears.
func (g *TagGroups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tags: expected JSON object, got %v", tok)
	}

	g.order = nil
	g.groups = make(map[string]*TagGroup)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("tags: expected object key, got %v", tok)
		}
		var group TagGroup
		if err := dec.Decode(&group); err != nil {
			return fmt.Errorf("tags: decode group %q: %w", name, err)
		}
		g.Set(name, &group)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
