package transform

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aira-technology/tag-scanner/internal/deploy"
	"github.com/aira-technology/tag-scanner/internal/model"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func testOptions() Options {
	return Options{
		Organization: "aira-technology",
		ScanType:     model.ScanTypeSpecificTag,
		Now:          fixedNow,
	}
}

func match(tag, repo, commit, date string) model.TagMatch {
	return model.TagMatch{
		TagName:        tag,
		RepositoryName: repo,
		CommitID:       commit,
		Author:         "Felipe Martin <felipe@example.com>",
		Date:           date,
		Message:        "Release " + tag,
		RepositoryURL:  "https://github.com/aira-technology/" + repo,
		TagURL:         "https://github.com/aira-technology/" + repo + "/releases/tag/" + tag,
	}
}

func result(matches ...model.TagMatch) *model.ScanResult {
	return &model.ScanResult{
		TotalRepositoriesScanned: 10,
		RepositoriesWithTag:      len(matches),
		TagsFound:                matches,
		ScanTimestamp:            "2025-06-01T11:59:00Z",
		ScanDurationSeconds:      1.5,
	}
}

func TestTransformGroupsByTag(t *testing.T) {
	doc, err := Transform(result(
		match("v0.75.5", "api-gateway", "aaaa111122223333", "2025-05-20T10:00:00Z"),
		match("v0.75.5", "billing-service", "bbbb111122223333", "2025-05-21T10:00:00Z"),
		match("v0.74.0", "web-frontend", "cccc111122223333", "2025-04-01T10:00:00Z"),
	), nil, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	if got := doc.Tags.Len(); got != 2 {
		t.Fatalf("groups: got %d, want 2", got)
	}

	group := doc.Tags.Get("v0.75.5")
	if group == nil {
		t.Fatal("missing group v0.75.5")
	}
	if len(group.Repositories) != 2 {
		t.Fatalf("v0.75.5 repositories: got %d, want 2", len(group.Repositories))
	}
	if group.Summary.TotalRepositories != 2 {
		t.Errorf("summary total: got %d, want 2", group.Summary.TotalRepositories)
	}
	if group.Summary.LatestCommitDate != "2025-05-21T10:00:00Z" {
		t.Errorf("latest commit date: got %q", group.Summary.LatestCommitDate)
	}

	if doc.Metadata.Organization != "aira-technology" {
		t.Errorf("organization: got %q", doc.Metadata.Organization)
	}
	if doc.Metadata.LastUpdated != "2025-06-01T12:00:00Z" {
		t.Errorf("last updated: got %q", doc.Metadata.LastUpdated)
	}
	if doc.Metadata.Version != model.SchemaVersion {
		t.Errorf("schema version: got %q", doc.Metadata.Version)
	}
}

func TestTransformDetailFields(t *testing.T) {
	doc, err := Transform(result(
		match("v0.75.5", "api-gateway", "aaaa111122223333", "2025-05-20T10:00:00Z"),
	), nil, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	d := doc.Tags.Get("v0.75.5").Repositories[0]
	want := model.RepositoryDetail{
		RepositoryName:   "api-gateway",
		CommitID:         "aaaa111122223333",
		CommitShort:      "aaaa111",
		Author:           "Felipe Martin",
		AuthorEmail:      "felipe@example.com",
		Date:             "2025-05-20T10:00:00Z",
		Message:          "Release v0.75.5",
		RepositoryURL:    "https://github.com/aira-technology/api-gateway",
		TagURL:           "https://github.com/aira-technology/api-gateway/releases/tag/v0.75.5",
		DeploymentStatus: model.StatusUnknown,
		Environment:      model.EnvironmentUnknown,
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("detail mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformMergeUpserts(t *testing.T) {
	first, err := Transform(result(
		match("v0.75.5", "api-gateway", "aaaa111122223333", "2025-05-20T10:00:00Z"),
	), nil, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	// Same (tag, repository) with a newer commit replaces, never duplicates.
	second, err := Transform(result(
		match("v0.75.5", "api-gateway", "dddd111122223333", "2025-05-25T10:00:00Z"),
		match("v0.75.5", "billing-service", "bbbb111122223333", "2025-05-21T10:00:00Z"),
	), first, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	group := second.Tags.Get("v0.75.5")
	if len(group.Repositories) != 2 {
		t.Fatalf("repositories after merge: got %d, want 2", len(group.Repositories))
	}
	if group.Repositories[0].CommitID != "dddd111122223333" {
		t.Errorf("api-gateway commit: got %q, want replaced", group.Repositories[0].CommitID)
	}
}

func TestTransformMergeIdempotent(t *testing.T) {
	r := result(
		match("v0.75.5", "api-gateway", "aaaa111122223333", "2025-05-20T10:00:00Z"),
		match("v0.74.0", "web-frontend", "cccc111122223333", "2025-04-01T10:00:00Z"),
	)

	first, err := Transform(r, nil, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Transform(r, first, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	// TagGroups keeps private ordering state, so compare the wire form.
	a, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(a), string(b)); diff != "" {
		t.Errorf("repeated transform changed document (-first +second):\n%s", diff)
	}
}

func TestTransformEnrichment(t *testing.T) {
	cfg := deploy.Config{
		"api-gateway": deploy.Repository{
			DeployedVersions: map[string]deploy.Version{
				"v0.75.5": {
					Status:      model.StatusDeployed,
					Environment: "production",
					DeployedAt:  "2025-05-22T08:00:00Z",
				},
			},
		},
		"billing-service": deploy.Repository{
			DeployedVersions: map[string]deploy.Version{},
		},
	}

	doc, err := Transform(result(
		match("v0.75.5", "api-gateway", "aaaa111122223333", "2025-05-20T10:00:00Z"),
		match("v0.75.5", "billing-service", "bbbb111122223333", "2025-05-21T10:00:00Z"),
		match("v0.75.5", "mystery-repo", "eeee111122223333", "2025-05-19T10:00:00Z"),
	), nil, cfg, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	byName := make(map[string]model.RepositoryDetail)
	for _, d := range doc.Tags.Get("v0.75.5").Repositories {
		byName[d.RepositoryName] = d
	}

	if d := byName["api-gateway"]; d.DeploymentStatus != model.StatusDeployed || d.Environment != "production" {
		t.Errorf("configured repo: got %s/%s", d.DeploymentStatus, d.Environment)
	}
	if d := byName["billing-service"]; d.DeploymentStatus != model.StatusNotDeployed || d.Environment != model.EnvironmentNone {
		t.Errorf("known repo without tag: got %s/%s", d.DeploymentStatus, d.Environment)
	}
	if d := byName["mystery-repo"]; d.DeploymentStatus != model.StatusUnknown || d.Environment != model.EnvironmentUnknown {
		t.Errorf("unknown repo: got %s/%s", d.DeploymentStatus, d.Environment)
	}

	if got := doc.Tags.Get("v0.75.5").Summary.DeploymentEnvironments; len(got) != 1 || got[0] != "production" {
		t.Errorf("environments: got %v, want [production]", got)
	}
}

func TestTransformStatistics(t *testing.T) {
	doc, err := Transform(result(
		match("v0.75.5", "api-gateway", "aaaa111122223333", "2025-05-20T10:00:00Z"),
		match("v0.75.5", "billing-service", "bbbb111122223333", "2025-05-21T10:00:00Z"),
		match("v0.74.0", "api-gateway", "cccc111122223333", "2025-04-01T10:00:00Z"),
	), nil, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	stats := doc.Statistics
	if stats.TotalUniqueTags != 2 {
		t.Errorf("unique tags: got %d, want 2", stats.TotalUniqueTags)
	}
	if stats.TotalRepositoriesWithTags != 2 {
		t.Errorf("repositories: got %d, want 2", stats.TotalRepositoriesWithTags)
	}
	if stats.MostCommonTag != "v0.75.5" {
		t.Errorf("most common: got %q", stats.MostCommonTag)
	}
	if stats.LatestTagDate != "2025-05-21T10:00:00Z" {
		t.Errorf("latest date: got %q", stats.LatestTagDate)
	}
}

func TestTransformMostCommonTieKeepsFirstEncountered(t *testing.T) {
	doc, err := Transform(result(
		match("v0.74.0", "api-gateway", "aaaa111122223333", "2025-04-01T10:00:00Z"),
		match("v0.75.5", "billing-service", "bbbb111122223333", "2025-05-21T10:00:00Z"),
	), nil, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	if doc.Statistics.MostCommonTag != "v0.74.0" {
		t.Errorf("most common: got %q, want v0.74.0", doc.Statistics.MostCommonTag)
	}

	// The tie survives a second merge in the other order.
	doc, err = Transform(result(
		match("v0.75.5", "billing-service", "bbbb111122223333", "2025-05-21T10:00:00Z"),
		match("v0.74.0", "api-gateway", "aaaa111122223333", "2025-04-01T10:00:00Z"),
	), doc, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if doc.Statistics.MostCommonTag != "v0.74.0" {
		t.Errorf("most common after merge: got %q, want v0.74.0", doc.Statistics.MostCommonTag)
	}
}

func TestTransformRejectsMalformedExisting(t *testing.T) {
	existing := &model.VersionTagDocument{
		Metadata: model.Metadata{Version: model.SchemaVersion, ScanType: model.ScanTypeSpecificTag},
		Tags:     model.NewTagGroups(),
	}
	existing.Tags.Set("v0.75.5", &model.TagGroup{
		TagName: "elsewhere", // group key must match tag_name
		Repositories: []model.RepositoryDetail{
			{RepositoryName: "api-gateway"},
		},
	})

	_, err := Transform(result(), existing, nil, testOptions())
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type: got %T", err)
	}
}
