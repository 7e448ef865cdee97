package transform

import (
	"fmt"

	"github.com/aira-technology/tag-scanner/internal/model"
)

var scanTypes = map[string]bool{
	model.ScanTypeSpecificTag:  true,
	model.ScanTypePatternMatch: true,
	model.ScanTypeLocalScan:    true,
}

// Validate checks a persisted document against the schema invariants before
// it is merged into. It returns a *model.ValidationError describing the first
// violation found.
func Validate(doc *model.VersionTagDocument) error {
	if doc.Metadata.Version == "" {
		return &model.ValidationError{Path: "metadata.version", Reason: "missing"}
	}
	if doc.Metadata.ScanType != "" && !scanTypes[doc.Metadata.ScanType] {
		return &model.ValidationError{
			Path:   "metadata.scan_type",
			Reason: fmt.Sprintf("unknown scan type %q", doc.Metadata.ScanType),
		}
	}
	if doc.Tags == nil {
		return &model.ValidationError{Path: "tags", Reason: "missing"}
	}

	for _, tag := range doc.Tags.Names() {
		group := doc.Tags.Get(tag)
		prefix := "tags." + tag

		if group.TagName != tag {
			return &model.ValidationError{
				Path:   prefix + ".tag_name",
				Reason: fmt.Sprintf("group key %q does not match tag_name %q", tag, group.TagName),
			}
		}

		seen := make(map[string]bool, len(group.Repositories))
		for i, d := range group.Repositories {
			path := fmt.Sprintf("%s.repositories[%d]", prefix, i)
			if d.RepositoryName == "" {
				return &model.ValidationError{Path: path + ".repository_name", Reason: "missing"}
			}
			if seen[d.RepositoryName] {
				return &model.ValidationError{
					Path:   path,
					Reason: fmt.Sprintf("duplicate entry for repository %q", d.RepositoryName),
				}
			}
			seen[d.RepositoryName] = true
		}
	}

	return nil
}
