package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aira-technology/tag-scanner/internal/deploy"
	"github.com/aira-technology/tag-scanner/internal/model"
	"github.com/aira-technology/tag-scanner/internal/store"
	"github.com/aira-technology/tag-scanner/internal/transform"
	"github.com/aira-technology/tag-scanner/internal/view"
)

// TransformCommand reads a ScanResult JSON and merges it into the canonical
// document under the data dir. "-" as the input reads stdin.
type TransformCommand struct {
	Input            string
	DataDir          string
	DeploymentConfig string
	Organization     string
	ScanType         string
	// Merge controls whether an existing document is merged into. When
	// false the input replaces the document wholesale.
	Merge  bool
	Pretty bool

	Logger *slog.Logger
}

func (c TransformCommand) Run() error {
	var data []byte
	var err error
	if c.Input == "-" || c.Input == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(c.Input)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var result model.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("parse scan result: %w", err)
	}

	cfg, err := deploy.Load(c.DeploymentConfig)
	if err != nil {
		return fmt.Errorf("load deployment config: %w", err)
	}

	st := store.New(c.DataDir, c.Pretty)

	doc, err := st.Update(func(existing *model.VersionTagDocument) (*model.VersionTagDocument, error) {
		if !c.Merge {
			existing = nil
		}
		return transform.Transform(&result, existing, cfg, transform.Options{
			Organization: c.Organization,
			ScanType:     c.ScanType,
		})
	})
	if err != nil {
		return err
	}

	summary, envs := view.Materialize(doc, view.AllStatuses)
	if err := st.SaveSummary(summary); err != nil {
		return err
	}
	if err := st.SaveEnvironments(envs); err != nil {
		return err
	}

	printDocumentStats(doc)
	return nil
}

func printDocumentStats(doc *model.VersionTagDocument) {
	fmt.Printf("Unique tags:        %d\n", doc.Statistics.TotalUniqueTags)
	fmt.Printf("Repositories:       %d\n", doc.Statistics.TotalRepositoriesWithTags)
	fmt.Printf("Most common tag:    %s\n", orNone(doc.Statistics.MostCommonTag))
	fmt.Printf("Latest tag date:    %s\n", orNone(doc.Statistics.LatestTagDate))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
