package cli

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aira-technology/tag-scanner/internal/store"
	"github.com/aira-technology/tag-scanner/internal/view"
)

// MaterializeCommand rebuilds the summary and per-environment views from the
// persisted document.
type MaterializeCommand struct {
	DataDir string
	// DeployedOnly restricts environment membership to records whose status
	// is deployed.
	DeployedOnly bool
	Pretty       bool

	Logger *slog.Logger
}

func (c MaterializeCommand) Run() error {
	st := store.New(c.DataDir, c.Pretty)

	doc, err := st.LoadDocument()
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("no document at %s/%s, run a scan first", c.DataDir, store.DocumentFile)
	}

	policy := view.AllStatuses
	if c.DeployedOnly {
		policy = view.DeployedOnly
	}

	summary, envs := view.Materialize(doc, policy)
	if err := st.SaveSummary(summary); err != nil {
		return err
	}
	if err := st.SaveEnvironments(envs); err != nil {
		return err
	}

	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Summary written for %d tags\n", len(summary.Tags))
	for _, name := range names {
		fmt.Printf("Environment %-12s %d deployments\n", name, len(envs[name].Deployments))
	}

	return nil
}
