// Package cli implements the one-shot commands behind the tag-scanner
// binary: running scans, transforming results into the canonical document,
// and materializing views.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aira-technology/tag-scanner/internal/deploy"
	"github.com/aira-technology/tag-scanner/internal/gitsource"
	"github.com/aira-technology/tag-scanner/internal/history"
	"github.com/aira-technology/tag-scanner/internal/match"
	"github.com/aira-technology/tag-scanner/internal/model"
	"github.com/aira-technology/tag-scanner/internal/scan"
	"github.com/aira-technology/tag-scanner/internal/store"
	"github.com/aira-technology/tag-scanner/internal/transform"
	"github.com/aira-technology/tag-scanner/internal/view"
)

// ScanCommand runs a single scan and prints the result as JSON.
type ScanCommand struct {
	// Source selects the backend: a GitHub organization or a local base path.
	Source gitsource.TagSource
	// Scope is the organization name or local base path.
	Scope string
	// ScanType is one of the model scan type constants.
	ScanType string
	Spec     match.Spec
	Options  scan.Options

	// HistoryDB, when non-empty, records the scan.
	HistoryDB string

	// Save merges the result into the data dir's document and refreshes the
	// materialized views.
	Save             bool
	DataDir          string
	DeploymentConfig string
	Pretty           bool

	Logger *slog.Logger
}

// Run executes the scan and writes the ScanResult to stdout.
func (c ScanCommand) Run(ctx context.Context) error {
	orch := scan.New(c.Source, c.Logger)

	result, err := orch.Run(ctx, c.Scope, c.Spec, c.Options)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if c.HistoryDB != "" {
		db, err := history.Open(c.HistoryDB)
		if err != nil {
			c.Logger.Warn("failed to open history database", "path", c.HistoryDB, "error", err)
		} else {
			defer db.Close()
			if _, err := db.RecordScan(ctx, c.ScanType, c.Scope, c.Spec.Version, result); err != nil {
				c.Logger.Warn("failed to record scan", "error", err)
			}
		}
	}

	if c.Save {
		org := c.Scope
		if c.ScanType == model.ScanTypeLocalScan {
			org = "local"
		}
		if err := persistResult(result, persistOptions{
			DataDir:          c.DataDir,
			DeploymentConfig: c.DeploymentConfig,
			Organization:     org,
			ScanType:         c.ScanType,
			Pretty:           c.Pretty,
		}, c.Logger); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Scanned %d repositories, %d with matching tags, %d matches in %.2fs\n",
		result.TotalRepositoriesScanned, result.RepositoriesWithTag,
		len(result.TagsFound), result.ScanDurationSeconds)

	return nil
}

type persistOptions struct {
	DataDir          string
	DeploymentConfig string
	Organization     string
	ScanType         string
	Pretty           bool
}

// persistResult merges a scan result into the canonical document and
// rewrites the summary and per-environment views next to it.
func persistResult(result *model.ScanResult, opts persistOptions, logger *slog.Logger) error {
	cfg, err := deploy.Load(opts.DeploymentConfig)
	if err != nil {
		return fmt.Errorf("load deployment config: %w", err)
	}

	st := store.New(opts.DataDir, opts.Pretty)

	doc, err := st.Update(func(existing *model.VersionTagDocument) (*model.VersionTagDocument, error) {
		return transform.Transform(result, existing, cfg, transform.Options{
			Organization: opts.Organization,
			ScanType:     opts.ScanType,
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

	logger.Info("document updated",
		"path", filepath.Join(opts.DataDir, store.DocumentFile),
		"tags", doc.Statistics.TotalUniqueTags,
		"repositories", doc.Statistics.TotalRepositoriesWithTags)

	return nil
}
