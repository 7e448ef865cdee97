package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/aira-technology/tag-scanner/internal/cli"
	"github.com/aira-technology/tag-scanner/internal/config"
	"github.com/aira-technology/tag-scanner/internal/deploy"
	"github.com/aira-technology/tag-scanner/internal/gitsource"
	"github.com/aira-technology/tag-scanner/internal/history"
	"github.com/aira-technology/tag-scanner/internal/match"
	"github.com/aira-technology/tag-scanner/internal/model"
	"github.com/aira-technology/tag-scanner/internal/scan"
	s3client "github.com/aira-technology/tag-scanner/internal/s3"
	"github.com/aira-technology/tag-scanner/internal/server"
	"github.com/aira-technology/tag-scanner/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "scan":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: tag-scanner scan <org|local>\n")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "org":
			cmdScanOrg(os.Args[3:])
		case "local":
			cmdScanLocal(os.Args[3:])
		default:
			fmt.Fprintf(os.Stderr, "Unknown scan subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "transform":
		cmdTransform(os.Args[2:])
	case "materialize":
		cmdMaterialize(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: tag-scanner <command>

Commands:
  serve          Start the HTTP server
  scan org       Scan a GitHub organization for a version tag
  scan local     Scan local repositories under a base path
  transform      Merge a scan result JSON into the version-tag document
  materialize    Rebuild the summary and environment views
`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("TAG_SCANNER_CONFIG"), "YAML config file path")
	addr := fs.String("addr", "", "listen address (overrides config)")
	dataDir := fs.String("data-dir", "", "data directory (overrides config)")
	fs.Parse(args)

	logger := newLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deployCfg, err := deploy.Load(cfg.DeploymentConfig)
	if err != nil {
		logger.Error("load deployment config", "path", cfg.DeploymentConfig, "error", err)
		os.Exit(1)
	}

	db, err := history.Open(cfg.HistoryDB)
	if err != nil {
		logger.Error("open history database", "path", cfg.HistoryDB, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var wg sync.WaitGroup

	if cfg.S3.Bucket != "" {
		s3Log := logger.With("component", "s3-publish")
		client, err := s3client.New(ctx, s3client.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		}, s3Log)
		if err != nil {
			logger.Error("create s3 client", "error", err)
			os.Exit(1)
		}

		publisher := s3client.NewPublisher(client, cfg.DataDir, s3Log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx, cfg.S3.PublishInterval.Std())
		}()
	}

	srv := server.New(server.Options{
		Store:            store.New(cfg.DataDir, cfg.Pretty),
		History:          db,
		Hosted:           gitsource.NewGitHubSource(githubConfig(cfg)),
		Local:            gitsource.NewLocalSource(),
		DeploymentConfig: deployCfg,
		ScanOptions:      scanOptions(cfg),
		GitHubConfigured: cfg.GitHub.Token != "",
		Addr:             cfg.ListenAddr,
		Logger:           logger,
	})

	if err := srv.Run(ctx); err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}

	wg.Wait()
}

func cmdScanOrg(args []string) {
	fs := flag.NewFlagSet("scan org", flag.ExitOnError)
	org := fs.String("org", "", "GitHub organization (required)")
	tag := fs.String("tag", "", "version tag to look for (required)")
	patterns := fs.Bool("patterns", false, "treat tag as a version prefix and match tag families")
	normalize := fs.Bool("normalize", false, "also match the v-prefixed or v-stripped form of tag")
	maxResults := fs.Int("max-results", 0, "cap the number of matches returned (0 = unlimited)")
	baseURL := fs.String("github-url", envOrDefault("GITHUB_API_URL", "https://api.github.com"), "GitHub API base URL")
	token := fs.String("github-token", os.Getenv("GITHUB_TOKEN"), "GitHub token")
	workers := fs.Int("workers", 1, "repositories scanned concurrently")
	common := addCommonScanFlags(fs)
	fs.Parse(args)

	if *org == "" || *tag == "" {
		fmt.Fprintf(os.Stderr, "Required: -org, -tag\n")
		fs.PrintDefaults()
		os.Exit(1)
	}

	spec := match.Spec{Version: *tag, Kind: match.Exact}
	scanType := model.ScanTypeSpecificTag
	if *patterns {
		spec.Kind = match.Pattern
		scanType = model.ScanTypePatternMatch
	} else if *normalize {
		spec.Kind = match.NormalizedPrefix
	}

	logger := newLogger()
	cmd := cli.ScanCommand{
		Source: gitsource.NewGitHubSource(gitsource.GitHubConfig{
			BaseURL: *baseURL,
			Token:   *token,
		}),
		Scope:    *org,
		ScanType: scanType,
		Spec:     spec,
		Options: scan.Options{
			Workers:        *workers,
			PerRepoTimeout: 30 * time.Second,
			MaxResults:     *maxResults,
			MaxTagsPerRepo: 10,
		},
		HistoryDB:        common.historyDB,
		Save:             common.save,
		DataDir:          common.dataDir,
		DeploymentConfig: common.deployConfig,
		Pretty:           common.pretty,
		Logger:           logger,
	}

	runScanCommand(cmd, logger)
}

func cmdScanLocal(args []string) {
	fs := flag.NewFlagSet("scan local", flag.ExitOnError)
	basePath := fs.String("base-path", ".", "directory walked for git repositories")
	tag := fs.String("tag", "", "version tag to look for (required)")
	common := addCommonScanFlags(fs)
	fs.Parse(args)

	if *tag == "" {
		fmt.Fprintf(os.Stderr, "Required: -tag\n")
		fs.PrintDefaults()
		os.Exit(1)
	}

	abs, err := filepath.Abs(*basePath)
	if err != nil {
		abs = *basePath
	}

	logger := newLogger()
	cmd := cli.ScanCommand{
		Source:           gitsource.NewLocalSource(),
		Scope:            abs,
		ScanType:         model.ScanTypeLocalScan,
		Spec:             match.Spec{Version: *tag, Kind: match.NormalizedPrefix},
		Options:          scan.Options{MaxTagsPerRepo: 10},
		HistoryDB:        common.historyDB,
		Save:             common.save,
		DataDir:          common.dataDir,
		DeploymentConfig: common.deployConfig,
		Pretty:           common.pretty,
		Logger:           logger,
	}

	runScanCommand(cmd, logger)
}

type commonScanFlags struct {
	historyDB    string
	save         bool
	dataDir      string
	deployConfig string
	pretty       bool
}

func addCommonScanFlags(fs *flag.FlagSet) *commonScanFlags {
	c := &commonScanFlags{}
	fs.StringVar(&c.historyDB, "history-db", "scans.db", "scan history database path (empty to skip)")
	fs.BoolVar(&c.save, "save", false, "merge the result into the version-tag document")
	fs.StringVar(&c.dataDir, "data-dir", "data", "data directory for persisted documents")
	fs.StringVar(&c.deployConfig, "deployment-config", "config/deployment_config.json", "deployment config path")
	fs.BoolVar(&c.pretty, "pretty", true, "indent persisted JSON")
	return c
}

func runScanCommand(cmd cli.ScanCommand, logger *slog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}
}

func cmdTransform(args []string) {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	input := fs.String("input", "-", "scan result JSON file, - for stdin")
	dataDir := fs.String("data-dir", "data", "data directory for persisted documents")
	deployConfig := fs.String("deployment-config", "config/deployment_config.json", "deployment config path")
	org := fs.String("org", "", "organization recorded in document metadata")
	scanType := fs.String("scan-type", model.ScanTypeSpecificTag, "scan type recorded in document metadata")
	merge := fs.Bool("merge", true, "merge into the existing document instead of replacing it")
	pretty := fs.Bool("pretty", true, "indent persisted JSON")
	fs.Parse(args)

	logger := newLogger()
	cmd := cli.TransformCommand{
		Input:            *input,
		DataDir:          *dataDir,
		DeploymentConfig: *deployConfig,
		Organization:     *org,
		ScanType:         *scanType,
		Merge:            *merge,
		Pretty:           *pretty,
		Logger:           logger,
	}

	if err := cmd.Run(); err != nil {
		logger.Error("transform failed", "error", err)
		os.Exit(1)
	}
}

func cmdMaterialize(args []string) {
	fs := flag.NewFlagSet("materialize", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "data directory for persisted documents")
	deployedOnly := fs.Bool("deployed-only", false, "only include deployed records in environment views")
	pretty := fs.Bool("pretty", true, "indent persisted JSON")
	fs.Parse(args)

	logger := newLogger()
	cmd := cli.MaterializeCommand{
		DataDir:      *dataDir,
		DeployedOnly: *deployedOnly,
		Pretty:       *pretty,
		Logger:       logger,
	}

	if err := cmd.Run(); err != nil {
		logger.Error("materialize failed", "error", err)
		os.Exit(1)
	}
}

func githubConfig(cfg config.Config) gitsource.GitHubConfig {
	baseURL := cfg.GitHub.BaseURL
	if baseURL == "" {
		baseURL = envOrDefault("GITHUB_API_URL", "https://api.github.com")
	}
	return gitsource.GitHubConfig{
		BaseURL: baseURL,
		Token:   cfg.GitHub.Token,
	}
}

// scanOptions maps the config onto orchestrator options. Workers defaults to
// zero, so served scans run sequentially unless the operator opts in.
func scanOptions(cfg config.Config) scan.Options {
	return scan.Options{
		Workers:        cfg.Scan.Workers,
		PerRepoTimeout: cfg.Scan.PerRepoTimeout.Std(),
		MaxTagsPerRepo: cfg.Scan.MaxTagsPerRepo,
	}
}

func newLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)
	return logger
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
