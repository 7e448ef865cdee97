package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr: got %q", cfg.ListenAddr)
	}
	if cfg.DataDir != "data" {
		t.Errorf("data dir: got %q", cfg.DataDir)
	}
	if cfg.Scan.MaxTagsPerRepo != 10 {
		t.Errorf("max tags per repo: got %d", cfg.Scan.MaxTagsPerRepo)
	}
	if cfg.S3.PublishInterval.Std() != 30*time.Second {
		t.Errorf("publish interval: got %v", cfg.S3.PublishInterval.Std())
	}
}

func TestLoadOverlaysFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag-scanner.yaml")
	content := `
listen_addr: ":9090"
organization: "acme"
scan:
  workers: 8
  per_repo_timeout: "45s"
s3:
  bucket: "views"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("AWS_ACCESS_KEY_ID", "env-access")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != ":9090" || cfg.Organization != "acme" {
		t.Errorf("file values: got %q %q", cfg.ListenAddr, cfg.Organization)
	}
	if cfg.Scan.Workers != 8 {
		t.Errorf("workers: got %d", cfg.Scan.Workers)
	}
	if cfg.Scan.PerRepoTimeout.Std() != 45*time.Second {
		t.Errorf("per repo timeout: got %v", cfg.Scan.PerRepoTimeout.Std())
	}
	// Values absent from the file keep their defaults.
	if cfg.DataDir != "data" {
		t.Errorf("data dir: got %q", cfg.DataDir)
	}
	if cfg.GitHub.Token != "env-token" {
		t.Errorf("github token: got %q", cfg.GitHub.Token)
	}
	if cfg.S3.AccessKey != "env-access" || cfg.S3.SecretKey != "env-secret" {
		t.Errorf("s3 credentials: got %q %q", cfg.S3.AccessKey, cfg.S3.SecretKey)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag-scanner.yaml")
	if err := os.WriteFile(path, []byte("scan:\n  per_repo_timeout: \"soon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unparsable duration")
	}
}
