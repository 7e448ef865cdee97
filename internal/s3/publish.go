package s3

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Publisher uploads the data directory's JSON files to the bucket, either
// once or on a fixed interval.
type Publisher struct {
	client *Client
	dir    string
	logger *slog.Logger
}

// NewPublisher creates a Publisher for the data directory at dir.
func NewPublisher(client *Client, dir string, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, dir: dir, logger: logger}
}

// Run publishes immediately and then repeats every interval until ctx is
// cancelled.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	p.PublishOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping")
			return
		case <-ticker.C:
			p.PublishOnce(ctx)
		}
	}
}

// PublishOnce uploads every top-level *.json file in the data directory. A
// failed upload is logged and does not stop the remaining files.
func (p *Publisher) PublishOnce(ctx context.Context) {
	names, err := filepath.Glob(filepath.Join(p.dir, "*.json"))
	if err != nil {
		p.logger.Error("glob data dir", "error", err)
		return
	}

	published := 0
	for _, path := range names {
		data, err := os.ReadFile(path)
		if err != nil {
			p.logger.Warn("read file", "path", path, "error", err)
			continue
		}
		name := filepath.Base(path)
		if err := p.client.PutJSON(ctx, name, data); err != nil {
			p.logger.Error("publish", "file", name, "error", err)
			continue
		}
		published++
	}

	if published > 0 {
		p.logger.Info("published data files", "count", published)
	}
}
