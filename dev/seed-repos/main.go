// Command seed-repos creates a handful of local git repositories with
// version tags for exercising the local scan against real data.
//
// Usage:
//
//	go run ./dev/seed-repos -dir /tmp/repos -tag v0.75.5
//
// Then:
//
//	tag-scanner scan local -base-path /tmp/repos -tag 0.75.5
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var seedRepos = []struct {
	name   string
	tags   []string
	author string
	email  string
}{
	{"api-gateway", []string{"v0.74.0", "v0.75.5"}, "Felipe Martin", "felipe@example.com"},
	{"billing-service", []string{"0.75.5"}, "Dana Whitcombe", "dana@example.com"},
	{"web-frontend", []string{"v0.75.1", "v0.75.9"}, "Priya Nair", "priya@example.com"},
	{"legacy-worker", []string{"v0.60.2"}, "Sam Okafor", "sam@example.com"},
}

func main() {
	dir := flag.String("dir", "", "directory to create the repositories under (required)")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Required: -dir")
		flag.PrintDefaults()
		os.Exit(1)
	}

	for _, seed := range seedRepos {
		path := filepath.Join(*dir, seed.name)
		if err := createRepo(path, seed.tags, seed.author, seed.email); err != nil {
			log.Fatalf("create %s: %v", seed.name, err)
		}
		fmt.Printf("Created %s with tags %v\n", path, seed.tags)
	}
}

func createRepo(path string, tags []string, author, email string) error {
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}

	sig := &object.Signature{Name: author, Email: email, When: time.Now()}

	for i, tag := range tags {
		file := filepath.Join(path, "VERSION")
		if err := os.WriteFile(file, []byte(tag+"\n"), 0o644); err != nil {
			return err
		}
		if _, err := wt.Add("VERSION"); err != nil {
			return err
		}

		hash, err := wt.Commit(fmt.Sprintf("Release %s", tag), &git.CommitOptions{Author: sig})
		if err != nil {
			return err
		}

		// Alternate lightweight and annotated tags.
		var opts *git.CreateTagOptions
		if i%2 == 1 {
			opts = &git.CreateTagOptions{Tagger: sig, Message: "Release " + tag}
		}
		if _, err := repo.CreateTag(tag, hash, opts); err != nil {
			return err
		}
	}

	return nil
}
