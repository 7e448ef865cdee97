package gitsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aira-technology/tag-scanner/internal/model"
)

// GitHubConfig holds GitHub API connection settings.
type GitHubConfig struct {
	BaseURL string // e.g. https://api.github.com
	Token   string // personal access token; empty for anonymous access
	PerPage int    // page size for list calls, default 100
}

// GitHubSource implements TagSource against the GitHub REST API.
type GitHubSource struct {
	baseURL    string
	token      string
	perPage    int
	httpClient *http.Client
}

// NewGitHubSource creates a GitHub-backed tag source.
func NewGitHubSource(cfg GitHubConfig) *GitHubSource {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	return &GitHubSource{
		baseURL: strings.TrimRight(base, "/"),
		token:   cfg.Token,
		perPage: perPage,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type repoResponse struct {
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

type tagResponse struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
		Message string `json:"message"`
	} `json:"commit"`
}

// ListRepositories enumerates all repositories owned by the organization.
// It handles pagination automatically.
func (s *GitHubSource) ListRepositories(ctx context.Context, org string) ([]model.RepositoryRef, error) {
	var refs []model.RepositoryRef
	page := 1

	for {
		params := url.Values{
			"per_page": {fmt.Sprintf("%d", s.perPage)},
			"page":     {fmt.Sprintf("%d", page)},
		}
		reqURL := fmt.Sprintf("%s/orgs/%s/repos?%s", s.baseURL, url.PathEscape(org), params.Encode())
		body, err := s.doGet(ctx, reqURL)
		if err != nil {
			return nil, fmt.Errorf("list repositories for %s: %w", org, err)
		}

		var repos []repoResponse
		if err := json.Unmarshal(body, &repos); err != nil {
			return nil, fmt.Errorf("decode repository list: %w", err)
		}

		for _, r := range repos {
			if r.Name == "" {
				continue
			}
			refs = append(refs, model.RepositoryRef{
				Name:         r.Name,
				URL:          r.HTMLURL,
				Organization: org,
			})
		}

		if len(repos) < s.perPage {
			break
		}
		page++
	}

	return refs, nil
}

// ListTags returns the repository's tags with their commit SHAs. A 404 means
// the repository has no reachable tags and yields an empty result.
func (s *GitHubSource) ListTags(ctx context.Context, ref model.RepositoryRef) ([]model.TagRef, error) {
	var tags []model.TagRef
	page := 1

	for {
		params := url.Values{
			"per_page": {fmt.Sprintf("%d", s.perPage)},
			"page":     {fmt.Sprintf("%d", page)},
		}
		reqURL := fmt.Sprintf("%s/repos/%s/%s/tags?%s",
			s.baseURL, url.PathEscape(ref.Organization), url.PathEscape(ref.Name), params.Encode())
		body, err := s.doGet(ctx, reqURL)
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list tags for %s: %w", ref.Name, err)
		}

		var batch []tagResponse
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("decode tag list for %s: %w", ref.Name, err)
		}

		for _, t := range batch {
			if t.Name == "" {
				continue
			}
			tags = append(tags, model.TagRef{Name: t.Name, CommitID: t.Commit.SHA})
		}

		if len(batch) < s.perPage {
			break
		}
		page++
	}

	return tags, nil
}

// CommitInfo looks up the commit behind a matched tag.
func (s *GitHubSource) CommitInfo(ctx context.Context, ref model.RepositoryRef, commitID string) (*model.CommitInfo, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/commits/%s",
		s.baseURL, url.PathEscape(ref.Organization), url.PathEscape(ref.Name), url.PathEscape(commitID))
	body, err := s.doGet(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("commit %s in %s: %w", commitID, ref.Name, err)
	}

	var c commitResponse
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("decode commit %s: %w", commitID, err)
	}

	return &model.CommitInfo{
		Author:  c.Commit.Author.Name,
		Email:   c.Commit.Author.Email,
		Date:    c.Commit.Author.Date,
		Message: firstLine(c.Commit.Message),
	}, nil
}

// TagURL renders the release page URL for a tag.
func (s *GitHubSource) TagURL(ref model.RepositoryRef, tag string) string {
	return ref.URL + "/releases/tag/" + tag
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GitHub API returned %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (s *GitHubSource) doGet(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, &statusError{resp.StatusCode, truncate(body, 200)})
	default:
		return nil, &statusError{resp.StatusCode, truncate(body, 200)}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
