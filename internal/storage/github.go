package storage

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

var (
	ErrGitHub       = errors.New("github: request failed")
	ErrRepoNotFound = errors.New("github: repository not found")
	ErrAuth         = errors.New("github: authentication failed")
	ErrRateLimit    = errors.New("github: rate limit exceeded")
)

// GitHub collects documents from one directory of a GitHub repository by
// downloading the branch tarball in a single request.
type GitHub struct {
	RepoURL string
	Branch  string
	Path    string // directory inside the repository; empty for the root
	Token   string
	BaseURL string
	Client  *http.Client
}

var _ Collector = (*GitHub)(nil)

// ParseGitHubURL extracts owner and repository from URLs such as
// https://github.com/owner/repo(.git)(/).
func ParseGitHubURL(raw string) (owner, repo string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("github: invalid URL: %s", raw)
	}
	p := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	parts := strings.Split(p, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github: cannot extract owner/repo from URL: %s", raw)
	}
	return parts[0], parts[1], nil
}

// Collect downloads and unpacks the tarball, keeping .md files below Path.
func (g *GitHub) Collect(ctx context.Context) (*Collection, error) {
	owner, repo, err := ParseGitHubURL(g.RepoURL)
	if err != nil {
		return nil, err
	}
	base := g.BaseURL
	if base == "" {
		base = DefaultGitHubAPI
	}
	branch := g.Branch
	if branch == "" {
		branch = "main"
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/tarball/%s",
		strings.TrimRight(base, "/"), url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGitHub, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}
	return extractMarkdown(resp.Body, strings.Trim(g.Path, "/"))
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w (HTTP %d)", ErrRepoNotFound, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: check your access token", ErrAuth)
	case resp.StatusCode == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return fmt.Errorf("%w: use an access token for higher limits", ErrRateLimit)
		}
		return fmt.Errorf("%w: access denied (HTTP 403), repository may be private", ErrAuth)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", ErrGitHub, resp.StatusCode)
	}
	return nil
}

// extractMarkdown reads a gzipped GitHub tarball. Entries live under a
// top-level "owner-repo-sha/" directory which is stripped.
func extractMarkdown(r io.Reader, repoPath string) (*Collection, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open tarball: %v", ErrGitHub, err)
	}
	defer gz.Close()

	prefix := ""
	if repoPath != "" {
		prefix = repoPath + "/"
	}

	out := newCollection()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read tarball: %v", ErrGitHub, err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".md") {
			continue
		}
		_, inner, ok := strings.Cut(hdr.Name, "/")
		if !ok || !strings.HasPrefix(inner, prefix) {
			continue
		}
		rel := strings.TrimPrefix(inner, prefix)
		if rel == "" || path.Base(rel) == IndexFile {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			out.Errors++
			continue
		}
		out.add(rel, data)
	}
	return out, nil
}
