package storage

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: "owner-repo-abc123/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		hdr := &tar.Header{Name: "owner-repo-abc123/" + name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
		wantErr     bool
	}{
		{"https://github.com/owner/repo", "owner", "repo", false},
		{"https://github.com/owner/repo.git", "owner", "repo", false},
		{"https://github.com/owner/repo/", "owner", "repo", false},
		{"https://github.com/owner", "", "", true},
		{"not a url", "", "", true},
	}
	for _, tt := range tests {
		owner, repo, err := ParseGitHubURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGitHubURL(%q) err = %v", tt.in, err)
			continue
		}
		if owner != tt.owner || repo != tt.repo {
			t.Errorf("ParseGitHubURL(%q) = %s/%s", tt.in, owner, repo)
		}
	}
}

func TestGitHubCollect(t *testing.T) {
	body := tarball(t, map[string]string{
		"README.md":                         "# root readme",
		"sdlc-studio/prd.md":                "# PRD",
		"sdlc-studio/epics/EP0001-x.md":     "# EP0001",
		"sdlc-studio/epics/_index.md":       "index",
		"sdlc-studio/epics/diagram.png":     "png",
		"sdlc-studio-other/stories/US01.md": "wrong dir",
	})

	var gotPath, gotAuth, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("X-GitHub-Api-Version")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	g := &GitHub{
		RepoURL: "https://github.com/owner/repo",
		Branch:  "dev",
		Path:    "sdlc-studio",
		Token:   "ghp_secret",
		BaseURL: srv.URL,
	}
	got, err := g.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if gotPath != "/repos/owner/repo/tarball/dev" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer ghp_secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotVersion != "2022-11-28" {
		t.Errorf("api version = %q", gotVersion)
	}
	g2 := paths(got)
	if len(g2) != 2 || g2[0] != "epics/EP0001-x.md" || g2[1] != "prd.md" {
		t.Errorf("paths = %v", g2)
	}
	if string(got.Files["prd.md"].Data) != "# PRD" {
		t.Errorf("prd = %q", got.Files["prd.md"].Data)
	}
}

func TestGitHubCollect_NoTokenNoAuthHeader(t *testing.T) {
	body := tarball(t, map[string]string{"prd.md": "# PRD"})
	var hasAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	g := &GitHub{RepoURL: "https://github.com/o/r", BaseURL: srv.URL}
	got, err := g.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if hasAuth {
		t.Error("unexpected Authorization header")
	}
	if _, ok := got.Files["prd.md"]; !ok {
		t.Errorf("files = %v", paths(got))
	}
}

func TestGitHubCollect_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		remaining string
		want      error
	}{
		{"not found", http.StatusNotFound, "", ErrRepoNotFound},
		{"unauthorized", http.StatusUnauthorized, "", ErrAuth},
		{"rate limited", http.StatusForbidden, "0", ErrRateLimit},
		{"forbidden", http.StatusForbidden, "42", ErrAuth},
		{"server error", http.StatusBadGateway, "", ErrGitHub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.remaining != "" {
					w.Header().Set("X-RateLimit-Remaining", tt.remaining)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			g := &GitHub{RepoURL: "https://github.com/o/r", BaseURL: srv.URL}
			_, err := g.Collect(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGitHubCollect_BadTarball(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not gzip"))
	}))
	defer srv.Close()

	g := &GitHub{RepoURL: "https://github.com/o/r", BaseURL: srv.URL}
	if _, err := g.Collect(context.Background()); !errors.Is(err, ErrGitHub) {
		t.Errorf("err = %v", err)
	}
}
