package docservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lens/internal/apperr"
	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/parser"
)

// GitHub project defaults.
const (
	DefaultBranch   = "main"
	DefaultRepoPath = "sdlc-studio"
)

// ProjectInput registers a new project.
type ProjectInput struct {
	Name        string `json:"name"`
	SourceType  string `json:"source_type"`
	SDLCPath    string `json:"sdlc_path"`
	RepoURL     string `json:"repo_url"`
	RepoBranch  string `json:"repo_branch"`
	RepoPath    string `json:"repo_path"`
	AccessToken string `json:"access_token"`
}

// Validate checks field shapes; filesystem checks happen in CreateProject.
func (in *ProjectInput) Validate() error {
	if in.SourceType == "" {
		in.SourceType = models.SourceLocal
	}
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.SourceType, validation.In(models.SourceLocal, models.SourceGitHub)),
		validation.Field(&in.RepoURL, validation.When(in.SourceType == models.SourceGitHub, validation.Required)),
	)
}

// ProjectUpdate changes the non-nil fields of a project.
type ProjectUpdate struct {
	Name        *string `json:"name"`
	SourceType  *string `json:"source_type"`
	SDLCPath    *string `json:"sdlc_path"`
	RepoURL     *string `json:"repo_url"`
	RepoBranch  *string `json:"repo_branch"`
	RepoPath    *string `json:"repo_path"`
	AccessToken *string `json:"access_token"`
}

// Validate requires at least one field and checks the set ones.
func (u *ProjectUpdate) Validate() error {
	if u.Name == nil && u.SourceType == nil && u.SDLCPath == nil && u.RepoURL == nil &&
		u.RepoBranch == nil && u.RepoPath == nil && u.AccessToken == nil {
		return errors.New("at least one field must be provided")
	}
	return validation.ValidateStruct(u,
		validation.Field(&u.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&u.SDLCPath, validation.NilOrNotEmpty),
		validation.Field(&u.SourceType, validation.NilOrNotEmpty, validation.In(models.SourceLocal, models.SourceGitHub)),
	)
}

// ProjectView is the external representation of a project. The access
// token is never returned, only its masked form.
type ProjectView struct {
	Slug          string     `json:"slug"`
	Name          string     `json:"name"`
	SourceType    string     `json:"source_type"`
	SDLCPath      *string    `json:"sdlc_path"`
	RepoURL       *string    `json:"repo_url"`
	RepoBranch    *string    `json:"repo_branch"`
	RepoPath      *string    `json:"repo_path"`
	MaskedToken   *string    `json:"masked_token"`
	SyncStatus    string     `json:"sync_status"`
	SyncError     *string    `json:"sync_error"`
	LastSyncedAt  *time.Time `json:"last_synced_at"`
	DocumentCount int        `json:"document_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MaskToken hides all but the last four characters of a token.
func MaskToken(token string) *string {
	if token == "" {
		return nil
	}
	masked := "****"
	if len(token) > 4 {
		masked += token[len(token)-4:]
	}
	return &masked
}

func (s *Service) view(ctx context.Context, p *models.Project) (*ProjectView, error) {
	n, err := s.db.CountDocuments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectView{
		Slug:          p.Slug,
		Name:          p.Name,
		SourceType:    p.SourceType,
		SDLCPath:      models.Ptr(p.SDLCPath),
		RepoURL:       models.Ptr(p.RepoURL),
		RepoBranch:    models.Ptr(p.RepoBranch),
		RepoPath:      models.Ptr(p.RepoPath),
		MaskedToken:   MaskToken(p.AccessToken),
		SyncStatus:    p.SyncStatus,
		SyncError:     p.SyncError,
		LastSyncedAt:  p.LastSyncedAt,
		DocumentCount: n,
		CreatedAt:     p.CreatedAt,
	}, nil
}

// resolveDir returns the absolute, symlink-free form of a local project
// directory.
func resolveDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("sdlc_path is required for local projects: %w", apperr.ErrPathNotFound)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", dir, apperr.ErrPathNotFound)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s: %w", dir, apperr.ErrPathNotFound)
	}
	return abs, nil
}

// CreateProject registers a project. The slug is derived from the name.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*ProjectView, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	slug := parser.Slug(in.Name)
	if slug == "" {
		return nil, fmt.Errorf("%w: project name produces an empty slug", apperr.ErrValidation)
	}

	p := &models.Project{
		Slug:        slug,
		Name:        in.Name,
		SourceType:  in.SourceType,
		RepoURL:     in.RepoURL,
		RepoBranch:  in.RepoBranch,
		RepoPath:    in.RepoPath,
		AccessToken: in.AccessToken,
	}
	switch p.SourceType {
	case models.SourceLocal:
		dir, err := resolveDir(in.SDLCPath)
		if err != nil {
			return nil, err
		}
		p.SDLCPath = dir
	case models.SourceGitHub:
		if p.RepoBranch == "" {
			p.RepoBranch = DefaultBranch
		}
		if p.RepoPath == "" {
			p.RepoPath = DefaultRepoPath
		}
	}

	if err := s.db.CreateProject(ctx, p); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return nil, fmt.Errorf("project slug %q already exists: %w", slug, apperr.ErrConflict)
		}
		return nil, err
	}
	s.projectsChanged()
	return s.view(ctx, p)
}

// ListProjects returns every project in registration order.
func (s *Service) ListProjects(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.db.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectView, 0, len(projects))
	for i := range projects {
		v, err := s.view(ctx, &projects[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, slug string) (*ProjectView, error) {
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p)
}

// UpdateProject applies u. A new sdlc_path is validated only when the
// effective source type is local.
func (s *Service) UpdateProject(ctx context.Context, slug string, u ProjectUpdate) (*ProjectView, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}

	if u.SourceType != nil {
		p.SourceType = *u.SourceType
	}
	if u.SDLCPath != nil {
		if p.SourceType == models.SourceLocal {
			dir, err := resolveDir(*u.SDLCPath)
			if err != nil {
				return nil, err
			}
			p.SDLCPath = dir
		} else {
			p.SDLCPath = *u.SDLCPath
		}
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.RepoURL != nil {
		p.RepoURL = *u.RepoURL
	}
	if u.RepoBranch != nil {
		p.RepoBranch = *u.RepoBranch
	}
	if u.RepoPath != nil {
		p.RepoPath = *u.RepoPath
	}
	if u.AccessToken != nil {
		p.AccessToken = *u.AccessToken
	}

	if err := s.db.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	s.projectsChanged()
	return s.view(ctx, p)
}

// DeleteProject removes a project and its documents.
func (s *Service) DeleteProject(ctx context.Context, slug string) error {
	if err := s.db.DeleteProject(ctx, slug); err != nil {
		return err
	}
	s.projectsChanged()
	return nil
}
