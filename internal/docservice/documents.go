package docservice

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lens/internal/apperr"
	"github.com/starford/lens/internal/hierarchy"
	"github.com/starford/lens/internal/index"
	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/parser"
	"github.com/starford/lens/internal/render"
)

// Tree expansion modes.
const (
	ExpandDefault = "default"
	ExpandAll     = "all"
	ExpandNone    = "none"
)

// MaxQueryLength bounds search queries.
const MaxQueryLength = 500

// DocumentPage is one page of a document listing.
type DocumentPage struct {
	Items   []models.DocumentSummary `json:"items"`
	Total   int                      `json:"total"`
	Page    int                      `json:"page"`
	PerPage int                      `json:"per_page"`
	Pages   int                      `json:"pages"`
}

// DocumentDetail is a full document, optionally with rendered HTML.
type DocumentDetail struct {
	*models.Document
	HTML    string           `json:"html,omitempty"`
	Outline []render.Heading `json:"outline,omitempty"`
}

// RelatedItem is a compact reference to a related document.
type RelatedItem struct {
	DocID  string  `json:"doc_id"`
	Type   string  `json:"type"`
	Title  string  `json:"title"`
	Status *string `json:"status"`
}

// Related lists a document's ancestors, nearest first, and its direct
// children.
type Related struct {
	DocID    string        `json:"doc_id"`
	Type     string        `json:"type"`
	Title    string        `json:"title"`
	Parents  []RelatedItem `json:"parents"`
	Children []RelatedItem `json:"children"`
}

// Tree is the hierarchy of a project with its expansion state.
type Tree struct {
	Nodes    []*hierarchy.TreeNode  `json:"nodes"`
	Expanded hierarchy.ExpansionSet `json:"expanded"`
	Total    int                    `json:"total"`
	Rows     []hierarchy.Row        `json:"-"`
}

// SearchPage is one page of search results.
type SearchPage struct {
	Items   []index.SearchResult `json:"items"`
	Total   int                  `json:"total"`
	Query   string               `json:"query"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
}

func validateListQuery(q index.ListQuery) error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Sort, validation.In("title", "type", "status", "updated_at")),
		validation.Field(&q.Order, validation.In("asc", "desc")),
		validation.Field(&q.Page, validation.Min(0)),
		validation.Field(&q.PerPage, validation.Min(0)),
	)
}

// ListDocuments returns a filtered, sorted page of a project's documents.
func (s *Service) ListDocuments(ctx context.Context, slug string, q index.ListQuery) (*DocumentPage, error) {
	if err := validateListQuery(q); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}
	q = q.Normalize()
	items, total, err := s.db.ListDocuments(ctx, p.ID, q)
	if err != nil {
		return nil, err
	}
	return &DocumentPage{
		Items:   items,
		Total:   total,
		Page:    q.Page,
		PerPage: q.PerPage,
		Pages:   (total + q.PerPage - 1) / q.PerPage,
	}, nil
}

// GetDocument returns one document. With html set the body is rendered.
func (s *Service) GetDocument(ctx context.Context, slug, docType, docID string, html bool) (*DocumentDetail, error) {
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}
	d, err := s.db.GetDocument(ctx, p.ID, docType, docID)
	if err != nil {
		return nil, err
	}
	out := &DocumentDetail{Document: d}
	if html {
		out.HTML, out.Outline, err = s.renderer.HTML([]byte(d.Content))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func relatedItem(d models.DocumentSummary) RelatedItem {
	return RelatedItem{DocID: d.DocID, Type: d.Type, Title: d.Title, Status: d.Status}
}

// findByPrefix returns the first document of typ whose id starts with ref.
func findByPrefix(docs []models.DocumentSummary, typ, ref string) (models.DocumentSummary, bool) {
	for _, d := range docs {
		if d.Type == typ && strings.HasPrefix(d.DocID, ref) {
			return d, true
		}
	}
	return models.DocumentSummary{}, false
}

// RelatedDocuments resolves the parent chain (story, then its epic) and
// the children of a document. A missing parent ends the chain.
func (s *Service) RelatedDocuments(ctx context.Context, slug, docType, docID string) (*Related, error) {
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}
	d, err := s.db.GetDocument(ctx, p.ID, docType, docID)
	if err != nil {
		return nil, err
	}
	docs, err := s.db.Summaries(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	out := &Related{DocID: d.DocID, Type: d.Type, Title: d.Title, Parents: []RelatedItem{}, Children: []RelatedItem{}}

	epicRef := d.EpicRef()
	if ref := d.StoryRef(); ref != "" {
		story, ok := findByPrefix(docs, models.TypeStory, ref)
		if ok {
			out.Parents = append(out.Parents, relatedItem(story))
			epicRef = story.EpicRef()
		} else {
			epicRef = ""
		}
	}
	if epicRef != "" && d.Type != models.TypeEpic {
		if epic, ok := findByPrefix(docs, models.TypeEpic, epicRef); ok {
			out.Parents = append(out.Parents, relatedItem(epic))
		}
	}

	self := parser.Prefix(d.DocID)
	var children []models.DocumentSummary
	for _, c := range docs {
		if c.DocID == d.DocID && c.Type == d.Type {
			continue
		}
		switch {
		case c.StoryRef() == self:
			children = append(children, c)
		case c.StoryRef() == "" && c.EpicRef() == self:
			children = append(children, c)
		}
	}
	slices.SortStableFunc(children, func(a, b models.DocumentSummary) int {
		return cmp.Or(
			cmp.Compare(hierarchy.TypePriority(a.Type), hierarchy.TypePriority(b.Type)),
			strings.Compare(a.DocID, b.DocID),
		)
	})
	for _, c := range children {
		out.Children = append(out.Children, relatedItem(c))
	}
	return out, nil
}

// Tree builds the project hierarchy and applies the expansion mode.
func (s *Service) Tree(ctx context.Context, slug, mode string) (*Tree, error) {
	if mode == "" {
		mode = ExpandDefault
	}
	if err := validation.Validate(mode, validation.In(ExpandDefault, ExpandAll, ExpandNone)); err != nil {
		return nil, fmt.Errorf("%w: expand: %s", apperr.ErrValidation, err)
	}
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}

	var v hierarchy.View
	if err := v.Load(ctx, func(ctx context.Context) ([]models.DocumentSummary, error) {
		return s.db.Summaries(ctx, p.ID)
	}); err != nil {
		return nil, err
	}
	switch mode {
	case ExpandAll:
		v.ExpandAll()
	case ExpandNone:
		v.CollapseAll()
	}

	forest := v.Forest()
	return &Tree{
		Nodes:    forest,
		Expanded: v.Expanded(),
		Total:    hierarchy.Count(forest),
		Rows:     v.Rows(),
	}, nil
}

// Search runs a full-text query across projects.
func (s *Service) Search(ctx context.Context, q index.SearchQuery) (*SearchPage, error) {
	q.Query = strings.TrimSpace(q.Query)
	if err := validation.Validate(q.Query, validation.Required, validation.RuneLength(1, MaxQueryLength)); err != nil {
		return nil, fmt.Errorf("%w: q: %s", apperr.ErrValidation, err)
	}
	q = q.Normalize()
	items, total, err := s.db.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return &SearchPage{Items: items, Total: total, Query: q.Query, Page: q.Page, PerPage: q.PerPage}, nil
}
