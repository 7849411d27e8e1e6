package hierarchy

import (
	"context"
	"errors"
	"sync"

	"github.com/starford/lens/internal/models"
)

// ErrSuperseded is returned by View.Load when a newer load started before
// this one finished. The stale result is discarded.
var ErrSuperseded = errors.New("hierarchy: load superseded")

// FetchFunc retrieves the document list for one load.
type FetchFunc func(ctx context.Context) ([]models.DocumentSummary, error)

// View owns one forest and its expansion state. The latest Load wins: an
// older load still in flight is cancelled and its result never installed.
type View struct {
	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	forest   []*TreeNode
	expanded ExpansionSet
}

// Load fetches a fresh document list, rebuilds the forest and resets the
// expansion set to its default.
func (v *View) Load(ctx context.Context, fetch FetchFunc) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.cancel != nil {
		v.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()
	defer cancel()

	docs, err := fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return ErrSuperseded
	}
	v.cancel = nil
	if err != nil {
		return err
	}
	forest := BuildTree(docs)
	v.forest = forest
	v.expanded = DefaultExpanded(forest)
	return nil
}

// Forest returns the installed forest.
func (v *View) Forest() []*TreeNode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.forest
}

// Expanded returns the current expansion set.
func (v *View) Expanded() ExpansionSet {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded
}

// Toggle flips one node's expansion.
func (v *View) Toggle(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded = v.expanded.Toggle(id)
}

// ExpandAll expands every node that has children.
func (v *View) ExpandAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded = ExpandAll(v.forest)
}

// CollapseAll collapses every node.
func (v *View) CollapseAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded = CollapseAll()
}

// Rows returns the visible rows for the current state.
func (v *View) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Visible(v.forest, v.expanded)
}
