package hierarchy

import (
	"encoding/json"
	"slices"
)

// ExpansionSet is an immutable set of expanded document ids. The zero value
// is the empty set. Update methods return a new set.
type ExpansionSet struct {
	ids map[string]struct{}
}

// NewExpansionSet returns a set holding ids.
func NewExpansionSet(ids ...string) ExpansionSet {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return ExpansionSet{ids: m}
}

// Has reports whether id is expanded.
func (s ExpansionSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of expanded ids.
func (s ExpansionSet) Len() int { return len(s.ids) }

// IDs returns the expanded ids in ascending order.
func (s ExpansionSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Toggle returns a copy of s with id's membership flipped. Descendants keep
// their own state.
func (s ExpansionSet) Toggle(id string) ExpansionSet {
	m := make(map[string]struct{}, len(s.ids)+1)
	for k := range s.ids {
		m[k] = struct{}{}
	}
	if _, ok := m[id]; ok {
		delete(m, id)
	} else {
		m[id] = struct{}{}
	}
	return ExpansionSet{ids: m}
}

// MarshalJSON encodes the set as a sorted id array.
func (s ExpansionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an id array.
func (s *ExpansionSet) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewExpansionSet(ids...)
	return nil
}

// DefaultExpanded expands roots with children and, beneath them, the
// second-level nodes that have children. Deeper levels start collapsed.
func DefaultExpanded(forest []*TreeNode) ExpansionSet {
	var ids []string
	for _, root := range forest {
		if !root.HasChildren() {
			continue
		}
		ids = append(ids, root.DocID)
		for _, child := range root.Children {
			if child.HasChildren() {
				ids = append(ids, child.DocID)
			}
		}
	}
	return NewExpansionSet(ids...)
}

// ExpandAll expands every node with children at any depth.
func ExpandAll(forest []*TreeNode) ExpansionSet {
	var ids []string
	walk(forest, func(n *TreeNode) {
		if n.HasChildren() {
			ids = append(ids, n.DocID)
		}
	})
	return NewExpansionSet(ids...)
}

// CollapseAll returns the empty set.
func CollapseAll() ExpansionSet { return NewExpansionSet() }

// Row is one rendered line of the tree.
type Row struct {
	Node        *TreeNode `json:"node"`
	Depth       int       `json:"depth"`
	HasChildren bool      `json:"has_children"`
	Expanded    bool      `json:"expanded"`
}

// Visible flattens the forest in display order, descending only into
// expanded nodes.
func Visible(forest []*TreeNode, expanded ExpansionSet) []Row {
	rows := make([]Row, 0, len(forest))
	var visit func(nodes []*TreeNode, depth int)
	visit = func(nodes []*TreeNode, depth int) {
		for _, n := range nodes {
			open := expanded.Has(n.DocID)
			rows = append(rows, Row{
				Node:        n,
				Depth:       depth,
				HasChildren: n.HasChildren(),
				Expanded:    open,
			})
			if open {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(forest, 0)
	return rows
}
