// Package hierarchy rebuilds the document forest shown by the tree view and
// tracks which of its nodes are expanded.
package hierarchy

import (
	"slices"
	"strings"

	"github.com/starford/lens/internal/models"
)

// TreeNode is one document in the forest. Children are owned exclusively by
// their parent.
type TreeNode struct {
	DocID    string      `json:"doc_id"`
	Type     string      `json:"type"`
	Title    string      `json:"title"`
	Status   *string     `json:"status"`
	Children []*TreeNode `json:"children"`
}

// HasChildren reports whether the node has at least one child.
func (n *TreeNode) HasChildren() bool { return len(n.Children) > 0 }

var typePriority = map[string]int{
	models.TypePRD:      0,
	models.TypeTRD:      1,
	models.TypeTSD:      2,
	models.TypeEpic:     3,
	models.TypeStory:    4,
	models.TypePlan:     5,
	models.TypeTestSpec: 6,
	models.TypeBug:      7,
}

const unrankedPriority = 99

// TypePriority returns the display rank of a document type. Unknown types
// share the lowest rank.
func TypePriority(docType string) int {
	if p, ok := typePriority[docType]; ok {
		return p
	}
	return unrankedPriority
}

// BuildTree turns a flat document list into an ordered forest.
//
// A document nests under the first document (in input order) whose id starts
// with its story reference, or failing that its epic reference. The epic
// reference is ignored for epics. Documents whose reference resolves to
// nothing become roots. Every input document appears exactly once.
func BuildTree(docs []models.DocumentSummary) []*TreeNode {
	nodes := make([]*TreeNode, len(docs))
	for i, d := range docs {
		nodes[i] = &TreeNode{
			DocID:    d.DocID,
			Type:     d.Type,
			Title:    d.Title,
			Status:   d.Status,
			Children: []*TreeNode{},
		}
	}

	// parent[i] is the index of the node docs[i] was placed under, or -1.
	parent := make([]int, len(docs))
	for i := range parent {
		parent[i] = -1
	}

	for i, d := range docs {
		ref := parentRef(d)
		if ref == "" {
			continue
		}
		p := findByPrefix(nodes, ref, i)
		if p < 0 || isAncestor(parent, i, p) {
			continue
		}
		parent[i] = p
		nodes[p].Children = append(nodes[p].Children, nodes[i])
	}

	roots := make([]*TreeNode, 0, len(nodes))
	for i, n := range nodes {
		if parent[i] < 0 {
			roots = append(roots, n)
		}
	}
	sortForest(roots)
	return roots
}

func parentRef(d models.DocumentSummary) string {
	if ref := d.StoryRef(); ref != "" {
		return ref
	}
	if d.Type != models.TypeEpic {
		return d.EpicRef()
	}
	return ""
}

// findByPrefix returns the index of the first node whose id starts with ref,
// skipping the node at self.
func findByPrefix(nodes []*TreeNode, ref string, self int) int {
	for i, n := range nodes {
		if i != self && strings.HasPrefix(n.DocID, ref) {
			return i
		}
	}
	return -1
}

// isAncestor reports whether node is already on candidate's parent chain,
// in which case placing node under candidate would close a cycle.
func isAncestor(parent []int, node, candidate int) bool {
	for p := candidate; p >= 0; p = parent[p] {
		if p == node {
			return true
		}
	}
	return false
}

func compareNodes(a, b *TreeNode) int {
	if pa, pb := TypePriority(a.Type), TypePriority(b.Type); pa != pb {
		return pa - pb
	}
	return strings.Compare(a.DocID, b.DocID)
}

func sortForest(nodes []*TreeNode) {
	slices.SortStableFunc(nodes, compareNodes)
	for _, n := range nodes {
		sortForest(n.Children)
	}
}

// Count returns the number of nodes in the forest at every depth.
func Count(forest []*TreeNode) int {
	n := 0
	walk(forest, func(*TreeNode) { n++ })
	return n
}

func walk(nodes []*TreeNode, fn func(*TreeNode)) {
	for _, n := range nodes {
		fn(n)
		walk(n.Children, fn)
	}
}
