package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lens/internal/models"
)

func doc(id, typ string) models.DocumentSummary {
	return models.DocumentSummary{DocID: id, Type: typ, Title: id}
}

func withEpic(d models.DocumentSummary, epic string) models.DocumentSummary {
	d.Epic = models.Ptr(epic)
	return d
}

func withStory(d models.DocumentSummary, story string) models.DocumentSummary {
	d.Story = models.Ptr(story)
	return d
}

func ids(nodes []*TreeNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.DocID
	}
	return out
}

func find(forest []*TreeNode, id string) *TreeNode {
	var hit *TreeNode
	walk(forest, func(n *TreeNode) {
		if hit == nil && n.DocID == id {
			hit = n
		}
	})
	return hit
}

// hierarchyDocs mirrors a small but complete project.
func hierarchyDocs() []models.DocumentSummary {
	return []models.DocumentSummary{
		doc("prd", "prd"),
		doc("trd", "trd"),
		doc("EP0001-project-mgmt", "epic"),
		doc("EP0002-sync", "epic"),
		withEpic(doc("US0001-register", "story"), "EP0001"),
		withEpic(doc("US0002-list", "story"), "EP0001"),
		withEpic(withStory(doc("PL0001-register-plan", "plan"), "US0001"), "EP0001"),
		withStory(doc("TS0001-register-tests", "test-spec"), "US0001"),
		withEpic(doc("US0003-sync-story", "story"), "EP0002"),
	}
}

func TestBuildTree_Empty(t *testing.T) {
	forest := BuildTree(nil)
	assert.Empty(t, forest)
	assert.NotNil(t, forest)
}

func TestBuildTree_EndToEnd(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("prd", "prd"),
		doc("EP0001-x", "epic"),
		withEpic(doc("US0001-y", "story"), "EP0001"),
		withStory(doc("PL0001-z", "plan"), "US0001"),
	})

	require.Equal(t, []string{"prd", "EP0001-x"}, ids(forest))
	require.Equal(t, []string{"US0001-y"}, ids(forest[1].Children))
	require.Equal(t, []string{"PL0001-z"}, ids(forest[1].Children[0].Children))
	assert.Empty(t, forest[0].Children)
}

func TestBuildTree_FullHierarchy(t *testing.T) {
	forest := BuildTree(hierarchyDocs())

	assert.Equal(t, []string{"prd", "trd", "EP0001-project-mgmt", "EP0002-sync"}, ids(forest))

	ep1 := find(forest, "EP0001-project-mgmt")
	require.NotNil(t, ep1)
	assert.Equal(t, []string{"US0001-register", "US0002-list"}, ids(ep1.Children))

	us1 := find(forest, "US0001-register")
	require.NotNil(t, us1)
	assert.Equal(t, []string{"PL0001-register-plan", "TS0001-register-tests"}, ids(us1.Children))

	ep2 := find(forest, "EP0002-sync")
	require.NotNil(t, ep2)
	assert.Equal(t, []string{"US0003-sync-story"}, ids(ep2.Children))
}

func TestBuildTree_StoryRefWinsOverEpic(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("EP0001-a", "epic"),
		withEpic(doc("US0001-b", "story"), "EP0001"),
		withEpic(withStory(doc("PL0001-c", "plan"), "US0001"), "EP0001"),
	})

	ep := find(forest, "EP0001-a")
	assert.Equal(t, []string{"US0001-b"}, ids(ep.Children))
	assert.Equal(t, []string{"PL0001-c"}, ids(find(forest, "US0001-b").Children))
}

func TestBuildTree_EpicNeverNestsUnderEpicRef(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("EP0001-parent", "epic"),
		withEpic(doc("EP0002-child", "epic"), "EP0001"),
	})

	assert.Equal(t, []string{"EP0001-parent", "EP0002-child"}, ids(forest))
	assert.Empty(t, forest[0].Children)
}

func TestBuildTree_EpicWithStoryRefNests(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("US0001-s", "story"),
		withStory(doc("EP0009-e", "epic"), "US0001"),
	})

	require.Len(t, forest, 1)
	assert.Equal(t, []string{"EP0009-e"}, ids(forest[0].Children))
}

func TestBuildTree_OrphanBecomesRoot(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("EP0001-a", "epic"),
		withStory(doc("PL0099-orphan", "plan"), "US9999"),
	})

	assert.Contains(t, ids(forest), "PL0099-orphan")
	assert.Equal(t, 2, Count(forest))
}

func TestBuildTree_FirstPrefixMatchWins(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("US0001-second", "story"),
		doc("US0001-first", "story"),
		withStory(doc("PL0001-p", "plan"), "US0001"),
	})

	// Input order decides the match, not sort order.
	assert.Equal(t, []string{"PL0001-p"}, ids(find(forest, "US0001-second").Children))
	assert.Empty(t, find(forest, "US0001-first").Children)
}

func TestBuildTree_SortByTypeThenID(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("EP0002-b", "epic"),
		doc("zz-notes", "other"),
		doc("EP0001-a", "epic"),
		doc("BG0001-bug", "bug"),
		doc("aa-notes", "workflow"),
		doc("prd", "prd"),
		doc("tsd", "tsd"),
		doc("trd", "trd"),
	})

	assert.Equal(t, []string{
		"prd", "trd", "tsd", "EP0001-a", "EP0002-b", "BG0001-bug", "aa-notes", "zz-notes",
	}, ids(forest))
}

func TestBuildTree_SortIsRecursive(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("EP0001-a", "epic"),
		withEpic(doc("US0003-c", "story"), "EP0001"),
		withEpic(doc("US0001-a", "story"), "EP0001"),
		withStory(doc("TS0001-t", "test-spec"), "US0001"),
		withStory(doc("PL0002-p", "plan"), "US0001"),
		withStory(doc("PL0001-p", "plan"), "US0001"),
		withEpic(doc("BG0001-b", "bug"), "EP0001"),
	})

	ep := find(forest, "EP0001-a")
	assert.Equal(t, []string{"US0001-a", "US0003-c", "BG0001-b"}, ids(ep.Children))
	assert.Equal(t, []string{"PL0001-p", "PL0002-p", "TS0001-t"}, ids(find(forest, "US0001-a").Children))
}

func TestBuildTree_SelfReferenceIsRoot(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		withStory(doc("US0001-self", "story"), "US0001"),
	})

	require.Len(t, forest, 1)
	assert.Empty(t, forest[0].Children)
}

func TestBuildTree_MutualReferenceDoesNotCycle(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		withStory(doc("US0001-a", "story"), "US0002"),
		withStory(doc("US0002-b", "story"), "US0001"),
	})

	assert.Equal(t, 2, Count(forest))
	assert.Equal(t, []string{"US0002-b"}, ids(forest))
	assert.Equal(t, []string{"US0001-a"}, ids(forest[0].Children))
}

func TestBuildTree_DuplicateIDsKeepBothNodes(t *testing.T) {
	forest := BuildTree([]models.DocumentSummary{
		doc("US0001-dup", "story"),
		doc("US0001-dup", "story"),
		withStory(doc("PL0001-p", "plan"), "US0001"),
	})

	assert.Equal(t, 3, Count(forest))
	assert.Len(t, forest, 2)
}

func TestBuildTree_ConservesNodeCount(t *testing.T) {
	inputs := [][]models.DocumentSummary{
		nil,
		hierarchyDocs(),
		{
			withStory(doc("a", "plan"), "b"),
			withStory(doc("b", "plan"), "c"),
			withStory(doc("c", "plan"), "a"),
			withEpic(doc("d", "story"), ""),
		},
	}
	for _, in := range inputs {
		assert.Equal(t, len(in), Count(BuildTree(in)))
	}
}

func TestTypePriority(t *testing.T) {
	assert.Less(t, TypePriority("prd"), TypePriority("epic"))
	assert.Less(t, TypePriority("bug"), TypePriority("workflow"))
	assert.Equal(t, TypePriority("workflow"), TypePriority("personas"))
}
