// Package health analyses a project's documents for completeness,
// consistency, quality and integrity problems.
package health

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/parser"
)

// Severities.
const (
	Critical = "critical"
	High     = "high"
	Medium   = "medium"
	Low      = "low"
)

// Categories.
const (
	Completeness = "completeness"
	Consistency  = "consistency"
	Quality      = "quality"
	Integrity    = "integrity"
)

// StaleAfter is the age past which a document's last sync is reported.
const StaleAfter = 30 * 24 * time.Hour

// MinContentLength is the trimmed length below which content counts as a stub.
const MinContentLength = 50

var weights = map[string]int{Critical: 15, High: 5, Medium: 2, Low: 1}

var (
	doneStatuses     = map[string]bool{"Done": true, "Complete": true}
	inactiveStatuses = map[string]bool{"Done": true, "Complete": true, "Won't Implement": true, "Superseded": true}

	projectLevelTypes  = map[string]bool{models.TypePRD: true, models.TypeTRD: true, models.TypeTSD: true, models.TypePersonas: true}
	projectLevelDocIDs = map[string]bool{"brand-guide": true, "personas": true}

	contentEpicRe = regexp.MustCompile(`\*\*Epic:?\*\*:?\s*.*?([A-Z]{2}\d{4})`)

	titleCaser = cases.Title(language.Und)
)

// AffectedDocument identifies a document a finding refers to.
type AffectedDocument struct {
	DocID string `json:"doc_id"`
	Type  string `json:"doc_type"`
	Title string `json:"title"`
}

// Finding is one rule violation.
type Finding struct {
	RuleID            string             `json:"rule_id"`
	Severity          string             `json:"severity"`
	Category          string             `json:"category"`
	Message           string             `json:"message"`
	AffectedDocuments []AffectedDocument `json:"affected_documents"`
	SuggestedFix      string             `json:"suggested_fix"`
}

// Result is the outcome of a health check over one project.
type Result struct {
	ProjectSlug    string         `json:"project_slug"`
	CheckedAt      string         `json:"checked_at"`
	TotalDocuments int            `json:"total_documents"`
	Findings       []Finding      `json:"findings"`
	Summary        map[string]int `json:"summary"`
	Score          int            `json:"score"`
}

type rule func(docs []models.Document, now time.Time) []Finding

// Rules in execution order; findings are reported in this order.
var rules = []rule{
	missingPRD,
	missingTRD,
	missingPlan,
	missingTestSpec,
	epicNoStories,

	storyNoEpic,
	planNoStory,
	testSpecNoStory,
	orphanReference,
	statusMismatch,
	staleArtefactStatus,

	missingStatus,
	missingOwner,
	missingPriority,
	missingStoryPoints,

	duplicateDocID,
	emptyContent,
	staleDocument,
}

// Check runs every rule against the full document set of a project.
// A zero now means time.Now.
func Check(docs []models.Document, projectSlug string, now time.Time) *Result {
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	findings := []Finding{}
	for _, r := range rules {
		findings = append(findings, r(docs, now)...)
	}

	summary := map[string]int{Critical: 0, High: 0, Medium: 0, Low: 0}
	for _, f := range findings {
		summary[f.Severity]++
	}
	penalty := 0
	for sev, n := range summary {
		penalty += n * weights[sev]
	}

	return &Result{
		ProjectSlug:    projectSlug,
		CheckedAt:      now.Format(time.RFC3339),
		TotalDocuments: len(docs),
		Findings:       findings,
		Summary:        summary,
		Score:          max(0, min(100, 100-penalty)),
	}
}

func affected(d models.Document) AffectedDocument {
	return AffectedDocument{DocID: d.DocID, Type: d.Type, Title: d.Title}
}

func finding(id, severity, category, msg, fix string, docs ...models.Document) Finding {
	f := Finding{
		RuleID:            id,
		Severity:          severity,
		Category:          category,
		Message:           msg,
		AffectedDocuments: make([]AffectedDocument, 0, len(docs)),
		SuggestedFix:      fix,
	}
	for _, d := range docs {
		f.AffectedDocuments = append(f.AffectedDocuments, affected(d))
	}
	return f
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isArchive reports files like "_archive.md" that are not lifecycle artefacts.
func isArchive(d models.Document) bool { return strings.HasPrefix(d.DocID, "_") }

// isReview reports documents filed under a reviews directory.
func isReview(d models.Document) bool {
	return strings.Contains(d.FilePath, "/reviews/") || strings.HasPrefix(d.FilePath, "reviews/")
}

func hasEpicInContent(d models.Document) bool {
	return d.Content != "" && contentEpicRe.MatchString(d.Content)
}

func isProjectLevel(d models.Document) bool {
	return projectLevelTypes[d.Type] || projectLevelDocIDs[d.DocID]
}

// activeStories returns non-archive stories that are still being worked on.
func activeStories(docs []models.Document) []models.Document {
	var out []models.Document
	for _, d := range docs {
		if d.Type == models.TypeStory && !isArchive(d) && !inactiveStatuses[d.StatusValue()] {
			out = append(out, d)
		}
	}
	return out
}

func ofType(docs []models.Document, typ string) []models.Document {
	var out []models.Document
	for _, d := range docs {
		if d.Type == typ {
			out = append(out, d)
		}
	}
	return out
}

func typeTitle(typ string) string { return titleCaser.String(typ) }

func missingTopLevel(docs []models.Document, typ, id, severity, name, fix string) []Finding {
	if len(docs) == 0 || len(ofType(docs, typ)) > 0 {
		return nil
	}
	return []Finding{finding(id, severity, Completeness,
		fmt.Sprintf("Project has no %s document.", name), fix)}
}

func missingPRD(docs []models.Document, _ time.Time) []Finding {
	return missingTopLevel(docs, models.TypePRD, "MISSING_PRD", Critical, "PRD",
		"Create a PRD document defining the product requirements for this project.")
}

func missingTRD(docs []models.Document, _ time.Time) []Finding {
	return missingTopLevel(docs, models.TypeTRD, "MISSING_TRD", High, "TRD",
		"Create a TRD document defining the technical requirements and architecture.")
}

// missingPlan skips inactive stories: plans have no retroactive value.
func missingPlan(docs []models.Document, _ time.Time) []Finding {
	planned := map[string]bool{}
	for _, p := range ofType(docs, models.TypePlan) {
		if ref := p.StoryRef(); ref != "" {
			planned[ref] = true
		}
	}
	var out []Finding
	for _, s := range activeStories(docs) {
		if planned[parser.Prefix(s.DocID)] {
			continue
		}
		out = append(out, finding("MISSING_PLAN", Medium, Completeness,
			fmt.Sprintf("Story '%s' has no associated plan.", s.Title),
			fmt.Sprintf("Create a plan document for story %s with acceptance criteria coverage.", s.DocID),
			s))
	}
	return out
}

// missingTestSpec also accepts an epic-scoped test-spec covering the
// story's epic.
func missingTestSpec(docs []models.Document, _ time.Time) []Finding {
	tested := map[string]bool{}
	epicSpecs := map[string]bool{}
	for _, ts := range ofType(docs, models.TypeTestSpec) {
		switch {
		case ts.StoryRef() != "":
			tested[ts.StoryRef()] = true
		case ts.EpicRef() != "":
			epicSpecs[ts.EpicRef()] = true
		}
	}
	var out []Finding
	for _, s := range activeStories(docs) {
		if tested[parser.Prefix(s.DocID)] {
			continue
		}
		if epic := s.EpicRef(); epic != "" && epicSpecs[epic] {
			continue
		}
		out = append(out, finding("MISSING_TEST_SPEC", Medium, Completeness,
			fmt.Sprintf("Story '%s' has no associated test-spec.", s.Title),
			fmt.Sprintf("Create a test-spec document for story %s with test cases covering the acceptance criteria.", s.DocID),
			s))
	}
	return out
}

func epicNoStories(docs []models.Document, _ time.Time) []Finding {
	withStories := map[string]bool{}
	for _, s := range ofType(docs, models.TypeStory) {
		if ref := s.EpicRef(); ref != "" {
			withStories[ref] = true
		}
	}
	var out []Finding
	for _, e := range ofType(docs, models.TypeEpic) {
		if isReview(e) || withStories[parser.Prefix(e.DocID)] {
			continue
		}
		out = append(out, finding("EPIC_NO_STORIES", High, Completeness,
			fmt.Sprintf("Epic '%s' has no child stories.", e.Title),
			fmt.Sprintf("Create story documents under epic %s to break down the work into implementable units.", e.DocID),
			e))
	}
	return out
}

func storyNoEpic(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, s := range ofType(docs, models.TypeStory) {
		if isArchive(s) || s.EpicRef() != "" || hasEpicInContent(s) {
			continue
		}
		out = append(out, finding("STORY_NO_EPIC", High, Consistency,
			fmt.Sprintf("Story '%s' has no epic reference.", s.Title),
			fmt.Sprintf("Add an epic reference to story %s in its frontmatter metadata.", s.DocID),
			s))
	}
	return out
}

func planNoStory(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, p := range ofType(docs, models.TypePlan) {
		if p.StoryRef() != "" {
			continue
		}
		out = append(out, finding("PLAN_NO_STORY", Medium, Consistency,
			fmt.Sprintf("Plan '%s' has no story reference.", p.Title),
			fmt.Sprintf("Add a story reference to plan %s in its frontmatter metadata.", p.DocID),
			p))
	}
	return out
}

// testSpecNoStory skips epic-scoped test-specs.
func testSpecNoStory(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, ts := range ofType(docs, models.TypeTestSpec) {
		if ts.StoryRef() != "" || ts.EpicRef() != "" || hasEpicInContent(ts) {
			continue
		}
		out = append(out, finding("TEST_SPEC_NO_STORY", Medium, Consistency,
			fmt.Sprintf("Test-spec '%s' has no story reference.", ts.Title),
			fmt.Sprintf("Add a story reference to test-spec %s in its frontmatter metadata.", ts.DocID),
			ts))
	}
	return out
}

func orphanReference(docs []models.Document, _ time.Time) []Finding {
	prefixes := make(map[string]bool, len(docs))
	for _, d := range docs {
		prefixes[parser.Prefix(d.DocID)] = true
	}
	var out []Finding
	for _, d := range docs {
		for _, ref := range []struct{ kind, id string }{{"epic", d.EpicRef()}, {"story", d.StoryRef()}} {
			if ref.id == "" || prefixes[ref.id] {
				continue
			}
			out = append(out, finding("ORPHAN_REFERENCE", Medium, Consistency,
				fmt.Sprintf("Document '%s' references non-existent %s '%s'.", d.Title, ref.kind, ref.id),
				fmt.Sprintf("Update the %s reference in %s to point to an existing %s, or create %s %s.",
					ref.kind, d.DocID, ref.kind, ref.kind, ref.id),
				d))
		}
	}
	return out
}

// statusMismatch treats Won't Implement and Superseded children as finished.
func statusMismatch(docs []models.Document, _ time.Time) []Finding {
	stories := ofType(docs, models.TypeStory)
	var out []Finding
	for _, e := range ofType(docs, models.TypeEpic) {
		if !doneStatuses[e.StatusValue()] {
			continue
		}
		pfx := parser.Prefix(e.DocID)
		var incomplete []models.Document
		for _, s := range stories {
			if s.EpicRef() == pfx && !inactiveStatuses[s.StatusValue()] {
				incomplete = append(incomplete, s)
			}
		}
		if len(incomplete) == 0 {
			continue
		}
		out = append(out, finding("STATUS_MISMATCH", Low, Consistency,
			fmt.Sprintf("Epic '%s' is marked Done but has %d incomplete child stories.", e.Title, len(incomplete)),
			fmt.Sprintf("Either update the incomplete stories under %s to Done, or change the epic status to reflect the actual state.", e.DocID),
			append([]models.Document{e}, incomplete...)...))
	}
	return out
}

// staleArtefactStatus flags open artefacts whose story is already finished.
func staleArtefactStatus(docs []models.Document, _ time.Time) []Finding {
	storyStatus := map[string]string{}
	for _, s := range ofType(docs, models.TypeStory) {
		if st := s.StatusValue(); st != "" {
			storyStatus[parser.Prefix(s.DocID)] = st
		}
	}
	var out []Finding
	for _, d := range docs {
		if d.Type == models.TypeStory || d.StoryRef() == "" || inactiveStatuses[d.StatusValue()] {
			continue
		}
		parent := storyStatus[d.StoryRef()]
		if !inactiveStatuses[parent] {
			continue
		}
		out = append(out, finding("STALE_ARTEFACT_STATUS", Low, Consistency,
			fmt.Sprintf("%s '%s' is '%s' but its story is '%s'.", typeTitle(d.Type), d.Title, d.StatusValue(), parent),
			fmt.Sprintf("Update the status of %s to Done to match its completed story.", d.DocID),
			d))
	}
	return out
}

// missingStatus skips project-level references, which have no lifecycle.
func missingStatus(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, d := range docs {
		if isProjectLevel(d) || d.StatusValue() != "" {
			continue
		}
		out = append(out, finding("MISSING_STATUS", High, Quality,
			fmt.Sprintf("Document '%s' has no status set.", d.Title),
			fmt.Sprintf("Add a status field to %s frontmatter (e.g. Draft, In Progress, Done).", d.DocID),
			d))
	}
	return out
}

func missingOwner(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, d := range docs {
		if (d.Type != models.TypeStory && d.Type != models.TypeEpic) || isArchive(d) || isReview(d) {
			continue
		}
		if str(d.Owner) != "" {
			continue
		}
		out = append(out, finding("MISSING_OWNER", Medium, Quality,
			fmt.Sprintf("%s '%s' has no owner assigned.", typeTitle(d.Type), d.Title),
			fmt.Sprintf("Assign an owner to %s in its frontmatter metadata.", d.DocID),
			d))
	}
	return out
}

func missingPriority(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, s := range activeStories(docs) {
		if str(s.Priority) != "" {
			continue
		}
		out = append(out, finding("MISSING_PRIORITY", Low, Quality,
			fmt.Sprintf("Story '%s' has no priority set.", s.Title),
			fmt.Sprintf("Add a priority field to %s frontmatter (e.g. P0, P1, P2).", s.DocID),
			s))
	}
	return out
}

func missingStoryPoints(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, s := range activeStories(docs) {
		if s.StoryPoints != nil {
			continue
		}
		out = append(out, finding("MISSING_STORY_POINTS", Low, Quality,
			fmt.Sprintf("Story '%s' has no story points.", s.Title),
			fmt.Sprintf("Add story_points to %s frontmatter to help with sprint planning.", s.DocID),
			s))
	}
	return out
}

// duplicateDocID groups on the full id; groups are reported in order of
// first appearance.
func duplicateDocID(docs []models.Document, _ time.Time) []Finding {
	groups := map[string][]models.Document{}
	var order []string
	for _, d := range docs {
		if _, ok := groups[d.DocID]; !ok {
			order = append(order, d.DocID)
		}
		groups[d.DocID] = append(groups[d.DocID], d)
	}
	var out []Finding
	for _, id := range order {
		group := groups[id]
		if len(group) < 2 {
			continue
		}
		types := make([]string, len(group))
		paths := make([]string, len(group))
		for i, d := range group {
			types[i] = d.Type
			paths[i] = d.FilePath
		}
		out = append(out, finding("DUPLICATE_DOC_ID", Critical, Integrity,
			fmt.Sprintf("Multiple documents share doc_id '%s': %s.", id, strings.Join(types, ", ")),
			fmt.Sprintf("Rename the duplicate documents so each has a unique doc_id. Affected: %s.", strings.Join(paths, ", ")),
			group...))
	}
	return out
}

func emptyContent(docs []models.Document, _ time.Time) []Finding {
	var out []Finding
	for _, d := range docs {
		if len(strings.TrimSpace(d.Content)) >= MinContentLength {
			continue
		}
		out = append(out, finding("EMPTY_CONTENT", High, Integrity,
			fmt.Sprintf("Document '%s' has no meaningful content.", d.Title),
			fmt.Sprintf("Add content to %s (%s). The document appears to be empty or a stub.", d.DocID, d.FilePath),
			d))
	}
	return out
}

func staleDocument(docs []models.Document, now time.Time) []Finding {
	threshold := now.Add(-StaleAfter)
	var out []Finding
	for _, d := range docs {
		synced := d.SyncedAt.UTC()
		if !synced.Before(threshold) {
			continue
		}
		out = append(out, finding("STALE_DOCUMENT", Low, Integrity,
			fmt.Sprintf("Document '%s' has not been synced in over 30 days (last synced %s).", d.Title, synced.Format(time.DateOnly)),
			fmt.Sprintf("Review and re-sync %s to ensure it is still current.", d.DocID),
			d))
	}
	return out
}
