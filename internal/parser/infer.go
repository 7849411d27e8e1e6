package parser

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/lens/internal/models"
)

var prefixTypes = map[string]string{
	"EP": models.TypeEpic,
	"US": models.TypeStory,
	"BG": models.TypeBug,
	"PL": models.TypePlan,
	"TS": models.TypeTestSpec,
	"WF": models.TypeWorkflow,
}

var prefixRe = regexp.MustCompile(`^(EP|US|BG|PL|TS|WF)\d{4,}`)

var singletons = map[string]string{
	"prd":      models.TypePRD,
	"trd":      models.TypeTRD,
	"tsd":      models.TypeTSD,
	"personas": models.TypePersonas,
}

var dirTypes = map[string]string{
	"epics":      models.TypeEpic,
	"stories":    models.TypeStory,
	"bugs":       models.TypeBug,
	"plans":      models.TypePlan,
	"test-specs": models.TypeTestSpec,
	"workflows":  models.TypeWorkflow,
}

// Inference is the document type and id derived from a file path.
type Inference struct {
	Type string
	ID   string
}

// IndexFile is skipped by sync.
const IndexFile = "_index.md"

// Infer derives type and id from a path relative to the project root.
// Precedence: id prefix (EP0001-...), singleton name (prd.md), parent
// directory (stories/...), then "other". ok is false for index files.
func Infer(relPath string) (Inference, bool) {
	relPath = filepath.ToSlash(relPath)
	name := path.Base(relPath)
	if name == IndexFile {
		return Inference{}, false
	}
	stem := strings.TrimSuffix(name, path.Ext(name))

	if m := prefixRe.FindStringSubmatch(stem); m != nil {
		return Inference{Type: prefixTypes[m[1]], ID: stem}, true
	}

	lower := strings.ToLower(stem)
	if t, ok := singletons[lower]; ok {
		return Inference{Type: t, ID: lower}, true
	}

	dirs := strings.Split(path.Dir(relPath), "/")
	for _, d := range dirs {
		if t, ok := dirTypes[d]; ok {
			return Inference{Type: t, ID: stem}, true
		}
	}

	return Inference{Type: models.TypeOther, ID: stem}, true
}

var (
	linkIDRe  = regexp.MustCompile(`^\[([A-Z]{2}\d{4})`)
	plainIDRe = regexp.MustCompile(`^([A-Z]{2}\d{4})\b`)
	docIDRe   = regexp.MustCompile(`^[A-Z]{2}\d{4}`)
)

// ExtractDocID reduces a metadata reference to its document id prefix.
//
//	"[EP0007: Git Sync](../epics/EP0007-git-sync.md)" -> "EP0007"
//	"US0163: Container Service Status"               -> "US0163"
//	"custom-ref"                                      -> "custom-ref"
func ExtractDocID(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	if m := linkIDRe.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	if m := plainIDRe.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

// Prefix returns the leading "XX0000" code of a document id, or the id
// itself when it has none.
func Prefix(docID string) string {
	if m := docIDRe.FindString(docID); m != "" {
		return m
	}
	return docID
}
