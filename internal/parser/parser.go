// Package parser extracts metadata, titles and bodies from lifecycle
// Markdown documents and infers their type and id from file names.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// "> **Key:** Value"; the colon may sit inside or outside the bold run.
	quoteKVRe = regexp.MustCompile(`^>\s+\*\*(.+?)\*\*:?\s*(.*?)\s*$`)
	plainKVRe = regexp.MustCompile(`^\*\*(.+?)\*\*:?\s*(.*?)\s*$`)
	quoteRe   = regexp.MustCompile(`^>\s?`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Result holds the output of parsing a document.
type Result struct {
	Title       string
	Metadata    map[string]string
	StoryPoints *int
	Body        string
}

// Parse reads document metadata. YAML frontmatter fenced at the top of the
// file wins; otherwise the first blockquote block ("> **Status:** Done") is
// used, falling back to plain bold key-value lines. The title is the first
// "# " heading. The body is everything after the metadata block.
func Parse(data []byte) *Result {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(content, "\n")

	res := &Result{Metadata: make(map[string]string)}
	titleLines := lines

	if fm, body, ok := splitFrontmatter(content); ok {
		for k, v := range fm {
			res.Metadata[normaliseKey(k)] = scalar(v)
		}
		res.Body = body
		titleLines = strings.Split(body, "\n")
		if t, ok := fm["title"].(string); ok {
			res.Title = strings.TrimSpace(t)
		}
	} else {
		block, end := quoteBlock(lines)
		parseQuoteBlock(block, res.Metadata)
		if len(res.Metadata) == 0 {
			parsePlain(lines, res.Metadata)
		}
		res.Body = strings.Join(lines[end:], "\n")
	}

	if raw, ok := res.Metadata["story_points"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			res.StoryPoints = &n
		}
	}

	for _, line := range titleLines {
		if strings.HasPrefix(line, "# ") {
			res.Title = strings.TrimSpace(line[2:])
			break
		}
	}
	return res
}

func isQuote(line string) bool {
	s := strings.TrimSpace(line)
	return strings.HasPrefix(s, ">") && !strings.HasPrefix(s, ">>")
}

// quoteBlock returns the first contiguous run of blockquote lines and the
// index of the first line after it (0 when there is no block).
func quoteBlock(lines []string) ([]string, int) {
	start := -1
	for i, line := range lines {
		if isQuote(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, 0
	}
	for i := start; i < len(lines); i++ {
		if !isQuote(lines[i]) {
			return lines[start:i], i
		}
	}
	return lines[start:], len(lines)
}

// parseQuoteBlock fills meta from block. A run of two or more non key-value
// lines, or one reaching the end of the block, continues the preceding key.
// A lone non key-value line between two keys is dropped.
func parseQuoteBlock(block []string, meta map[string]string) {
	continuation := make(map[int]bool)
	for i := 0; i < len(block); {
		if quoteKVRe.MatchString(block[i]) {
			i++
			continue
		}
		start := i
		for i < len(block) && !quoteKVRe.MatchString(block[i]) {
			i++
		}
		if i-start > 1 || i >= len(block) {
			for j := start; j < i; j++ {
				continuation[j] = true
			}
		}
	}

	current := ""
	for i, line := range block {
		if m := quoteKVRe.FindStringSubmatch(line); m != nil {
			current = normaliseKey(m[1])
			meta[current] = strings.TrimSpace(m[2])
			continue
		}
		if current == "" || !continuation[i] {
			continue
		}
		text := strings.TrimSpace(quoteRe.ReplaceAllString(line, ""))
		if text == "" {
			continue
		}
		if existing := meta[current]; existing != "" {
			meta[current] = existing + " " + text
		} else {
			meta[current] = text
		}
	}
}

// parsePlain scans "**Key:** Value" lines from the top of the document,
// skipping blanks, headings and rules, and stops at the first other line.
func parsePlain(lines []string, meta map[string]string) {
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") || s == "---" {
			continue
		}
		m := plainKVRe.FindStringSubmatch(s)
		if m == nil {
			return
		}
		meta[normaliseKey(m[1])] = strings.TrimSpace(m[2])
	}
}

// normaliseKey turns "Story Points:" into "story_points".
func normaliseKey(key string) string {
	cleaned := strings.TrimRight(strings.TrimSpace(key), ":")
	return strings.ToLower(spaceRe.ReplaceAllString(cleaned, "_"))
}

// splitFrontmatter separates YAML frontmatter fenced by "---" at the very
// start of the document. ok is false when there is no fence, the YAML is
// invalid, or it decodes to an empty mapping.
func splitFrontmatter(content string) (map[string]any, string, bool) {
	const delim = "---"
	if !strings.HasPrefix(content, delim+"\n") {
		return nil, "", false
	}
	rest := content[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, "", false
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil || len(fm) == 0 {
		return nil, "", false
	}
	body := strings.TrimLeft(rest[idx+1+len(delim):], "\n")
	return fm, body, true
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, scalar(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
