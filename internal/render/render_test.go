package render

import (
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	src := "# US0001: Register\n\n> **Status:** Done\n\n## Acceptance Criteria\n\n- [x] works\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n~~old~~\n"
	html, headings, err := New().HTML([]byte(src))
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	for _, want := range []string{
		`<h1 id="us0001-register">US0001: Register</h1>`,
		"<blockquote>",
		"<table>",
		`<input checked="" disabled="" type="checkbox"`,
		"<del>old</del>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q:\n%s", want, html)
		}
	}
	if len(headings) != 2 {
		t.Fatalf("headings = %+v", headings)
	}
	if headings[1].Level != 2 || headings[1].Text != "Acceptance Criteria" || headings[1].ID != "acceptance-criteria" {
		t.Errorf("heading = %+v", headings[1])
	}
}

func TestHTML_RawHTMLOmitted(t *testing.T) {
	html, _, err := New().HTML([]byte("hello <script>alert(1)</script>\n"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw html rendered: %s", html)
	}
}

func TestHTML_Empty(t *testing.T) {
	html, headings, err := New().HTML(nil)
	if err != nil {
		t.Fatal(err)
	}
	if html != "" || len(headings) != 0 || headings == nil {
		t.Errorf("html = %q, headings = %v", html, headings)
	}
}
