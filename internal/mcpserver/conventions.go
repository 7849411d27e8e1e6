package mcpserver

// DocumentConventions describes how lens reads a project's document tree.
// LLM consumers use it to interpret tool output and to author new files that
// sync cleanly.
const DocumentConventions = `# Lens Document Conventions

Lens indexes Markdown files under a project's document root.

## Types and ids

The type and id come from the file path, checked in this order:

1. **Id prefix.** A file name starting with a prefix and at least four
   digits is typed by the prefix and keeps its stem as the id:
   ` + "`EP`" + ` epic, ` + "`US`" + ` story, ` + "`PL`" + ` plan, ` + "`TS`" + ` test-spec,
   ` + "`BG`" + ` bug, ` + "`WF`" + ` workflow. Example: ` + "`stories/US0001-register.md`" + `
   is story ` + "`US0001-register`" + `.
2. **Singletons.** ` + "`prd.md`" + `, ` + "`trd.md`" + `, ` + "`tsd.md`" + ` and ` + "`personas.md`" + `.
3. **Directory.** A file inside ` + "`epics/`" + `, ` + "`stories/`" + `, ` + "`plans/`" + `,
   ` + "`test-specs/`" + `, ` + "`bugs/`" + ` or ` + "`workflows/`" + ` takes that type.
4. Anything else is ` + "`other`" + `. ` + "`_index.md`" + ` files are skipped.

## Structure

` + "```" + `markdown
# US0001: Register Project

> **Status:** Done
> **Epic:** [EP0001: Project Management](../epics/EP0001-project-mgmt.md)
> **Owner:** Team
> **Priority:** P1
> **Story Points:** 3

Body text in standard Markdown.
` + "```" + `

## Rules

1. The first ` + "`# `" + ` heading is the title. Without one the id is used.
2. Metadata is the first blockquote of ` + "`> **Key:** Value`" + ` lines. YAML
   frontmatter at the top of the file takes precedence when present.
3. ` + "`Epic`" + ` and ` + "`Story`" + ` reference a parent by id prefix (` + "`EP0001`" + `,
   ` + "`US0001`" + `); a Markdown link to the parent also works.
4. Plans and test specs hang under their story, stories under their epic.
   A document whose parent cannot be found is shown at the top level.
5. Project completion is the share of stories whose status is exactly
   ` + "`Done`" + `.
`
