package hierarchy

import (
	"fmt"
	"io"
	"strings"
)

// WriteOutline prints rows as an indented text outline. Expanded nodes are
// marked "v", collapsed parents ">" and leaves "-".
func WriteOutline(w io.Writer, rows []Row) error {
	for _, r := range rows {
		marker := "-"
		if r.HasChildren {
			marker = ">"
			if r.Expanded {
				marker = "v"
			}
		}
		line := fmt.Sprintf("%s%s %s [%s] %s", strings.Repeat("  ", r.Depth), marker, r.Node.DocID, r.Node.Type, r.Node.Title)
		if r.Node.Status != nil && *r.Node.Status != "" {
			line += " (" + *r.Node.Status + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
