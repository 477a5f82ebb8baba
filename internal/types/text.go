package types

import (
	"fmt"
	"strings"
)

// CombinedText flattens the thread into a single prompt-friendly block.
// Consecutive replies that repeat the previous reply's author and text are
// skipped; mirrors sometimes render the same reply twice in a row.
func (t *Thread) CombinedText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Main Post (@%s):\n%s\n\n", t.MainPost.AuthorHandle, t.MainPost.Text)

	if len(t.Replies) > 0 {
		sb.WriteString("Replies:\n")
		for i, reply := range t.Replies {
			if i > 0 && reply.Text == t.Replies[i-1].Text && reply.AuthorHandle == t.Replies[i-1].AuthorHandle {
				continue
			}
			fmt.Fprintf(&sb, "--- Reply %d (@%s) ---\n%s\n", i+1, reply.AuthorHandle, reply.Text)
		}
	}

	return strings.TrimSpace(sb.String())
}

// HasText reports whether the thread carries any usable text at all.
func (t *Thread) HasText() bool {
	if strings.TrimSpace(t.MainPost.Text) != "" {
		return true
	}
	for _, r := range t.Replies {
		if strings.TrimSpace(r.Text) != "" {
			return true
		}
	}
	return false
}
