package report

import (
	"fmt"
	"strings"

	"threadmirror/internal/types"
)

// buildReportPrompt constructs the LLM prompt for reporting on a thread.
func buildReportPrompt(thread *types.Thread, withImages bool) string {
	var sb strings.Builder

	sb.WriteString("You are summarizing a social media thread into a factual report.\n\n")

	sb.WriteString("## Thread\n\n")
	sb.WriteString(thread.CombinedText())
	sb.WriteString("\n\n")

	if thread.FactualContext != "" {
		sb.WriteString("## Known Context\n\n")
		sb.WriteString(thread.FactualContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Task\n\n")
	sb.WriteString("Write a concise report covering:\n")
	sb.WriteString("1. What the main post claims or announces\n")
	sb.WriteString("2. The overall reaction in the replies\n")
	sb.WriteString("3. Any factual claims that would benefit from verification\n")
	if withImages {
		sb.WriteString("4. What the attached images show and how they relate to the text\n")
	}
	sb.WriteString("\nRespond with plain prose, no markdown headings. ")
	sb.WriteString("If the thread content prevents you from reporting on it, start your response with \"Warning: \" and explain briefly.\n")

	return sb.String()
}

// buildDescribePrompt constructs the prompt for captioning one image.
func buildDescribePrompt(post *types.Post) string {
	var sb strings.Builder
	sb.WriteString("Describe this image in one or two sentences, focusing on what it shows.\n")
	if post != nil && post.Text != "" {
		fmt.Fprintf(&sb, "It was attached to this post for context:\n%s\n", post.Text)
	}
	return sb.String()
}
