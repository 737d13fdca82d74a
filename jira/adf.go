package jira

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// RICH-TEXT EXTRACTION
// =============================================================================
// Long-form tracker fields arrive as a rich-text document tree (ADF): nested
// nodes where only type=="text" nodes carry content. The walk below is
// iterative with an explicit stack, bounded by document size, and ignores
// node types it does not know.

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// extractText flattens a document tree to plain text: every text node in
// document order, joined by single spaces. Malformed or empty documents
// yield "".
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var root adfNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return ""
	}

	var parts []string
	stack := []adfNode{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.Type == "text" && node.Text != "" {
			parts = append(parts, node.Text)
		}
		// Children pushed in reverse so the leftmost pops first.
		for i := len(node.Content) - 1; i >= 0; i-- {
			stack = append(stack, node.Content[i])
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
