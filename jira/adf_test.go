package jira

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"simple paragraph",
			`{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"Hello world"}]}]}`,
			"Hello world",
		},
		{
			"nested nodes in document order",
			`{"type":"doc","content":[
				{"type":"paragraph","content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]},
				{"type":"bulletList","content":[
					{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"third"}]}]},
					{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"fourth"}]}]}
				]}
			]}`,
			"first second third fourth",
		},
		{
			"unknown node types are ignored",
			`{"type":"doc","content":[{"type":"mediaGroup","content":[{"type":"media"}]},{"type":"paragraph","content":[{"type":"text","text":"kept"}]}]}`,
			"kept",
		},
		{
			"deeply nested",
			`{"type":"doc","content":[{"type":"blockquote","content":[{"type":"blockquote","content":[{"type":"paragraph","content":[{"type":"text","text":"deep"}]}]}]}]}`,
			"deep",
		},
		{"null document", `null`, ""},
		{"empty document", ``, ""},
		{"malformed document", `{"type":`, ""},
		{"no text nodes", `{"type":"doc","content":[{"type":"rule"}]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractText(json.RawMessage(tt.doc)))
		})
	}
}
