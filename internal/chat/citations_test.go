package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCitations_RoundTrip(t *testing.T) {
	original := []Citation{
		{ID: "doc1", Title: "Handbook", Content: "snippet one", URL: "https://example.com/handbook", FilePath: "handbook.pdf", ChunkID: "0"},
		{ID: "doc2", Title: "Policy", Content: "snippet two", URL: "https://example.com/policy"},
	}
	raw, err := json.Marshal(ToolPayload{Citations: original})
	require.NoError(t, err)

	got := ParseCitations(Message{Role: RoleTool, Content: string(raw)})
	assert.Equal(t, original, got)
}

func TestParseCitations_MalformedPayload(t *testing.T) {
	got := ParseCitations(Message{Role: RoleTool, Content: "{not json"})
	assert.Empty(t, got)
}

func TestParseCitations_NonToolRole(t *testing.T) {
	cases := []string{RoleUser, RoleAssistant, RoleError}
	for _, role := range cases {
		got := ParseCitations(Message{Role: role, Content: `{"citations":[{"title":"x","content":"y"}]}`})
		if len(got) != 0 {
			t.Fatalf("role=%s expected no citations, got %d", role, len(got))
		}
	}
}
