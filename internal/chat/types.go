// Package chat defines the conversation message model shared by the
// history store, the answer endpoint client, and the render layer.
package chat

// Message roles. RoleError is synthesized locally, never produced by the endpoint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleError     = "error"
)

// Message is one entry in a conversation transcript. Immutable once created;
// the ordered transcript is sent back to the answer endpoint as context on
// every subsequent turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Citation is one source reference embedded in a tool message payload.
// The schema is owned by the answer endpoint; fields are extracted, never mutated.
type Citation struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url,omitempty"`
	FilePath string `json:"filepath,omitempty"`
	ChunkID  string `json:"chunk_id,omitempty"`
}

// ToolPayload is the structured content of a tool-role message.
type ToolPayload struct {
	Citations []Citation `json:"citations"`
	Intent    string     `json:"intent,omitempty"`
}

// Frame is one decoded unit from the endpoint's streamed response body.
// A frame carries either an error or a list of choices.
type Frame struct {
	Error   string   `json:"error,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// Choice groups the messages produced for one answer candidate.
type Choice struct {
	Messages []Message `json:"messages"`
}

// ConversationRequest is the request body sent to the answer endpoint.
type ConversationRequest struct {
	Messages       []Message `json:"messages"`
	ConversationID string    `json:"conversation_id"`
}
