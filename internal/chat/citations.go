package chat

import "encoding/json"

// ParseCitations extracts the citation list embedded in a tool-role message.
// It returns an empty slice for any other role or when the payload does not
// parse; extraction is best-effort and never fails the caller.
func ParseCitations(msg Message) []Citation {
	if msg.Role != RoleTool {
		return nil
	}
	var payload ToolPayload
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		return nil
	}
	return payload.Citations
}
