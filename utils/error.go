package utils

import (
	"encoding/json"
	"strings"
)

// ErrorResponse is the error body shape returned by the API. Some endpoints
// populate Error, others Message.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// ServerMessage extracts the human readable message from an API error body.
// The "error" field wins over "message". It returns "" when the body carries
// neither.
func ServerMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return msg
	}
	return strings.TrimSpace(resp.Message)
}
