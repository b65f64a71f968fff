package ai

import "time"

// GenerateRequest is a request to the text-generation service
type GenerateRequest struct {
	Model  string `json:"model,omitempty"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
}

// GenerateResponse is the response from the text-generation service.
// Text is unstructured and may contain a JSON object, optionally inside
// a fenced code block; callers own the parsing and fallback.
type GenerateResponse struct {
	RequestID        string    `json:"request_id,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
	Text             string    `json:"text"`
	ModelUsed        string    `json:"model_used,omitempty"`
	ProcessingTimeMs int       `json:"processing_time_ms,omitempty"`
}
