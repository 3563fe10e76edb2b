package api

import "github.com/satriahrh/voiceassist/domain/entities"

// CreateUserRequest represents the request payload for creating a user
type CreateUserRequest struct {
	Name string `json:"name"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports the loaded model and basic host stats
type HealthResponse struct {
	Status            string                      `json:"status"`
	Service           string                      `json:"service"`
	Model             entities.TranscriptionModel `json:"model"`
	LLM               string                      `json:"llm"`
	UptimeSeconds     int64                       `json:"uptime_seconds"`
	MemoryUsedPercent float64                     `json:"memory_used_percent,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
