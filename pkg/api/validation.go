package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessageSize int
	// StrictThreadID rejects thread ids that are not 24 hex characters.
	StrictThreadID bool
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessageSize: 64 * 1024,
	}
}

// ValidateChatRequest checks a ChatRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request is valid.
func ValidateChatRequest(req *ChatRequest, cfg ValidationConfig) *APIError {
	if req.ThreadID == "" {
		return NewInvalidRequestError("threadId", "threadId is required")
	}
	if cfg.StrictThreadID && !ValidateThreadID(req.ThreadID) {
		return NewInvalidRequestError("threadId", "threadId is malformed")
	}
	if req.Message == "" {
		return NewInvalidRequestError("message", "message is required")
	}
	if cfg.MaxMessageSize > 0 && len(req.Message) > cfg.MaxMessageSize {
		return NewInvalidRequestError("message",
			fmt.Sprintf("message exceeds maximum size of %d bytes", cfg.MaxMessageSize))
	}
	return nil
}

// ApplyChatDefaults fills the optional fields of a request with the values
// used when a thread is created from it.
func ApplyChatDefaults(req *ChatRequest, defaultCategory string) {
	if req.Category == "" {
		req.Category = defaultCategory
	}
	if req.InitialContext == nil {
		req.InitialContext = &InitialContext{Question: req.Message, Source: "unknown"}
	}
}
