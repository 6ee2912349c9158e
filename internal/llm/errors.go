package llm

import "errors"

// Provider errors.
var (
	// ErrProvider wraps any completion-service failure.
	ErrProvider = errors.New("provider error")

	// ErrNoAPIKey is returned when a provider is constructed without a key.
	ErrNoAPIKey = errors.New("API key not configured")

	// ErrUnknownProvider is returned by the factory for an unrecognized name.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyResponse is returned when a provider yields no choices.
	ErrEmptyResponse = errors.New("no completion returned")
)
