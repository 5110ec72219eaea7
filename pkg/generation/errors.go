package generation

import "fmt"

// ValidationError rejects a request before any job is created. The web
// layer maps it to a 400 response.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("generation: %s", e.Message)
	}
	return fmt.Sprintf("generation: %s: %s", e.Field, e.Message)
}

// ProviderError wraps a failure reported by an external generation
// provider.
type ProviderError struct {
	Provider string
	Code     int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("generation: %s returned %d: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("generation: %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotFoundError marks a callback or lookup that references no known
// job. Callback handlers acknowledge it instead of failing so the
// provider doesn't keep retrying.
type NotFoundError struct {
	ExternalID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("generation: no job for external id %s", e.ExternalID)
}
