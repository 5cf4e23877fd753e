package generation

import "context"

// Client is a single call to an external text-generation service. Generate
// serializes the request, parses the response into record candidates, and
// classifies failures into TransientError, MalformedResponseError, or
// FatalAuthError. Implementations keep no per-call state beyond local rate
// pacing.
type Client interface {
	Generate(ctx context.Context, prompt string, expectedCount int) ([]Record, error)
}
