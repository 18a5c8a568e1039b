// Package assistant holds the prompt assembly for the optional LLM-backed
// replies and the interface the model client must satisfy. The model call
// itself is an external collaborator; this package only prepares its input
// and interprets its output.
package assistant

import "context"

// Responder produces a reply for an assembled prompt.
type Responder interface {
	// Respond sends the prompt to the model and returns its reply.
	Respond(ctx context.Context, prompt string) (string, error)
}
