package ai

import (
	"context"
)

// LLMProvider is the enrichment boundary. Implementations are swappable
// (Gemini, OpenAI, ...) and may fail freely; callers treat every error as
// "no enrichment".
type LLMProvider interface {
	// Summarize condenses a catalog extract into a few sentences for someone
	// standing near the place.
	Summarize(ctx context.Context, title, text string) (string, error)

	// Answer replies to a free-form question using the place's extract as
	// context.
	Answer(ctx context.Context, title, text, question string) (string, error)
}
