// Package nlp defines the language-understanding contracts the chat pipeline
// depends on, plus an OpenAI-compatible provider. The pipeline never talks to
// a provider directly; it sees only these two capabilities.
package nlp

import (
	"context"

	"tasktalk/internal/domain"
)

// Classifier maps a raw user message onto the closed intent set. A provider
// failure is returned as an error; deciding what to do with it belongs to
// the caller.
type Classifier interface {
	Classify(ctx context.Context, message string) (domain.Intent, error)
}

// Extractor recovers structured entities from a user message given the
// already-classified intent. All fields of the result are optional.
type Extractor interface {
	Extract(ctx context.Context, message string, intent domain.Intent) (domain.Entities, error)
}
