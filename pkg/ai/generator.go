// Package ai provides the text-generation layer backed by the Gemini API.
package ai

import (
	"context"

	"studybuddy/pkg/domain"
)

// TextGenerator produces a model response for a prompt, optionally preceded
// by a system instruction and prior conversation turns.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history []domain.Message, prompt string) (string, error)
}

// KeyValidator checks that an API key is usable before it is stored.
type KeyValidator interface {
	ValidateKey(ctx context.Context) error
}

// GeneratorFactory builds a generator bound to a user's API key and a model.
// Production wiring uses NewGeminiClient; tests substitute fakes.
type GeneratorFactory func(apiKey, model string) (TextGenerator, error)
