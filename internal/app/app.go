// Package app holds the core application logic behind the HTTP handlers.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"

	"studybuddy/internal/ingest"
	"studybuddy/pkg/ai"
	"studybuddy/pkg/auth"
	"studybuddy/pkg/crypt"
	"studybuddy/pkg/store"
)

// FileStore abstracts the local upload store.
type FileStore interface {
	Save(filename string, r io.Reader) (string, error)
	Remove(path string) error
}

// Config wires the application dependencies.
type Config struct {
	Store     store.Store
	Files     FileStore
	Tokens    *auth.TokenIssuer
	Cipher    *crypt.Cipher
	Processor *ingest.Processor

	// Generator builds a model client per user key. Defaults to the Gemini
	// HTTP client; tests substitute fakes.
	Generator ai.GeneratorFactory
	// ValidateKey probes an API key before it is stored.
	ValidateKey func(ctx context.Context, apiKey string) error
	// ListModels fetches the generation-capable model names for a key.
	ListModels func(ctx context.Context, apiKey string) ([]string, error)

	// Redis is optional and only used to cache model listings.
	Redis *redis.Client
}

// App is the core application service.
type App struct {
	store     store.Store
	files     FileStore
	tokens    *auth.TokenIssuer
	cipher    *crypt.Cipher
	processor *ingest.Processor

	generator   ai.GeneratorFactory
	validateKey func(ctx context.Context, apiKey string) error
	listModels  func(ctx context.Context, apiKey string) ([]string, error)

	redis     *redis.Client
	sanitizer *bluemonday.Policy

	wg sync.WaitGroup
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if cfg.Cipher == nil {
		return nil, fmt.Errorf("key cipher is required")
	}
	a := &App{
		store:       cfg.Store,
		files:       cfg.Files,
		tokens:      cfg.Tokens,
		cipher:      cfg.Cipher,
		processor:   cfg.Processor,
		generator:   cfg.Generator,
		validateKey: cfg.ValidateKey,
		listModels:  cfg.ListModels,
		redis:       cfg.Redis,
		sanitizer:   bluemonday.StrictPolicy(),
	}
	if a.generator == nil {
		a.generator = func(apiKey, model string) (ai.TextGenerator, error) {
			return ai.NewGeminiClient(apiKey, model)
		}
	}
	if a.validateKey == nil {
		a.validateKey = func(ctx context.Context, apiKey string) error {
			client, err := ai.NewGeminiClient(apiKey, "")
			if err != nil {
				return err
			}
			return client.ValidateKey(ctx)
		}
	}
	if a.listModels == nil {
		a.listModels = func(ctx context.Context, apiKey string) ([]string, error) {
			client, err := ai.NewGeminiClient(apiKey, "")
			if err != nil {
				return nil, err
			}
			return client.ListModels(ctx)
		}
	}
	return a, nil
}

// background runs fn in a tracked goroutine so tests can wait for it.
func (a *App) background(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Wait blocks until all background work has finished.
func (a *App) Wait() {
	a.wg.Wait()
}
