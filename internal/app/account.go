package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studybuddy/pkg/ai"
	"studybuddy/pkg/auth"
	"studybuddy/pkg/domain"
)

const modelCacheTTL = 10 * time.Minute

// ChangePassword verifies the current password and stores a new one.
func (a *App) ChangePassword(user domain.User, current, next string) error {
	if !auth.CheckPassword(current, user.PasswordHash) {
		return ErrUnauthorized
	}
	if err := auth.ValidatePassword(next); err != nil {
		return Invalid(err.Error())
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// SetGeminiKey validates the API key against the upstream API, then stores
// it encrypted. The plaintext key is never persisted.
func (a *App) SetGeminiKey(ctx context.Context, user domain.User, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return Invalid("API key is required")
	}
	if err := a.validateKey(ctx, apiKey); err != nil {
		return Invalid("API key validation failed")
	}
	encrypted, err := a.cipher.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	user.EncryptedGeminiKey = encrypted
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// AccountStatus reports whether a Gemini key is configured.
type AccountStatus struct {
	IsGeminiKeySet bool `json:"isGeminiKeySet"`
}

// Status returns the account status for the user.
func (a *App) Status(user domain.User) AccountStatus {
	return AccountStatus{IsGeminiKeySet: user.EncryptedGeminiKey != ""}
}

// geminiKey decrypts the user's stored API key.
func (a *App) geminiKey(user domain.User) (string, error) {
	if user.EncryptedGeminiKey == "" {
		return "", Invalid("Gemini API key not set")
	}
	key, err := a.cipher.Decrypt(user.EncryptedGeminiKey)
	if err != nil {
		return "", fmt.Errorf("decrypt api key: %w", err)
	}
	return key, nil
}

// userGenerator builds a model client for the user's stored key.
func (a *App) userGenerator(user domain.User, model string) (ai.TextGenerator, error) {
	key, err := a.geminiKey(user)
	if err != nil {
		return nil, err
	}
	return a.generator(key, model)
}

// Models lists generation-capable model names for the user's key. Listings
// are cached in Redis for a short window when Redis is configured.
func (a *App) Models(ctx context.Context, user domain.User) ([]string, error) {
	cacheKey := "studybuddy:models:" + user.ID
	if a.redis != nil {
		if cached, err := a.redis.SMembers(ctx, cacheKey).Result(); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}
	apiKey, err := a.geminiKey(user)
	if err != nil {
		return nil, err
	}
	models, err := a.listModels(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	if a.redis != nil && len(models) > 0 {
		members := make([]any, 0, len(models))
		for _, m := range models {
			members = append(members, m)
		}
		if err := a.redis.SAdd(ctx, cacheKey, members...).Err(); err == nil {
			a.redis.Expire(ctx, cacheKey, modelCacheTTL)
		}
	}
	return models, nil
}
