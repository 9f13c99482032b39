package app

import (
	"fmt"
	"strings"
	"time"

	"studybuddy/internal/util"
	"studybuddy/pkg/auth"
	"studybuddy/pkg/domain"
)

// Credentials is the register/login request payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is returned by register, login and password reset.
type Session struct {
	User     domain.User `json:"user"`
	Token    string      `json:"token"`
	ResetKey string      `json:"resetKey,omitempty"`
}

// Register creates a new account. The plaintext reset key is returned here
// and never again.
func (a *App) Register(creds Credentials) (Session, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" {
		return Session{}, Invalid("username is required")
	}
	if err := auth.ValidatePassword(creds.Password); err != nil {
		return Session{}, Invalid(err.Error())
	}
	taken, err := a.store.HasUsername(username)
	if err != nil {
		return Session{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return Session{}, ErrConflict
	}

	passwordHash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return Session{}, err
	}
	resetKey, err := auth.NewResetKey()
	if err != nil {
		return Session{}, err
	}
	resetKeyHash, err := auth.HashPassword(resetKey)
	if err != nil {
		return Session{}, err
	}

	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		PasswordHash: passwordHash,
		ResetKeyHash: resetKeyHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return Session{}, fmt.Errorf("save user: %w", err)
	}
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token, ResetKey: resetKey}, nil
}

// Login exchanges credentials for a session token. Unknown usernames and
// wrong passwords are indistinguishable.
func (a *App) Login(creds Credentials) (Session, error) {
	username := strings.TrimSpace(creds.Username)
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(creds.Password, user.PasswordHash) {
		return Session{}, ErrUnauthorized
	}
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

// CheckUsername reports whether a username is already taken, matching
// case-insensitively.
func (a *App) CheckUsername(username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, Invalid("username is required")
	}
	_, ok, err := a.store.GetUserByUsernameFold(username)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return ok, nil
}

// ResetPassword sets a new password after verifying the account reset key.
// A fresh reset key is issued and returned alongside a new session token.
func (a *App) ResetPassword(username, resetKey, newPassword string) (Session, error) {
	user, ok, err := a.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(resetKey, user.ResetKeyHash) {
		return Session{}, ErrUnauthorized
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return Session{}, Invalid(err.Error())
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return Session{}, err
	}
	nextKey, err := auth.NewResetKey()
	if err != nil {
		return Session{}, err
	}
	nextKeyHash, err := auth.HashPassword(nextKey)
	if err != nil {
		return Session{}, err
	}
	user.PasswordHash = passwordHash
	user.ResetKeyHash = nextKeyHash
	if err := a.store.SaveUser(user); err != nil {
		return Session{}, fmt.Errorf("save user: %w", err)
	}
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token, ResetKey: nextKey}, nil
}

// UserFromToken resolves a bearer token to the user it was issued for.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	userID, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, false
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}
