// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taibuivan/helios/internal/platform/dberr"
)

// memState is the shared data behind memStore. InTx snapshots it and restores
// the snapshot when fn fails, which is enough to observe rollbacks.
type memState struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	users    map[string]User
	sessions map[string]Session
	resets   map[string]PasswordResetToken

	// failSessionCreate makes the next session insert fail once.
	failSessionCreate error
}

type memStore struct {
	state *memState
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		users:    map[string]User{},
		sessions: map[string]Session{},
		resets:   map[string]PasswordResetToken{},
	}}
}

func (store *memStore) Users() UserRepository             { return memUsers{store.state} }
func (store *memStore) Sessions() SessionRepository       { return memSessions{store.state} }
func (store *memStore) ResetTokens() ResetTokenRepository { return memResets{store.state} }

func (store *memStore) InTx(context context.Context, fn func(tx Store) error) error {
	state := store.state
	state.txMu.Lock()
	defer state.txMu.Unlock()

	state.mu.Lock()
	users, sessions, resets := cloneMap(state.users), cloneMap(state.sessions), cloneMap(state.resets)
	state.mu.Unlock()

	if err := fn(store); err != nil {
		state.mu.Lock()
		state.users, state.sessions, state.resets = users, sessions, resets
		state.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[V any](source map[string]V) map[string]V {
	clone := make(map[string]V, len(source))
	for key, value := range source {
		clone[key] = value
	}
	return clone
}

// # Inspection helpers

func (store *memStore) user(id string) User {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return store.state.users[id]
}

func (store *memStore) setUser(user User) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	store.state.users[user.ID] = user
}

func (store *memStore) sessionCount(userID string) int {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	count := 0
	for _, session := range store.state.sessions {
		if session.UserID == userID {
			count++
		}
	}
	return count
}

func (store *memStore) resetCount() int {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return len(store.state.resets)
}

func (store *memStore) userCount() int {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return len(store.state.users)
}

// # Users

type memUsers struct{ state *memState }

func (repository memUsers) find(match func(User) bool) (*User, error) {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()
	for _, user := range repository.state.users {
		if user.Status != StatusDeleted && match(user) {
			found := user
			return &found, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repository memUsers) FindByID(_ context.Context, id string) (*User, error) {
	return repository.find(func(user User) bool { return user.ID == id })
}

func (repository memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	return repository.find(func(user User) bool { return user.Email == email })
}

func (repository memUsers) FindByPhone(_ context.Context, phone string) (*User, error) {
	return repository.find(func(user User) bool { return user.Phone != nil && *user.Phone == phone })
}

func (repository memUsers) Create(_ context.Context, user *User) error {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	for _, existing := range repository.state.users {
		switch {
		case existing.Email == user.Email:
			return dberr.UniqueViolation("account_email_key")
		case user.Phone != nil && existing.Phone != nil && *existing.Phone == *user.Phone:
			return dberr.UniqueViolation("account_phone_key")
		case user.NationalID != nil && existing.NationalID != nil && *existing.NationalID == *user.NationalID:
			return dberr.UniqueViolation("account_nationalid_key")
		}
	}
	repository.state.users[user.ID] = *user
	return nil
}

func (repository memUsers) UpdatePassword(_ context.Context, userID, hash string, resetLockout bool) error {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	user, ok := repository.state.users[userID]
	if !ok || user.Status == StatusDeleted {
		return dberr.ErrNotFound
	}
	user.PasswordHash = hash
	if resetLockout {
		user.LoginAttempts = 0
		user.LockedUntil = nil
	}
	repository.state.users[userID] = user
	return nil
}

func (repository memUsers) RecordLoginFailure(_ context.Context, userID string, maxAttempts int, lockUntil time.Time) (LoginFailure, error) {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	user, ok := repository.state.users[userID]
	if !ok {
		return LoginFailure{}, dberr.ErrNotFound
	}
	user.LoginAttempts++
	if user.LoginAttempts >= maxAttempts {
		user.LockedUntil = &lockUntil
	}
	repository.state.users[userID] = user
	return LoginFailure{Attempts: user.LoginAttempts, LockedUntil: user.LockedUntil}, nil
}

func (repository memUsers) ResetLoginAttempts(_ context.Context, userID string) error {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	user, ok := repository.state.users[userID]
	if !ok {
		return dberr.ErrNotFound
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil
	repository.state.users[userID] = user
	return nil
}

// # Sessions

type memSessions struct{ state *memState }

func (repository memSessions) Create(_ context.Context, session *Session) error {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	if err := repository.state.failSessionCreate; err != nil {
		repository.state.failSessionCreate = nil
		return err
	}
	repository.state.sessions[session.ID] = *session
	return nil
}

func (repository memSessions) FindByTokenHash(_ context.Context, tokenHash string, now time.Time) (*Session, *User, error) {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	for _, session := range repository.state.sessions {
		if session.TokenHash != tokenHash || !session.ExpiresAt.After(now) {
			continue
		}
		user, ok := repository.state.users[session.UserID]
		if !ok || user.Status == StatusDeleted {
			break
		}
		found := session
		return &found, &user, nil
	}
	return nil, nil, dberr.ErrNotFound
}

func (repository memSessions) deleteWhere(match func(Session) bool) int64 {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	var deleted int64
	for id, session := range repository.state.sessions {
		if match(session) {
			delete(repository.state.sessions, id)
			deleted++
		}
	}
	return deleted
}

func (repository memSessions) Delete(_ context.Context, sessionID string) (bool, error) {
	return repository.deleteWhere(func(session Session) bool { return session.ID == sessionID }) > 0, nil
}

func (repository memSessions) DeleteForUser(_ context.Context, userID, sessionID string) (bool, error) {
	return repository.deleteWhere(func(session Session) bool {
		return session.ID == sessionID && session.UserID == userID
	}) > 0, nil
}

func (repository memSessions) DeleteOthersForUser(_ context.Context, userID, keepSessionID string) (int64, error) {
	return repository.deleteWhere(func(session Session) bool {
		return session.UserID == userID && session.ID != keepSessionID
	}), nil
}

func (repository memSessions) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	return repository.deleteWhere(func(session Session) bool { return session.UserID == userID }), nil
}

func (repository memSessions) ListForUser(_ context.Context, userID string, now time.Time) ([]*Session, error) {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	sessions := []*Session{}
	for _, session := range repository.state.sessions {
		if session.UserID == userID && session.ExpiresAt.After(now) {
			found := session
			sessions = append(sessions, &found)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	return sessions, nil
}

func (repository memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return repository.deleteWhere(func(session Session) bool { return !session.ExpiresAt.After(now) }), nil
}

// # Reset tokens

type memResets struct{ state *memState }

func (repository memResets) Create(_ context.Context, token *PasswordResetToken) error {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()
	repository.state.resets[token.ID] = *token
	return nil
}

func (repository memResets) FindValid(_ context.Context, tokenHash string, now time.Time) (*PasswordResetToken, error) {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	for _, token := range repository.state.resets {
		if token.TokenHash == tokenHash && !token.Used && token.ExpiresAt.After(now) {
			found := token
			return &found, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repository memResets) MarkUsed(_ context.Context, tokenID string, now time.Time) (bool, error) {
	repository.state.mu.Lock()
	defer repository.state.mu.Unlock()

	token, ok := repository.state.resets[tokenID]
	if !ok || token.Used || !token.ExpiresAt.After(now) {
		return false, nil
	}
	token.Used = true
	repository.state.resets[tokenID] = token
	return true, nil
}
