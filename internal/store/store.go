// Package store persists chat sessions behind a storage-agnostic interface.
package store

import (
	"errors"

	"autodiag/pkg/domain"
)

// ErrNotFound indicates the session id is absent from the store.
var ErrNotFound = errors.New("session not found")

// previewLimit bounds the cached last-message preview length, in runes.
const previewLimit = 50

// Store defines persistence operations for chat sessions.
type Store interface {
	// CreateSession writes a new session record, welcome message included.
	CreateSession(s domain.Session) error

	// GetSession retrieves a full session by id.
	GetSession(id string) (domain.Session, bool, error)

	// AppendTurn appends one user/assistant message pair, recomputes the
	// last-message preview and message count, and records the diagnosis
	// flag. Returns ErrNotFound when the session is absent.
	AppendTurn(id string, userMsg, assistantMsg domain.Message, diagnosisComplete bool) error

	// ListSessionsByOwner returns summaries for an owner, newest first.
	ListSessionsByOwner(ownerID string) ([]domain.SessionSummary, error)

	// DeleteSessionsByOwner removes every session owned by ownerID and
	// returns how many were deleted.
	DeleteSessionsByOwner(ownerID string) (int, error)
}

// preview truncates an assistant message for the session listing.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}
