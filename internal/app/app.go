// Package app orchestrates chat turns across the engine, the parts
// matcher, and the session store.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autodiag/internal/chat"
	"autodiag/internal/recommend"
	"autodiag/internal/store"
	"autodiag/internal/util"
	"autodiag/pkg/domain"
)

// Config holds runtime dependencies for the core application.
type Config struct {
	Store store.Store
	// Responder optionally wires an external generation backend. The
	// engine falls back to its fixed templates when it fails.
	Responder chat.Responder
	// RandSource overrides the default-reply selection, for tests.
	RandSource func(n int) int
}

// App is the core application service wiring storage and chat logic.
type App struct {
	store     store.Store
	matcher   *recommend.Matcher
	responder chat.Responder
	pick      func(n int) int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &App{
		store:     cfg.Store,
		matcher:   recommend.NewMatcher(),
		responder: cfg.Responder,
		pick:      cfg.RandSource,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// StartResult is the response payload for a new session.
type StartResult struct {
	SessionID string         `json:"session_id"`
	Message   string         `json:"message"`
	CarImage  string         `json:"car_image"`
	Vehicle   domain.Vehicle `json:"car_details"`
}

// TurnResult is the response payload for one chat turn.
type TurnResult struct {
	Message  string           `json:"message"`
	CarImage string           `json:"car_image,omitempty"`
	Products []domain.Product `json:"products"`
}

// StartSession validates the vehicle, creates the engine and session
// record, and returns the welcome reply. Nothing is written on invalid
// input.
func (a *App) StartSession(ownerID, manufacturer, model string, year int) (StartResult, error) {
	manufacturer = strings.TrimSpace(manufacturer)
	model = strings.TrimSpace(model)
	if manufacturer == "" || model == "" || year <= 0 {
		return StartResult{}, ErrInvalidVehicle
	}
	if strings.TrimSpace(ownerID) == "" {
		ownerID = domain.AnonymousUserID
	}

	engine := a.newEngine()
	reply, err := engine.Start(manufacturer, model, year)
	if err != nil {
		return StartResult{}, fmt.Errorf("start engine: %w", err)
	}

	now := time.Now().UTC()
	sessionID := "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	welcome := domain.Message{
		ID:        util.NewID(),
		Role:      domain.RoleAssistant,
		Content:   reply.Message,
		CreatedAt: now,
		CarImage:  reply.CarImage,
	}
	session := domain.Session{
		ID:           sessionID,
		OwnerID:      ownerID,
		Vehicle:      engine.Vehicle(),
		CreatedAt:    now,
		Messages:     []domain.Message{welcome},
		LastMessage:  reply.Message,
		MessageCount: 1,
	}
	if err := a.store.CreateSession(session); err != nil {
		return StartResult{}, fmt.Errorf("create session: %w", err)
	}

	slog.Info("session started", "session_id", sessionID, "owner_id", ownerID,
		"manufacturer", manufacturer, "model", model, "year", year)

	return StartResult{
		SessionID: sessionID,
		Message:   reply.Message,
		CarImage:  reply.CarImage,
		Vehicle:   engine.Vehicle(),
	}, nil
}

// PostTurn runs one chat turn for a session. Turns for the same session
// are serialized; turns for different sessions proceed concurrently.
func (a *App) PostTurn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	lock := a.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return TurnResult{}, ErrSessionNotFound
	}

	engine := chat.Restore(session.Vehicle, session.Messages, session.DiagnosisComplete, a.engineOptions()...)
	reply := engine.Reply(ctx, text)

	var products []domain.Product
	if engine.DiagnosisComplete() {
		products = a.matcher.Match(engine.RecommendationKeywords())
	}

	now := time.Now().UTC()
	userMsg := domain.Message{
		ID:        util.NewID(),
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: now,
	}
	assistantMsg := domain.Message{
		ID:        util.NewID(),
		Role:      domain.RoleAssistant,
		Content:   reply.Message,
		CreatedAt: now,
		CarImage:  reply.CarImage,
		Products:  products,
	}
	err = a.store.AppendTurn(sessionID, userMsg, assistantMsg, engine.DiagnosisComplete())
	if err == store.ErrNotFound {
		// Session cleared while the turn was in flight; the reply still
		// goes out, the append is a no-op.
		slog.Debug("append skipped, session cleared", "session_id", sessionID)
	} else if err != nil {
		return TurnResult{}, fmt.Errorf("append turn: %w", err)
	}

	return TurnResult{Message: reply.Message, CarImage: reply.CarImage, Products: products}, nil
}

// GetSession returns the full session after an ownership check.
func (a *App) GetSession(ownerID, sessionID string) (domain.Session, error) {
	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	if session.OwnerID != ownerID {
		return domain.Session{}, ErrSessionForbidden
	}
	return session, nil
}

// ListSessions returns the owner's session summaries, newest first.
func (a *App) ListSessions(ownerID string) ([]domain.SessionSummary, error) {
	if strings.TrimSpace(ownerID) == "" {
		return []domain.SessionSummary{}, nil
	}
	summaries, err := a.store.ListSessionsByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summaries, nil
}

// ClearHistory deletes every session owned by ownerID and reports how
// many were removed.
func (a *App) ClearHistory(ownerID string) (int, error) {
	if strings.TrimSpace(ownerID) == "" {
		return 0, nil
	}
	deleted, err := a.store.DeleteSessionsByOwner(ownerID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	slog.Info("history cleared", "owner_id", ownerID, "sessions", deleted)
	return deleted, nil
}

func (a *App) newEngine() *chat.Engine {
	return chat.NewEngine(a.engineOptions()...)
}

func (a *App) engineOptions() []chat.Option {
	var opts []chat.Option
	if a.responder != nil {
		opts = append(opts, chat.WithResponder(a.responder))
	}
	if a.pick != nil {
		opts = append(opts, chat.WithRandSource(a.pick))
	}
	return opts
}

// sessionLock returns the per-session mutex, creating it on first use.
// Entries are tiny and bounded by session churn, so they are never
// reclaimed.
func (a *App) sessionLock(sessionID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[sessionID] = lock
	}
	return lock
}
