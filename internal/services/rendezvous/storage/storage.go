// Package storage defines persistence contracts for rendezvous session state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/duet.space/internal/services/rendezvous/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ErrWaitingSessionExists indicates the pair already has a waiting session.
var ErrWaitingSessionExists = errors.New("waiting session already exists for pair")

// ErrVersionConflict indicates a session update lost a concurrent write race.
var ErrVersionConflict = errors.New("session modified concurrently")

// OutcomePage stores a page of decided outcomes.
type OutcomePage struct {
	Outcomes      []domain.Outcome
	NextPageToken string
}

// OutcomeListFilter narrows an outcome listing. SQL and Args come from the
// filter compiler and are appended to the store's own pair-scope predicate.
type OutcomeListFilter struct {
	SQL  string
	Args []any
}

// TelemetryEvent stores one service-side observability event.
type TelemetryEvent struct {
	ID         string
	Name       string
	PairID     string
	SessionID  string
	Attributes map[string]string
	OccurredAt time.Time
}

// SessionStore persists decision sessions.
//
// CreateSession enforces the one-waiting-session-per-pair invariant and
// returns ErrWaitingSessionExists when it would be violated. UpdateSession
// compares UpdatedAt against the stored row and returns ErrVersionConflict
// when the row moved underneath the caller.
type SessionStore interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetWaitingSessionByPair(ctx context.Context, pairID string) (domain.Session, error)
	GetLatestSessionByPair(ctx context.Context, pairID string) (domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session, expectUpdatedAt time.Time) error
}

// OutcomeStore persists the append-only record of decided outcomes.
type OutcomeStore interface {
	AppendOutcome(ctx context.Context, outcome domain.Outcome) error
	GetOutcomeBySession(ctx context.Context, sessionID string) (domain.Outcome, error)
	ListOutcomes(ctx context.Context, pairID string, filter OutcomeListFilter, pageSize int, pageToken string) (OutcomePage, error)
}

// TelemetryStore persists service-side observability events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, event TelemetryEvent) error
}
