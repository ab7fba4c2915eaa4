// Package service implements the rendezvous decision workflow on top of the
// storage contracts.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
	"github.com/louisbranch/duet.space/internal/platform/grpc/pagination"
	"github.com/louisbranch/duet.space/internal/platform/id"
	"github.com/louisbranch/duet.space/internal/platform/random"
	"github.com/louisbranch/duet.space/internal/platform/requestctx"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/domain"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/filter"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/storage"
)

const (
	defaultListOutcomesPageSize = 20
	maxListOutcomesPageSize     = 100
)

// Telemetry event names emitted by the workflow.
const (
	eventOutcomeAppendFailed  = "outcome_append_failed"
	eventSessionExpiredLazily = "session_expired_lazily"
)

// Stores groups the storage interfaces the workflow depends on.
type Stores struct {
	Session   storage.SessionStore
	Outcome   storage.OutcomeStore
	Telemetry storage.TelemetryStore
}

// Config tunes workflow behavior.
type Config struct {
	// DecisionWindow overrides the default session window when positive.
	DecisionWindow time.Duration
}

// Service coordinates decision sessions for a pair.
//
// Submissions for the same session are serialized through a per-session
// mutex, so the read-modify-write against the session store never races
// in-process. The store's version guard covers whatever the mutex cannot.
type Service struct {
	stores      Stores
	window      time.Duration
	clock       func() time.Time
	idGenerator func() (string, error)
	seedSource  func() (int64, error)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Service with default dependencies.
func New(stores Stores) *Service {
	return NewWithConfig(stores, Config{})
}

// NewWithConfig creates a Service with the provided tuning.
func NewWithConfig(stores Stores, cfg Config) *Service {
	return &Service{
		stores:      stores,
		window:      cfg.DecisionWindow,
		clock:       time.Now,
		idGenerator: id.NewID,
		seedSource:  random.NewSeed,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// releaseSessionLock drops the keyed mutex for a session that reached a
// terminal status. Terminal sessions reject further writes at the store, so
// the entry is no longer needed and the map stays bounded.
func (s *Service) releaseSessionLock(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sessionID)
}

// GetOrCreateSession returns the pair's waiting session, creating one when
// none exists. The boolean reports whether this call created the session.
// An expired waiting session is promoted to its terminal status and replaced.
func (s *Service) GetOrCreateSession(ctx context.Context, principal requestctx.Principal) (domain.Session, bool, error) {
	if s.stores.Session == nil {
		return domain.Session{}, false, fmt.Errorf("session store is not configured")
	}
	if principal.PairID == "" {
		return domain.Session{}, false, apperrors.New(apperrors.CodeRendezvousPairIDEmpty, "pair id is required")
	}
	if principal.UserID == "" {
		return domain.Session{}, false, apperrors.New(apperrors.CodeRendezvousUserIDEmpty, "user id is required")
	}

	now := s.clock().UTC()
	existing, err := s.stores.Session.GetWaitingSessionByPair(ctx, principal.PairID)
	switch {
	case err == nil:
		if !existing.ExpiredAt(now) {
			return existing, false, nil
		}
		if err := s.expireSession(ctx, existing, now); err != nil {
			return domain.Session{}, false, err
		}
	case errors.Is(err, storage.ErrNotFound):
		// No waiting session; fall through to create one.
	default:
		return domain.Session{}, false, fmt.Errorf("get waiting session: %w", err)
	}

	session, err := domain.CreateSession(domain.CreateSessionInput{
		PairID:      principal.PairID,
		RequesterID: principal.UserID,
		Window:      s.window,
	}, s.clock, s.idGenerator)
	if err != nil {
		return domain.Session{}, false, err
	}

	if err := s.stores.Session.CreateSession(ctx, session); err != nil {
		if errors.Is(err, storage.ErrWaitingSessionExists) {
			// Lost the creation race; the winner's session is the
			// session for both callers.
			winner, getErr := s.stores.Session.GetWaitingSessionByPair(ctx, principal.PairID)
			if getErr != nil {
				return domain.Session{}, false, fmt.Errorf("get racing session: %w", getErr)
			}
			return winner, false, nil
		}
		return domain.Session{}, false, fmt.Errorf("create session: %w", err)
	}
	return session, true, nil
}

// GetSession returns one session visible to the principal's pair, promoting
// it to expired first when its decision window has closed.
func (s *Service) GetSession(ctx context.Context, principal requestctx.Principal, sessionID string) (domain.Session, error) {
	if s.stores.Session == nil {
		return domain.Session{}, fmt.Errorf("session store is not configured")
	}
	if sessionID == "" {
		return domain.Session{}, apperrors.New(apperrors.CodeRendezvousSessionIDEmpty, "session id is required")
	}

	session, err := s.stores.Session.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.New(apperrors.CodeNotFound, "session not found")
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	// Sessions are scoped to the pair; anything outside it does not exist
	// as far as the caller can tell.
	if session.PairID != principal.PairID {
		return domain.Session{}, apperrors.New(apperrors.CodeNotFound, "session not found")
	}

	now := s.clock().UTC()
	if session.Status == domain.SessionStatusWaiting && session.ExpiredAt(now) {
		if err := s.expireSession(ctx, session, now); err != nil {
			return domain.Session{}, err
		}
		session.Status = domain.SessionStatusExpired
		session.UpdatedAt = now
	}
	return session, nil
}

// SessionView pairs a session with the requester's role in it.
type SessionView struct {
	Session            domain.Session
	IsFirstParticipant bool
}

// GetCurrentSession returns the pair's most recent session and the
// requester's role, without creating one. The boolean reports whether any
// session exists for the pair. A stale waiting session is promoted to
// expired before it is returned, so pollers always observe the truth.
func (s *Service) GetCurrentSession(ctx context.Context, principal requestctx.Principal) (SessionView, bool, error) {
	if s.stores.Session == nil {
		return SessionView{}, false, fmt.Errorf("session store is not configured")
	}
	if principal.PairID == "" {
		return SessionView{}, false, apperrors.New(apperrors.CodeRendezvousPairIDEmpty, "pair id is required")
	}

	session, err := s.stores.Session.GetLatestSessionByPair(ctx, principal.PairID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return SessionView{}, false, nil
		}
		return SessionView{}, false, fmt.Errorf("get latest session: %w", err)
	}

	now := s.clock().UTC()
	if session.Status == domain.SessionStatusWaiting && session.ExpiredAt(now) {
		if err := s.expireSession(ctx, session, now); err != nil {
			return SessionView{}, false, err
		}
		session.Status = domain.SessionStatusExpired
		session.UpdatedAt = now
	}
	return SessionView{
		Session:            session,
		IsFirstParticipant: session.FirstParticipantID == principal.UserID,
	}, true, nil
}

// SubmitChoices records one participant's choice set. The second distinct
// participant's submission resolves the session synchronously; the returned
// session is the post-submission state.
func (s *Service) SubmitChoices(ctx context.Context, principal requestctx.Principal, sessionID string, choices []string) (domain.Session, error) {
	if s.stores.Session == nil {
		return domain.Session{}, fmt.Errorf("session store is not configured")
	}
	if sessionID == "" {
		return domain.Session{}, apperrors.New(apperrors.CodeRendezvousSessionIDEmpty, "session id is required")
	}
	if principal.UserID == "" {
		return domain.Session{}, apperrors.New(apperrors.CodeRendezvousUserIDEmpty, "user id is required")
	}

	normalized, err := domain.NormalizeChoices(choices)
	if err != nil {
		return domain.Session{}, err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.stores.Session.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.New(apperrors.CodeNotFound, "session not found")
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	if session.PairID != principal.PairID {
		return domain.Session{}, apperrors.New(apperrors.CodeNotFound, "session not found")
	}

	now := s.clock().UTC()
	if session.Status == domain.SessionStatusWaiting && session.ExpiredAt(now) {
		if err := s.expireSession(ctx, session, now); err != nil {
			return domain.Session{}, err
		}
		return domain.Session{}, apperrors.WithMetadata(
			apperrors.CodeRendezvousSessionUnavailable,
			"session is no longer accepting submissions",
			map[string]string{"Status": domain.SessionStatusExpired.String()},
		)
	}

	expectUpdatedAt := session.UpdatedAt
	updated, err := domain.ApplyChoices(session, principal.UserID, normalized, s.clock)
	if err != nil {
		return domain.Session{}, err
	}

	resolved := false
	if updated.BothSlotsFilled() {
		seed, err := s.seedSource()
		if err != nil {
			return domain.Session{}, apperrors.Wrap(apperrors.CodeSeedUnavailable, "draw tie-break seed", err)
		}
		updated, err = domain.Resolve(updated, seed, s.clock)
		if err != nil {
			return domain.Session{}, fmt.Errorf("resolve session: %w", err)
		}
		resolved = true
	}

	if err := s.stores.Session.UpdateSession(ctx, updated, expectUpdatedAt); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return domain.Session{}, apperrors.New(
				apperrors.CodeRendezvousSessionUnavailable,
				"session was modified concurrently",
			)
		}
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}

	if updated.Status.Terminal() {
		s.releaseSessionLock(sessionID)
	}
	if resolved && updated.DecidedCandidate != "" {
		s.recordOutcome(ctx, updated, principal.UserID)
	}
	return updated, nil
}

// ListOutcomes returns one page of the pair's decided outcomes, newest first,
// optionally narrowed by an AIP-160 filter expression.
func (s *Service) ListOutcomes(ctx context.Context, principal requestctx.Principal, filterStr string, pageSize int32, pageToken string) (storage.OutcomePage, error) {
	if s.stores.Outcome == nil {
		return storage.OutcomePage{}, fmt.Errorf("outcome store is not configured")
	}
	if principal.PairID == "" {
		return storage.OutcomePage{}, apperrors.New(apperrors.CodeRendezvousPairIDEmpty, "pair id is required")
	}

	condition, err := filter.ParseOutcomeFilter(filterStr)
	if err != nil {
		return storage.OutcomePage{}, err
	}

	size := pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{
		Default: defaultListOutcomesPageSize,
		Max:     maxListOutcomesPageSize,
	})
	page, err := s.stores.Outcome.ListOutcomes(ctx, principal.PairID, storage.OutcomeListFilter{
		SQL:  condition.Clause,
		Args: condition.Params,
	}, size, pageToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.OutcomePage{}, apperrors.New(apperrors.CodeOutcomePageTokenInvalid, "page token is not valid")
		}
		return storage.OutcomePage{}, fmt.Errorf("list outcomes: %w", err)
	}
	return page, nil
}

// expireSession promotes a waiting session past its window to expired.
// Losing the write race means another caller already expired it.
func (s *Service) expireSession(ctx context.Context, session domain.Session, now time.Time) error {
	expectUpdatedAt := session.UpdatedAt
	session.Status = domain.SessionStatusExpired
	session.UpdatedAt = now
	err := s.stores.Session.UpdateSession(ctx, session, expectUpdatedAt)
	if err != nil && !errors.Is(err, storage.ErrVersionConflict) {
		return fmt.Errorf("expire session: %w", err)
	}
	s.releaseSessionLock(session.ID)
	s.emitTelemetry(ctx, eventSessionExpiredLazily, session, nil)
	return nil
}

// recordOutcome appends the decided outcome record. The session transition
// already committed, so failures here are logged and surfaced as telemetry
// instead of failing the submission.
func (s *Service) recordOutcome(ctx context.Context, session domain.Session, decidedByUserID string) {
	if s.stores.Outcome == nil {
		return
	}
	outcome, err := domain.NewOutcome(session, decidedByUserID, s.clock, s.idGenerator)
	if err != nil {
		log.Printf("build outcome record session_id=%s err=%v", session.ID, err)
		s.emitTelemetry(ctx, eventOutcomeAppendFailed, session, err)
		return
	}
	if err := s.stores.Outcome.AppendOutcome(ctx, outcome); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return
		}
		log.Printf("append outcome session_id=%s err=%v", session.ID, err)
		s.emitTelemetry(ctx, eventOutcomeAppendFailed, session, err)
	}
}

func (s *Service) emitTelemetry(ctx context.Context, name string, session domain.Session, cause error) {
	if s.stores.Telemetry == nil {
		return
	}
	eventID, err := s.idGenerator()
	if err != nil {
		log.Printf("generate telemetry event id err=%v", err)
		return
	}
	event := storage.TelemetryEvent{
		ID:         eventID,
		Name:       name,
		PairID:     session.PairID,
		SessionID:  session.ID,
		OccurredAt: s.clock().UTC(),
	}
	if cause != nil {
		event.Attributes = map[string]string{"error": cause.Error()}
	}
	if err := s.stores.Telemetry.AppendTelemetryEvent(ctx, event); err != nil {
		log.Printf("append telemetry event name=%s session_id=%s err=%v", name, session.ID, err)
	}
}
