// Package domain holds the decision session state machine and resolution
// rules for two-party rendezvous rounds.
package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
	"github.com/louisbranch/duet.space/internal/platform/id"
)

// SessionStatus describes the lifecycle state of a decision session.
type SessionStatus int

const (
	// SessionStatusUnspecified represents an invalid session status value.
	SessionStatusUnspecified SessionStatus = iota
	// SessionStatusWaiting indicates at most one choice slot is filled.
	SessionStatusWaiting
	// SessionStatusComplete indicates both slots were filled and the outcome computed.
	SessionStatusComplete
	// SessionStatusExpired indicates the decision window closed before both slots filled.
	SessionStatusExpired
)

// String returns the storage representation of the status.
func (s SessionStatus) String() string {
	switch s {
	case SessionStatusWaiting:
		return "waiting"
	case SessionStatusComplete:
		return "complete"
	case SessionStatusExpired:
		return "expired"
	default:
		return "unspecified"
	}
}

// ParseSessionStatus maps a storage representation back to a status.
func ParseSessionStatus(value string) (SessionStatus, error) {
	switch strings.TrimSpace(value) {
	case "waiting":
		return SessionStatusWaiting, nil
	case "complete":
		return SessionStatusComplete, nil
	case "expired":
		return SessionStatusExpired, nil
	default:
		return SessionStatusUnspecified, fmt.Errorf("unknown session status %q", value)
	}
}

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusComplete || s == SessionStatusExpired
}

// DefaultDecisionWindow is how long a session accepts submissions.
const DefaultDecisionWindow = 30 * time.Minute

// Session is one two-party rendezvous decision round.
//
// The participant who created the session owns the first choice slot. The
// partner is bound to the second slot on their first submission and stays
// bound for the life of the session.
type Session struct {
	ID                  string
	PairID              string
	Status              SessionStatus
	FirstParticipantID  string
	SecondParticipantID string // empty until the partner's first submission
	FirstChoices        []string
	SecondChoices       []string
	AgreedChoices       []string
	DecidedCandidate    string // empty when AgreedChoices is empty or unresolved
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ExpiresAt           time.Time
}

// CreateSessionInput describes the metadata needed to create a session.
type CreateSessionInput struct {
	PairID      string
	RequesterID string
	// Window overrides DefaultDecisionWindow when positive.
	Window time.Duration
}

// CreateSession creates a new waiting session with a generated ID.
// The requester becomes the first participant.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.PairID = strings.TrimSpace(input.PairID)
	if input.PairID == "" {
		return Session{}, apperrors.New(apperrors.CodeRendezvousPairIDEmpty, "pair id is required")
	}
	input.RequesterID = strings.TrimSpace(input.RequesterID)
	if input.RequesterID == "" {
		return Session{}, apperrors.New(apperrors.CodeRendezvousUserIDEmpty, "requester id is required")
	}
	window := input.Window
	if window <= 0 {
		window = DefaultDecisionWindow
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:                 sessionID,
		PairID:             input.PairID,
		Status:             SessionStatusWaiting,
		FirstParticipantID: input.RequesterID,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
		ExpiresAt:          createdAt.Add(window),
	}, nil
}

// ExpiredAt reports whether the decision window has closed at the given instant.
func (s Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// IsParticipant reports whether userID is bound to either slot.
// An unbound second slot accepts any user other than the first participant,
// so a waiting session with a free slot treats everyone else as a
// participant-to-be.
func (s Session) IsParticipant(userID string) bool {
	if userID == s.FirstParticipantID {
		return true
	}
	if s.SecondParticipantID != "" {
		return userID == s.SecondParticipantID
	}
	return true
}

// NormalizeChoices trims entries, drops blanks, and deduplicates while
// preserving first-seen order. An empty result is rejected.
func NormalizeChoices(choices []string) ([]string, error) {
	seen := make(map[string]struct{}, len(choices))
	normalized := make([]string, 0, len(choices))
	for _, choice := range choices {
		choice = strings.TrimSpace(choice)
		if choice == "" {
			continue
		}
		if _, dup := seen[choice]; dup {
			continue
		}
		seen[choice] = struct{}{}
		normalized = append(normalized, choice)
	}
	if len(normalized) == 0 {
		return nil, apperrors.New(apperrors.CodeRendezvousChoicesEmpty, "candidate set is empty")
	}
	return normalized, nil
}

// ApplyChoices records one participant's candidate set on the session.
//
// The first participant overwrites the first slot. A requester who is not the
// first participant is bound as the second participant on their first write
// and overwrites the second slot thereafter. Anyone else is rejected.
// Re-submission before resolution replaces the slot; only the latest write
// matters.
func ApplyChoices(session Session, requesterID string, choices []string, now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return Session{}, apperrors.New(apperrors.CodeRendezvousUserIDEmpty, "requester id is required")
	}

	normalized, err := NormalizeChoices(choices)
	if err != nil {
		return Session{}, err
	}

	at := now().UTC()
	if session.Status != SessionStatusWaiting || session.ExpiredAt(at) {
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeRendezvousSessionUnavailable,
			"session is not accepting submissions",
			map[string]string{"SessionID": session.ID, "Status": session.Status.String()},
		)
	}

	switch {
	case requesterID == session.FirstParticipantID:
		session.FirstChoices = normalized
	case session.SecondParticipantID == "":
		session.SecondParticipantID = requesterID
		session.SecondChoices = normalized
	case requesterID == session.SecondParticipantID:
		session.SecondChoices = normalized
	default:
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeRendezvousNotAParticipant,
			"requester is not bound to this session",
			map[string]string{"SessionID": session.ID},
		)
	}
	session.UpdatedAt = at
	return session, nil
}

// BothSlotsFilled reports whether resolution can run.
func (s Session) BothSlotsFilled() bool {
	return len(s.FirstChoices) > 0 && len(s.SecondChoices) > 0
}
