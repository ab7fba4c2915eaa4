package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/duet.space/internal/platform/id"
)

// Outcome is the immutable, append-only record of one decided session.
// It is the durable trace consumed by the couple's history surfaces.
type Outcome struct {
	ID              string
	PairID          string
	SessionID       string
	Candidate       string
	DecidedByUserID string // the participant whose submission triggered resolution
	DecidedAt       time.Time
}

// NewOutcome builds the outcome record for a completed, decided session.
func NewOutcome(session Session, decidedByUserID string, now func() time.Time, idGenerator func() (string, error)) (Outcome, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if session.Status != SessionStatusComplete {
		return Outcome{}, fmt.Errorf("outcome requires a complete session, got %s", session.Status)
	}
	if session.DecidedCandidate == "" {
		return Outcome{}, fmt.Errorf("outcome requires a decided candidate")
	}
	decidedByUserID = strings.TrimSpace(decidedByUserID)
	if decidedByUserID == "" {
		return Outcome{}, fmt.Errorf("deciding participant is required")
	}

	outcomeID, err := idGenerator()
	if err != nil {
		return Outcome{}, fmt.Errorf("generate outcome id: %w", err)
	}
	return Outcome{
		ID:              outcomeID,
		PairID:          session.PairID,
		SessionID:       session.ID,
		Candidate:       session.DecidedCandidate,
		DecidedByUserID: decidedByUserID,
		DecidedAt:       now().UTC(),
	}, nil
}
