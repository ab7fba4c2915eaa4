package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// Resolve computes the agreed outcome and finalizes the session.
//
// # Determinism
//
// The agreed set is a pure function of the two choice sets: the exact,
// case-sensitive intersection, ordered by the first participant's
// submission. The decided candidate is drawn uniformly from the agreed set
// using the provided seed, so Resolve is deterministic with respect to
// (choices, seed) while independent sessions with fresh seeds may decide
// differently on identical inputs.
//
// An empty intersection is a valid terminal outcome: the session completes
// with no decided candidate and the caller presents "no overlap" rather
// than an error.
func Resolve(session Session, seed int64, now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if session.Status != SessionStatusWaiting {
		return Session{}, fmt.Errorf("resolve requires a waiting session, got %s", session.Status)
	}
	if !session.BothSlotsFilled() {
		return Session{}, fmt.Errorf("resolve requires both choice slots to be filled")
	}

	second := make(map[string]struct{}, len(session.SecondChoices))
	for _, choice := range session.SecondChoices {
		second[choice] = struct{}{}
	}

	agreed := make([]string, 0, len(session.FirstChoices))
	for _, choice := range session.FirstChoices {
		if _, ok := second[choice]; ok {
			agreed = append(agreed, choice)
		}
	}

	session.AgreedChoices = agreed
	session.DecidedCandidate = ""
	if len(agreed) > 0 {
		rng := rand.New(rand.NewSource(seed))
		session.DecidedCandidate = agreed[rng.Intn(len(agreed))]
	}
	session.Status = SessionStatusComplete
	session.UpdatedAt = now().UTC()
	return session, nil
}
