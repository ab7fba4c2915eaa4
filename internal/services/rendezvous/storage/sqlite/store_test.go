package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/duet.space/internal/services/rendezvous/domain"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/rendezvous.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSession(id, pairID string, at time.Time) domain.Session {
	return domain.Session{
		ID:                 id,
		PairID:             pairID,
		Status:             domain.SessionStatusWaiting,
		FirstParticipantID: "user-a",
		CreatedAt:          at,
		UpdatedAt:          at,
		ExpiresAt:          at.Add(domain.DefaultDecisionWindow),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	session := testSession("session-1", "pair-1", at)
	session.FirstChoices = []string{"pizza", "ramen"}
	if err := store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := store.GetSession(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.PairID != "pair-1" {
		t.Fatalf("pair id = %q, want pair-1", got.PairID)
	}
	if got.Status != domain.SessionStatusWaiting {
		t.Fatalf("status = %s, want waiting", got.Status)
	}
	if len(got.FirstChoices) != 2 || got.FirstChoices[0] != "pizza" {
		t.Fatalf("first choices = %v, want [pizza ramen]", got.FirstChoices)
	}
	if got.SecondChoices != nil {
		t.Fatalf("second choices = %v, want nil", got.SecondChoices)
	}
	if !got.ExpiresAt.Equal(at.Add(domain.DefaultDecisionWindow)) {
		t.Fatalf("expires at = %v", got.ExpiresAt)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateSessionWaitingPairConflict(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	if err := store.CreateSession(context.Background(), testSession("session-1", "pair-1", at)); err != nil {
		t.Fatalf("create session: %v", err)
	}
	err := store.CreateSession(context.Background(), testSession("session-2", "pair-1", at))
	if !errors.Is(err, storage.ErrWaitingSessionExists) {
		t.Fatalf("err = %v, want ErrWaitingSessionExists", err)
	}

	// A different pair is unaffected, and a terminal session for the same
	// pair frees the slot for a new waiting one.
	if err := store.CreateSession(context.Background(), testSession("session-3", "pair-2", at)); err != nil {
		t.Fatalf("create session for other pair: %v", err)
	}
	expired := testSession("session-1", "pair-1", at)
	expired.Status = domain.SessionStatusExpired
	expired.UpdatedAt = at.Add(time.Minute)
	if err := store.UpdateSession(context.Background(), expired, at); err != nil {
		t.Fatalf("expire session: %v", err)
	}
	if err := store.CreateSession(context.Background(), testSession("session-4", "pair-1", at.Add(time.Hour))); err != nil {
		t.Fatalf("create after expiry: %v", err)
	}
}

func TestGetWaitingSessionByPair(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	if _, err := store.GetWaitingSessionByPair(context.Background(), "pair-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := store.CreateSession(context.Background(), testSession("session-1", "pair-1", at)); err != nil {
		t.Fatalf("create session: %v", err)
	}
	got, err := store.GetWaitingSessionByPair(context.Background(), "pair-1")
	if err != nil {
		t.Fatalf("get waiting session: %v", err)
	}
	if got.ID != "session-1" {
		t.Fatalf("id = %q, want session-1", got.ID)
	}
}

func TestGetLatestSessionByPair(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	if _, err := store.GetLatestSessionByPair(context.Background(), "pair-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	old := testSession("session-1", "pair-1", at)
	old.Status = domain.SessionStatusComplete
	if err := store.CreateSession(context.Background(), old); err != nil {
		t.Fatalf("create old session: %v", err)
	}
	if err := store.CreateSession(context.Background(), testSession("session-2", "pair-1", at.Add(time.Hour))); err != nil {
		t.Fatalf("create new session: %v", err)
	}

	got, err := store.GetLatestSessionByPair(context.Background(), "pair-1")
	if err != nil {
		t.Fatalf("get latest session: %v", err)
	}
	if got.ID != "session-2" {
		t.Fatalf("id = %q, want session-2", got.ID)
	}
}

func TestUpdateSessionVersionGuard(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	if err := store.CreateSession(context.Background(), testSession("session-1", "pair-1", at)); err != nil {
		t.Fatalf("create session: %v", err)
	}

	updated := testSession("session-1", "pair-1", at)
	updated.SecondParticipantID = "user-b"
	updated.SecondChoices = []string{"ramen"}
	updated.UpdatedAt = at.Add(time.Minute)
	if err := store.UpdateSession(context.Background(), updated, at); err != nil {
		t.Fatalf("update session: %v", err)
	}

	// A writer holding the stale version loses.
	stale := updated
	stale.UpdatedAt = at.Add(2 * time.Minute)
	if err := store.UpdateSession(context.Background(), stale, at); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}

	missing := testSession("missing", "pair-1", at)
	if err := store.UpdateSession(context.Background(), missing, at); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	got, err := store.GetSession(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.SecondParticipantID != "user-b" {
		t.Fatalf("second participant = %q, want user-b", got.SecondParticipantID)
	}
	if len(got.SecondChoices) != 1 || got.SecondChoices[0] != "ramen" {
		t.Fatalf("second choices = %v, want [ramen]", got.SecondChoices)
	}
}

func TestAppendOutcomeIdempotentPerSession(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	outcome := domain.Outcome{
		ID:              "outcome-1",
		PairID:          "pair-1",
		SessionID:       "session-1",
		Candidate:       "ramen",
		DecidedByUserID: "user-b",
		DecidedAt:       at,
	}
	if err := store.AppendOutcome(context.Background(), outcome); err != nil {
		t.Fatalf("append outcome: %v", err)
	}

	duplicate := outcome
	duplicate.ID = "outcome-2"
	if err := store.AppendOutcome(context.Background(), duplicate); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}

	got, err := store.GetOutcomeBySession(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("get outcome: %v", err)
	}
	if got.ID != "outcome-1" || got.Candidate != "ramen" {
		t.Fatalf("outcome = %+v", got)
	}
	if _, err := store.GetOutcomeBySession(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListOutcomesPagination(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		outcome := domain.Outcome{
			ID:              fmt.Sprintf("outcome-%d", i),
			PairID:          "pair-1",
			SessionID:       fmt.Sprintf("session-%d", i),
			Candidate:       "ramen",
			DecidedByUserID: "user-b",
			DecidedAt:       at.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AppendOutcome(context.Background(), outcome); err != nil {
			t.Fatalf("append outcome %d: %v", i, err)
		}
	}
	other := domain.Outcome{
		ID:              "outcome-other",
		PairID:          "pair-2",
		SessionID:       "session-other",
		Candidate:       "tacos",
		DecidedByUserID: "user-z",
		DecidedAt:       at,
	}
	if err := store.AppendOutcome(context.Background(), other); err != nil {
		t.Fatalf("append other pair outcome: %v", err)
	}

	first, err := store.ListOutcomes(context.Background(), "pair-1", storage.OutcomeListFilter{}, 3, "")
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(first.Outcomes) != 3 {
		t.Fatalf("first page len = %d, want 3", len(first.Outcomes))
	}
	if first.Outcomes[0].ID != "outcome-4" {
		t.Fatalf("first item = %q, want newest outcome-4", first.Outcomes[0].ID)
	}
	if first.NextPageToken == "" {
		t.Fatal("next page token missing")
	}

	second, err := store.ListOutcomes(context.Background(), "pair-1", storage.OutcomeListFilter{}, 3, first.NextPageToken)
	if err != nil {
		t.Fatalf("list outcomes page 2: %v", err)
	}
	if len(second.Outcomes) != 2 {
		t.Fatalf("second page len = %d, want 2", len(second.Outcomes))
	}
	if second.NextPageToken != "" {
		t.Fatalf("next page token = %q, want empty", second.NextPageToken)
	}
	for _, outcome := range append(first.Outcomes, second.Outcomes...) {
		if outcome.PairID != "pair-1" {
			t.Fatalf("foreign pair outcome leaked: %+v", outcome)
		}
	}

	if _, err := store.ListOutcomes(context.Background(), "pair-1", storage.OutcomeListFilter{}, 3, "bogus"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for bogus token", err)
	}
}

func TestListOutcomesWithFilter(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	for i, candidate := range []string{"ramen", "tacos", "ramen"} {
		outcome := domain.Outcome{
			ID:              fmt.Sprintf("outcome-%d", i),
			PairID:          "pair-1",
			SessionID:       fmt.Sprintf("session-%d", i),
			Candidate:       candidate,
			DecidedByUserID: "user-a",
			DecidedAt:       at.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AppendOutcome(context.Background(), outcome); err != nil {
			t.Fatalf("append outcome %d: %v", i, err)
		}
	}

	page, err := store.ListOutcomes(context.Background(), "pair-1", storage.OutcomeListFilter{
		SQL:  "candidate = ?",
		Args: []any{"ramen"},
	}, 10, "")
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(page.Outcomes) != 2 {
		t.Fatalf("filtered len = %d, want 2", len(page.Outcomes))
	}
	for _, outcome := range page.Outcomes {
		if outcome.Candidate != "ramen" {
			t.Fatalf("filter leaked candidate %q", outcome.Candidate)
		}
	}
}

func TestAppendTelemetryEvent(t *testing.T) {
	store := openTestStore(t)
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

	err := store.AppendTelemetryEvent(context.Background(), storage.TelemetryEvent{
		ID:         "event-1",
		Name:       "outcome_append_failed",
		PairID:     "pair-1",
		SessionID:  "session-1",
		Attributes: map[string]string{"error": "disk full"},
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("append telemetry event: %v", err)
	}

	if err := store.AppendTelemetryEvent(context.Background(), storage.TelemetryEvent{ID: "event-2", OccurredAt: at}); err == nil {
		t.Fatal("expected event without name to fail")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("   "); err == nil {
		t.Fatal("expected open with blank path to fail")
	}
}
