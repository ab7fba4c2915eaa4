package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func fixedID(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

func waitingSession(t *testing.T, at time.Time) Session {
	t.Helper()
	session, err := CreateSession(CreateSessionInput{
		PairID:      "pair-1",
		RequesterID: "user-a",
	}, fixedClock(at), fixedID("session-1"))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestCreateSessionDefaults(t *testing.T) {
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
	session := waitingSession(t, at)

	if session.ID != "session-1" {
		t.Fatalf("id = %q, want session-1", session.ID)
	}
	if session.Status != SessionStatusWaiting {
		t.Fatalf("status = %s, want waiting", session.Status)
	}
	if session.FirstParticipantID != "user-a" {
		t.Fatalf("first participant = %q, want user-a", session.FirstParticipantID)
	}
	if session.SecondParticipantID != "" {
		t.Fatalf("second participant = %q, want unset", session.SecondParticipantID)
	}
	if !session.ExpiresAt.Equal(at.Add(DefaultDecisionWindow)) {
		t.Fatalf("expires at = %v, want %v", session.ExpiresAt, at.Add(DefaultDecisionWindow))
	}
}

func TestCreateSessionValidation(t *testing.T) {
	_, err := CreateSession(CreateSessionInput{RequesterID: "user-a"}, nil, fixedID("x"))
	if apperrors.CodeOf(err) != apperrors.CodeRendezvousPairIDEmpty {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeRendezvousPairIDEmpty)
	}
	_, err = CreateSession(CreateSessionInput{PairID: "pair-1"}, nil, fixedID("x"))
	if apperrors.CodeOf(err) != apperrors.CodeRendezvousUserIDEmpty {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeRendezvousUserIDEmpty)
	}
}

func TestCreateSessionIDGeneratorFailure(t *testing.T) {
	wantErr := errors.New("entropy exhausted")
	_, err := CreateSession(CreateSessionInput{PairID: "pair-1", RequesterID: "user-a"}, nil, func() (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestSessionStatusCodec(t *testing.T) {
	for _, status := range []SessionStatus{SessionStatusWaiting, SessionStatusComplete, SessionStatusExpired} {
		parsed, err := ParseSessionStatus(status.String())
		if err != nil {
			t.Fatalf("parse %s: %v", status, err)
		}
		if parsed != status {
			t.Fatalf("round trip of %s gave %s", status, parsed)
		}
	}
	if _, err := ParseSessionStatus("bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestNormalizeChoices(t *testing.T) {
	choices, err := NormalizeChoices([]string{" pizza ", "", "ramen", "pizza", "  "})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []string{"pizza", "ramen"}
	if len(choices) != len(want) {
		t.Fatalf("choices = %v, want %v", choices, want)
	}
	for i := range want {
		if choices[i] != want[i] {
			t.Fatalf("choices = %v, want %v", choices, want)
		}
	}

	_, err = NormalizeChoices([]string{"  ", ""})
	if apperrors.CodeOf(err) != apperrors.CodeRendezvousChoicesEmpty {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeRendezvousChoicesEmpty)
	}
}

func TestApplyChoicesRoleAssignment(t *testing.T) {
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
	session := waitingSession(t, at)

	session, err := ApplyChoices(session, "user-a", []string{"pizza", "ramen"}, fixedClock(at.Add(time.Minute)))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(session.FirstChoices) != 2 {
		t.Fatalf("first choices = %v, want two entries", session.FirstChoices)
	}
	if session.SecondParticipantID != "" {
		t.Fatal("second participant bound too early")
	}

	session, err = ApplyChoices(session, "user-b", []string{"ramen", "tacos"}, fixedClock(at.Add(2*time.Minute)))
	if err != nil {
		t.Fatalf("partner submit: %v", err)
	}
	if session.SecondParticipantID != "user-b" {
		t.Fatalf("second participant = %q, want user-b", session.SecondParticipantID)
	}
	if len(session.SecondChoices) != 2 {
		t.Fatalf("second choices = %v, want two entries", session.SecondChoices)
	}
}

func TestApplyChoicesResubmissionReplacesSlot(t *testing.T) {
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
	session := waitingSession(t, at)

	session, err := ApplyChoices(session, "user-a", []string{"pizza"}, fixedClock(at))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	session, err = ApplyChoices(session, "user-a", []string{"sushi", "tacos"}, fixedClock(at.Add(time.Minute)))
	if err != nil {
		t.Fatalf("re-submit: %v", err)
	}
	if len(session.FirstChoices) != 2 || session.FirstChoices[0] != "sushi" {
		t.Fatalf("first choices = %v, want latest submission only", session.FirstChoices)
	}

	// The bound partner replaces their own slot the same way.
	session, err = ApplyChoices(session, "user-b", []string{"ramen"}, fixedClock(at.Add(time.Minute)))
	if err != nil {
		t.Fatalf("partner submit: %v", err)
	}
	session, err = ApplyChoices(session, "user-b", []string{"tacos"}, fixedClock(at.Add(2*time.Minute)))
	if err != nil {
		t.Fatalf("partner re-submit: %v", err)
	}
	if len(session.SecondChoices) != 1 || session.SecondChoices[0] != "tacos" {
		t.Fatalf("second choices = %v, want latest submission only", session.SecondChoices)
	}
}

func TestApplyChoicesThirdPartyRejected(t *testing.T) {
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
	session := waitingSession(t, at)

	var err error
	session, err = ApplyChoices(session, "user-b", []string{"ramen"}, fixedClock(at))
	if err != nil {
		t.Fatalf("partner submit: %v", err)
	}

	before := append([]string(nil), session.SecondChoices...)
	_, err = ApplyChoices(session, "user-c", []string{"dumplings"}, fixedClock(at))
	if apperrors.CodeOf(err) != apperrors.CodeRendezvousNotAParticipant {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeRendezvousNotAParticipant)
	}
	if len(session.SecondChoices) != len(before) {
		t.Fatalf("slot mutated by rejected submission: %v", session.SecondChoices)
	}
}

func TestApplyChoicesExpiredSessionUnavailable(t *testing.T) {
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
	session := waitingSession(t, at)

	late := at.Add(DefaultDecisionWindow + time.Second)
	_, err := ApplyChoices(session, "user-a", []string{"pizza"}, fixedClock(late))
	if apperrors.CodeOf(err) != apperrors.CodeRendezvousSessionUnavailable {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeRendezvousSessionUnavailable)
	}
}

func TestApplyChoicesCompleteSessionUnavailable(t *testing.T) {
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
	session := waitingSession(t, at)
	session.Status = SessionStatusComplete

	_, err := ApplyChoices(session, "user-a", []string{"pizza"}, fixedClock(at))
	if apperrors.CodeOf(err) != apperrors.CodeRendezvousSessionUnavailable {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeRendezvousSessionUnavailable)
	}
}

func TestExpiredAtBoundary(t *testing.T) {
	at := time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
	session := waitingSession(t, at)

	if session.ExpiredAt(session.ExpiresAt.Add(-time.Nanosecond)) {
		t.Fatal("session expired before the deadline")
	}
	if !session.ExpiredAt(session.ExpiresAt) {
		t.Fatal("session not expired at the deadline")
	}
}
