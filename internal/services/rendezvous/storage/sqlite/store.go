// Package sqlite provides a SQLite-backed rendezvous storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/duet.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/domain"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/storage"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists rendezvous state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func encodeChoices(choices []string) (string, error) {
	if len(choices) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(choices)
	if err != nil {
		return "", fmt.Errorf("encode choices: %w", err)
	}
	return string(raw), nil
}

func decodeChoices(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	var choices []string
	if err := json.Unmarshal([]byte(value), &choices); err != nil {
		return nil, fmt.Errorf("decode choices: %w", err)
	}
	return choices, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Open opens a SQLite rendezvous store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSession inserts a new waiting session. The partial unique index on
// (pair_id) WHERE status = 'waiting' enforces the single-waiting-session
// invariant at the storage layer, so concurrent creates for the same pair
// collapse into one winner.
func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.PairID) == "" {
		return fmt.Errorf("pair id is required")
	}

	firstChoices, err := encodeChoices(session.FirstChoices)
	if err != nil {
		return err
	}
	secondChoices, err := encodeChoices(session.SecondChoices)
	if err != nil {
		return err
	}
	agreedChoices, err := encodeChoices(session.AgreedChoices)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (
		   id, pair_id, status,
		   first_participant_id, second_participant_id,
		   first_choices, second_choices, agreed_choices, decided_candidate,
		   created_at, updated_at, expires_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.PairID,
		session.Status.String(),
		session.FirstParticipantID,
		session.SecondParticipantID,
		firstChoices,
		secondChoices,
		agreedChoices,
		session.DecidedCandidate,
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
		toMillis(session.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "sessions.id") {
				return storage.ErrAlreadyExists
			}
			return storage.ErrWaitingSessionExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, pair_id, status,
	 first_participant_id, second_participant_id,
	 first_choices, second_choices, agreed_choices, decided_candidate,
	 created_at, updated_at, expires_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var (
		session       domain.Session
		status        string
		firstChoices  string
		secondChoices string
		agreedChoices string
		createdAt     int64
		updatedAt     int64
		expiresAt     int64
	)
	err := row.Scan(
		&session.ID,
		&session.PairID,
		&status,
		&session.FirstParticipantID,
		&session.SecondParticipantID,
		&firstChoices,
		&secondChoices,
		&agreedChoices,
		&session.DecidedCandidate,
		&createdAt,
		&updatedAt,
		&expiresAt,
	)
	if err != nil {
		return domain.Session{}, err
	}
	session.Status, err = domain.ParseSessionStatus(status)
	if err != nil {
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	if session.FirstChoices, err = decodeChoices(firstChoices); err != nil {
		return domain.Session{}, err
	}
	if session.SecondChoices, err = decodeChoices(secondChoices); err != nil {
		return domain.Session{}, err
	}
	if session.AgreedChoices, err = decodeChoices(agreedChoices); err != nil {
		return domain.Session{}, err
	}
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	session.ExpiresAt = fromMillis(expiresAt)
	return session, nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		sessionID,
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// GetWaitingSessionByPair returns the pair's waiting session, if any.
func (s *Store) GetWaitingSessionByPair(ctx context.Context, pairID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	pairID = strings.TrimSpace(pairID)
	if pairID == "" {
		return domain.Session{}, fmt.Errorf("pair id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE pair_id = ? AND status = ?`,
		pairID,
		domain.SessionStatusWaiting.String(),
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get waiting session: %w", err)
	}
	return session, nil
}

// GetLatestSessionByPair returns the pair's most recently created session
// regardless of status.
func (s *Store) GetLatestSessionByPair(ctx context.Context, pairID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	pairID = strings.TrimSpace(pairID)
	if pairID == "" {
		return domain.Session{}, fmt.Errorf("pair id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE pair_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		pairID,
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get latest session: %w", err)
	}
	return session, nil
}

// UpdateSession rewrites one session row guarded by the expected updated_at
// value. A zero-row update means the row moved or vanished; the two cases are
// told apart with a follow-up existence check.
func (s *Store) UpdateSession(ctx context.Context, session domain.Session, expectUpdatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	firstChoices, err := encodeChoices(session.FirstChoices)
	if err != nil {
		return err
	}
	secondChoices, err := encodeChoices(session.SecondChoices)
	if err != nil {
		return err
	}
	agreedChoices, err := encodeChoices(session.AgreedChoices)
	if err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions SET
		   status = ?,
		   second_participant_id = ?,
		   first_choices = ?,
		   second_choices = ?,
		   agreed_choices = ?,
		   decided_candidate = ?,
		   updated_at = ?
		 WHERE id = ? AND updated_at = ?`,
		session.Status.String(),
		session.SecondParticipantID,
		firstChoices,
		secondChoices,
		agreedChoices,
		session.DecidedCandidate,
		toMillis(session.UpdatedAt),
		session.ID,
		toMillis(expectUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		var exists int
		row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, session.ID)
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("update session: %w", scanErr)
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// AppendOutcome inserts one decided outcome. The unique index on session_id
// makes the append idempotent per session.
func (s *Store) AppendOutcome(ctx context.Context, outcome domain.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(outcome.ID) == "" {
		return fmt.Errorf("outcome id is required")
	}
	if strings.TrimSpace(outcome.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO outcomes (
		   id, pair_id, session_id, candidate, decided_by_user_id, decided_at
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		outcome.ID,
		outcome.PairID,
		outcome.SessionID,
		outcome.Candidate,
		outcome.DecidedByUserID,
		toMillis(outcome.DecidedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("append outcome: %w", err)
	}
	return nil
}

// GetOutcomeBySession returns the decided outcome recorded for one session.
func (s *Store) GetOutcomeBySession(ctx context.Context, sessionID string) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Outcome{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Outcome{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, pair_id, session_id, candidate, decided_by_user_id, decided_at
		 FROM outcomes
		 WHERE session_id = ?`,
		sessionID,
	)
	var (
		outcome   domain.Outcome
		decidedAt int64
	)
	err := row.Scan(
		&outcome.ID,
		&outcome.PairID,
		&outcome.SessionID,
		&outcome.Candidate,
		&outcome.DecidedByUserID,
		&decidedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Outcome{}, storage.ErrNotFound
		}
		return domain.Outcome{}, fmt.Errorf("get outcome: %w", err)
	}
	outcome.DecidedAt = fromMillis(decidedAt)
	return outcome, nil
}

// ListOutcomes returns one page of decided outcomes for a pair, newest first.
// The page token is the id of the last outcome on the previous page; rows are
// keyed by (decided_at DESC, id DESC) so the cursor is stable across inserts.
func (s *Store) ListOutcomes(ctx context.Context, pairID string, filter storage.OutcomeListFilter, pageSize int, pageToken string) (storage.OutcomePage, error) {
	if err := ctx.Err(); err != nil {
		return storage.OutcomePage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.OutcomePage{}, fmt.Errorf("storage is not configured")
	}
	pairID = strings.TrimSpace(pairID)
	if pairID == "" {
		return storage.OutcomePage{}, fmt.Errorf("pair id is required")
	}
	if pageSize <= 0 {
		return storage.OutcomePage{}, fmt.Errorf("page size must be greater than zero")
	}

	query := `SELECT id, pair_id, session_id, candidate, decided_by_user_id, decided_at
	 FROM outcomes
	 WHERE pair_id = ?`
	args := []any{pairID}
	if filter.SQL != "" {
		query += ` AND (` + filter.SQL + `)`
		args = append(args, filter.Args...)
	}

	pageToken = strings.TrimSpace(pageToken)
	if pageToken != "" {
		var cursorDecidedAt int64
		row := s.sqlDB.QueryRowContext(
			ctx,
			`SELECT decided_at FROM outcomes WHERE id = ? AND pair_id = ?`,
			pageToken,
			pairID,
		)
		if err := row.Scan(&cursorDecidedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.OutcomePage{}, storage.ErrNotFound
			}
			return storage.OutcomePage{}, fmt.Errorf("list outcomes: %w", err)
		}
		query += ` AND (decided_at < ? OR (decided_at = ? AND id < ?))`
		args = append(args, cursorDecidedAt, cursorDecidedAt, pageToken)
	}
	query += ` ORDER BY decided_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.OutcomePage{}, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	page := storage.OutcomePage{
		Outcomes: make([]domain.Outcome, 0, pageSize),
	}
	for rows.Next() {
		var (
			outcome   domain.Outcome
			decidedAt int64
		)
		if err := rows.Scan(
			&outcome.ID,
			&outcome.PairID,
			&outcome.SessionID,
			&outcome.Candidate,
			&outcome.DecidedByUserID,
			&decidedAt,
		); err != nil {
			return storage.OutcomePage{}, fmt.Errorf("list outcomes: %w", err)
		}
		outcome.DecidedAt = fromMillis(decidedAt)
		page.Outcomes = append(page.Outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return storage.OutcomePage{}, fmt.Errorf("list outcomes: %w", err)
	}
	if len(page.Outcomes) > pageSize {
		page.NextPageToken = page.Outcomes[pageSize-1].ID
		page.Outcomes = page.Outcomes[:pageSize]
	}

	return page, nil
}

// AppendTelemetryEvent inserts one observability event row.
func (s *Store) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(event.Name) == "" {
		return fmt.Errorf("event name is required")
	}

	attributes := ""
	if len(event.Attributes) > 0 {
		raw, err := json.Marshal(event.Attributes)
		if err != nil {
			return fmt.Errorf("encode event attributes: %w", err)
		}
		attributes = string(raw)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (
		   id, name, pair_id, session_id, attributes, occurred_at
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Name,
		event.PairID,
		event.SessionID,
		attributes,
		toMillis(event.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

var _ storage.SessionStore = (*Store)(nil)
var _ storage.OutcomeStore = (*Store)(nil)
var _ storage.TelemetryStore = (*Store)(nil)
