package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mathpractice/internal/database"
	"mathpractice/internal/models"
)

const (
	// ScopeAttempt is the idempotency scope for attempt submissions.
	ScopeAttempt = "attempt"

	// MinListLimit and MaxListLimit bound every list query.
	MinListLimit = 1
	MaxListLimit = 200
)

// QuestionEventScope returns the idempotency scope for question events from
// deviceID. Keys are only unique per device.
func QuestionEventScope(deviceID string) string {
	return "mr-question:" + deviceID
}

// ClampLimit forces limit into [MinListLimit, MaxListLimit].
func ClampLimit(limit int) int {
	if limit < MinListLimit {
		return MinListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

var sessionStartColumns = []string{
	"device_id", "client_session_id", "mode", "difficulty", "count_target", "started_at_ms",
}

// EventRepository stores telemetry from practice clients: attempts, practice
// sessions and per-question events.
type EventRepository struct {
	db   *database.DB
	keys *IdempotencyRepository
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *database.DB, keys *IdempotencyRepository) *EventRepository {
	return &EventRepository{db: db, keys: keys}
}

// RecordAttempt inserts an attempt once per ClientAttemptID. A retried
// submission resolves to the original row's id with Duplicate set.
func (r *EventRepository) RecordAttempt(ctx context.Context, a *models.Attempt) (models.WriteResult, error) {
	key := deref(a.ClientAttemptID)

	result, err := r.keys.RecordIfAbsent(ctx, ScopeAttempt, key, func(ctx context.Context, tx database.DBTX) (int64, error) {
		return tx.ExecReturningID(ctx, `
			INSERT INTO attempts (session_id, student_id, question, answer, is_correct,
			                      latency_ms, score, client_attempt_id, origin)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.SessionID, a.StudentID, a.Question, a.Answer, a.IsCorrect,
			a.LatencyMs, a.Score, a.ClientAttemptID, a.Origin)
	})
	if errors.Is(err, ErrKeyUnresolved) {
		return r.resolveDuplicate(ctx, "SELECT id FROM attempts WHERE client_attempt_id = ?", key)
	}
	if err != nil {
		return models.WriteResult{}, err
	}

	a.ID = result.ID
	return result, nil
}

// GetAttempt retrieves an attempt by ID. Returns nil when it does not exist.
func (r *EventRepository) GetAttempt(ctx context.Context, id int64) (*models.Attempt, error) {
	var (
		a                                  models.Attempt
		question, answer, clientID, origin sql.NullString
		isCorrect                          sql.NullBool
		latency, score                     sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, question, answer, is_correct,
		       latency_ms, score, client_attempt_id, origin
		FROM attempts
		WHERE id = ?
	`, id).Scan(&a.ID, &a.SessionID, &a.StudentID, &question, &answer, &isCorrect,
		&latency, &score, &clientID, &origin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	a.Question = stringPtr(question)
	a.Answer = stringPtr(answer)
	a.IsCorrect = boolPtr(isCorrect)
	a.LatencyMs = intPtr(latency)
	a.Score = intPtr(score)
	a.ClientAttemptID = stringPtr(clientID)
	a.Origin = stringPtr(origin)
	return &a, nil
}

// StartOrTouchSession creates the session row or merges into it. Nil fields in
// s never overwrite stored values, so a resent start message is harmless.
func (r *EventRepository) StartOrTouchSession(ctx context.Context, s models.SessionStart) error {
	query := r.db.Dialect.UpsertCoalesceQuery("mr_sessions",
		[]string{"device_id", "client_session_id"}, sessionStartColumns)

	_, err := r.db.ExecContext(ctx, query,
		s.DeviceID, s.ClientSessionID, s.Mode, s.Difficulty, s.CountTarget, s.StartedAtMs)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// EndSession overwrites the end-of-session summary with exactly the supplied
// values, nils included. It reports whether a session row matched; a missing
// row is not an error because end may arrive before start.
//
// MySQL reports changed rows rather than matched rows, so a repeated identical
// end message reads as unmatched there.
func (r *EventRepository) EndSession(ctx context.Context, e models.SessionEnd) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE mr_sessions
		SET ended_at_ms = ?, attempted = ?, correct = ?, avg_ms = ?, duration_s = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE device_id = ? AND client_session_id = ?
	`, e.EndedAtMs, e.Attempted, e.Correct, e.AvgMs, e.DurationS, e.DeviceID, e.ClientSessionID)
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}
	return n > 0, nil
}

// RecordQuestionEvent inserts a question event once per (DeviceID, ClientEventID).
func (r *EventRepository) RecordQuestionEvent(ctx context.Context, e *models.QuestionEvent) (models.WriteResult, error) {
	key := deref(e.ClientEventID)

	result, err := r.keys.RecordIfAbsent(ctx, QuestionEventScope(e.DeviceID), key, func(ctx context.Context, tx database.DBTX) (int64, error) {
		return tx.ExecReturningID(ctx, `
			INSERT INTO mr_question_events (device_id, client_session_id, a, b, op, user_answer,
			                                correct_answer, is_correct, elapsed_ms, ts_ms, client_event_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.DeviceID, e.ClientSessionID, e.A, e.B, e.Op, e.UserAnswer,
			e.CorrectAnswer, e.IsCorrect, e.ElapsedMs, e.TimestampMs, e.ClientEventID)
	})
	if errors.Is(err, ErrKeyUnresolved) {
		return r.resolveDuplicate(ctx,
			"SELECT id FROM mr_question_events WHERE device_id = ? AND client_event_id = ?", e.DeviceID, key)
	}
	if err != nil {
		return models.WriteResult{}, err
	}

	e.ID = result.ID
	return result, nil
}

// resolveDuplicate finds the original row when the row's own unique index
// rejected a write whose idempotency claim no longer exists.
func (r *EventRepository) resolveDuplicate(ctx context.Context, query string, args ...interface{}) (models.WriteResult, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return models.WriteResult{}, fmt.Errorf("failed to resolve duplicate: %w", err)
	}
	return models.WriteResult{ID: id, Duplicate: true}, nil
}

const sessionSummaryColumns = `
	s.id, s.device_id, s.client_session_id, s.mode, s.difficulty, s.count_target,
	s.started_at_ms, s.ended_at_ms, s.attempted, s.correct, s.avg_ms, s.duration_s,
	(SELECT COUNT(*) FROM mr_question_events e
	 WHERE e.device_id = s.device_id AND e.client_session_id = s.client_session_id) AS event_count
`

// ListRecentSessions returns sessions most recently started first, optionally
// restricted to one device. Sessions without a start time sort last.
func (r *EventRepository) ListRecentSessions(ctx context.Context, deviceID string, limit int) ([]models.SessionSummary, error) {
	query := "SELECT " + sessionSummaryColumns + " FROM mr_sessions s"
	var args []interface{}
	if deviceID != "" {
		query += " WHERE s.device_id = ?"
		args = append(args, deviceID)
	}
	query += `
		ORDER BY CASE WHEN s.started_at_ms IS NULL THEN 1 ELSE 0 END,
		         s.started_at_ms DESC, s.id DESC
		LIMIT ?`
	args = append(args, ClampLimit(limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.SessionSummary{}
	for rows.Next() {
		s, err := scanSessionSummary(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetSession retrieves one session summary. Returns nil when it does not exist.
func (r *EventRepository) GetSession(ctx context.Context, deviceID, clientSessionID string) (*models.SessionSummary, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionSummaryColumns+" FROM mr_sessions s WHERE s.device_id = ? AND s.client_session_id = ?",
		deviceID, clientSessionID)

	s, err := scanSessionSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListSessionEvents returns a session's question events by client timestamp,
// events without one last, insertion order breaking ties.
func (r *EventRepository) ListSessionEvents(ctx context.Context, deviceID, clientSessionID string, limit int) ([]models.QuestionEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, client_session_id, a, b, op, user_answer, correct_answer,
		       is_correct, elapsed_ms, ts_ms, client_event_id
		FROM mr_question_events
		WHERE device_id = ? AND client_session_id = ?
		ORDER BY CASE WHEN ts_ms IS NULL THEN 1 ELSE 0 END, ts_ms ASC, id ASC
		LIMIT ?
	`, deviceID, clientSessionID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer rows.Close()

	events := []models.QuestionEvent{}
	for rows.Next() {
		var (
			e                                        models.QuestionEvent
			a, b, userAnswer, correctAnswer, elapsed sql.NullInt64
			ts                                       sql.NullInt64
			op, clientEventID                        sql.NullString
			isCorrect                                sql.NullBool
		)
		err := rows.Scan(&e.ID, &e.DeviceID, &e.ClientSessionID, &a, &b, &op, &userAnswer,
			&correctAnswer, &isCorrect, &elapsed, &ts, &clientEventID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question event: %w", err)
		}
		e.A = intPtr(a)
		e.B = intPtr(b)
		e.Op = stringPtr(op)
		e.UserAnswer = intPtr(userAnswer)
		e.CorrectAnswer = intPtr(correctAnswer)
		e.IsCorrect = boolPtr(isCorrect)
		e.ElapsedMs = intPtr(elapsed)
		e.TimestampMs = int64Ptr(ts)
		e.ClientEventID = stringPtr(clientEventID)
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSessionSummary(row rowScanner) (*models.SessionSummary, error) {
	var (
		s                                    models.SessionSummary
		mode, difficulty                     sql.NullString
		countTarget, attempted, correct      sql.NullInt64
		avgMs, durationS, startedAt, endedAt sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.DeviceID, &s.ClientSessionID, &mode, &difficulty, &countTarget,
		&startedAt, &endedAt, &attempted, &correct, &avgMs, &durationS, &s.EventCount)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.Mode = stringPtr(mode)
	s.Difficulty = stringPtr(difficulty)
	s.CountTarget = intPtr(countTarget)
	s.StartedAtMs = int64Ptr(startedAt)
	s.EndedAtMs = int64Ptr(endedAt)
	s.Attempted = intPtr(attempted)
	s.Correct = intPtr(correct)
	s.AvgMs = intPtr(avgMs)
	s.DurationS = intPtr(durationS)
	return &s, nil
}
