package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mathpractice/internal/models"
	"mathpractice/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAPIKey(t *testing.T) {
	svc := &IngestService{apiKey: "secret"}

	tests := []struct {
		name     string
		provided string
		wantErr  bool
	}{
		{name: "match", provided: "secret", wantErr: false},
		{name: "missing", provided: "", wantErr: true},
		{name: "wrong", provided: "secreT", wantErr: true},
		{name: "prefix", provided: "secret-and-more", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckAPIKey(tt.provided)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	unconfigured := &IngestService{}
	assert.ErrorIs(t, unconfigured.CheckAPIKey(""), ErrUnauthorized)
}

func TestRecordAttemptValidation(t *testing.T) {
	svc := &IngestService{now: time.Now}
	ctx := context.Background()

	tests := []struct {
		name    string
		attempt models.Attempt
		field   string
	}{
		{name: "zero session", attempt: models.Attempt{SessionID: 0, StudentID: 1}, field: "session_id"},
		{name: "student overflow", attempt: models.Attempt{SessionID: 1, StudentID: validation.MaxID + 1}, field: "student_id"},
		{name: "long question", attempt: models.Attempt{SessionID: 1, StudentID: 1, Question: strPtr(strings.Repeat("q", 2001))}, field: "question"},
		{name: "negative latency", attempt: models.Attempt{SessionID: 1, StudentID: 1, LatencyMs: intP(-5)}, field: "latency_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordAttempt(ctx, &tt.attempt)

			var ve validation.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRecordAttemptDuplicate(t *testing.T) {
	svc := newTestIngestService(t)
	ctx := context.Background()

	first, err := svc.RecordAttempt(ctx, &models.Attempt{SessionID: 1, StudentID: 2, ClientAttemptID: strPtr("X")})
	require.NoError(t, err)
	second, err := svc.RecordAttempt(ctx, &models.Attempt{SessionID: 1, StudentID: 2, ClientAttemptID: strPtr("X")})
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ID, second.ID)

	stored, err := svc.Attempt(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.StudentID)

	_, err = svc.Attempt(ctx, first.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordAttemptBlankKeyIsNotDeduplicated(t *testing.T) {
	svc := newTestIngestService(t)
	ctx := context.Background()

	a, err := svc.RecordAttempt(ctx, &models.Attempt{SessionID: 1, StudentID: 2, ClientAttemptID: strPtr("")})
	require.NoError(t, err)
	b, err := svc.RecordAttempt(ctx, &models.Attempt{SessionID: 1, StudentID: 2, ClientAttemptID: strPtr("  ")})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, b.Duplicate)
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestIngestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EndSession(ctx, models.SessionEnd{DeviceID: "d1", ClientSessionID: "s1", Attempted: intP(4)}))

	_, err := svc.Session(ctx, "d1", "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.StartSession(ctx, models.SessionStart{DeviceID: "d1", ClientSessionID: "s1", Mode: strPtr("add")}))
	require.NoError(t, svc.StartSession(ctx, models.SessionStart{DeviceID: "d1", ClientSessionID: "s1", Difficulty: strPtr("hard")}))
	require.NoError(t, svc.EndSession(ctx, models.SessionEnd{DeviceID: "d1", ClientSessionID: "s1", Attempted: intP(4), Correct: intP(3)}))

	s, err := svc.Session(ctx, "d1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "add", *s.Mode)
	assert.Equal(t, "hard", *s.Difficulty)
	assert.Equal(t, 3, *s.Correct)
}

func TestStartSessionRejectsFutureTimestamp(t *testing.T) {
	svc := &IngestService{now: time.Now}

	err := svc.StartSession(context.Background(), models.SessionStart{
		DeviceID: "d1", ClientSessionID: "s1",
		StartedAtMs: i64P(time.Now().Add(72 * time.Hour).UnixMilli()),
	})

	var ve validation.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "started_at_ms", ve.Field)
}

func TestQuestionEventsAndListing(t *testing.T) {
	svc := newTestIngestService(t)
	ctx := context.Background()

	for _, device := range []string{"d1", "d2"} {
		result, err := svc.RecordQuestionEvent(ctx, &models.QuestionEvent{
			DeviceID: device, ClientSessionID: "s1", A: intP(6), B: intP(7), Op: strPtr("*"),
			UserAnswer: intP(42), CorrectAnswer: intP(42), ClientEventID: strPtr("Q1"),
		})
		require.NoError(t, err)
		assert.False(t, result.Duplicate, device)
	}

	again, err := svc.RecordQuestionEvent(ctx, &models.QuestionEvent{DeviceID: "d1", ClientSessionID: "s1", ClientEventID: strPtr("Q1")})
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	events, err := svc.SessionEvents(ctx, "d1", "s1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "*", *events[0].Op)

	_, err = svc.SessionEvents(ctx, "", "s1", 10)
	var ve validation.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, svc.StartSession(ctx, models.SessionStart{DeviceID: "d1", ClientSessionID: "s1", StartedAtMs: i64P(100)}))
	sessions, err := svc.RecentSessions(ctx, "d1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].EventCount)
}

func TestLabelFieldsRejectedAboveBound(t *testing.T) {
	svc := &IngestService{now: time.Now}
	ctx := context.Background()
	tooLong := strPtr(strings.Repeat("m", validation.MaxLabelLen+1))

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{
			name: "mode",
			call: func() error {
				return svc.StartSession(ctx, models.SessionStart{DeviceID: "d1", ClientSessionID: "s1", Mode: tooLong})
			},
			field: "mode",
		},
		{
			name: "difficulty",
			call: func() error {
				return svc.StartSession(ctx, models.SessionStart{DeviceID: "d1", ClientSessionID: "s1", Difficulty: tooLong})
			},
			field: "difficulty",
		},
		{
			name: "op",
			call: func() error {
				_, err := svc.RecordQuestionEvent(ctx, &models.QuestionEvent{DeviceID: "d1", ClientSessionID: "s1", Op: tooLong})
				return err
			},
			field: "op",
		},
		{
			name: "origin",
			call: func() error {
				_, err := svc.RecordAttempt(ctx, &models.Attempt{SessionID: 1, StudentID: 1, Origin: tooLong})
				return err
			},
			field: "origin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve validation.ValidationError
			require.True(t, errors.As(tt.call(), &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLabelFieldsStoredAtBound(t *testing.T) {
	svc := newTestIngestService(t)
	ctx := context.Background()
	label := strings.Repeat("m", validation.MaxLabelLen)

	require.NoError(t, svc.StartSession(ctx, models.SessionStart{
		DeviceID: "d1", ClientSessionID: "s1", Mode: strPtr(label), Difficulty: strPtr(label),
	}))
	_, err := svc.RecordQuestionEvent(ctx, &models.QuestionEvent{DeviceID: "d1", ClientSessionID: "s1", Op: strPtr(label)})
	require.NoError(t, err)

	s, err := svc.Session(ctx, "d1", "s1")
	require.NoError(t, err)
	assert.Equal(t, label, *s.Mode)
	assert.Equal(t, label, *s.Difficulty)
}
