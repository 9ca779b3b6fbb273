package models

// Attempt is a single answered question reported by a client. Rows are
// immutable once written.
type Attempt struct {
	ID              int64
	SessionID       int64
	StudentID       int64
	Question        *string
	Answer          *string
	IsCorrect       *bool
	LatencyMs       *int
	Score           *int
	ClientAttemptID *string
	Origin          *string
}

// PracticeSession is one client-side practice run, identified by
// (DeviceID, ClientSessionID). Start fields merge on retry; end fields are
// written by the session-end message.
type PracticeSession struct {
	ID              int64
	DeviceID        string
	ClientSessionID string
	Mode            *string
	Difficulty      *string
	CountTarget     *int
	StartedAtMs     *int64
	EndedAtMs       *int64
	Attempted       *int
	Correct         *int
	AvgMs           *int
	DurationS       *int
}

// SessionSummary is a PracticeSession annotated for operator dashboards.
type SessionSummary struct {
	PracticeSession
	EventCount int
}

// SessionStart carries a session-start message. Nil fields leave stored
// values untouched.
type SessionStart struct {
	DeviceID        string
	ClientSessionID string
	Mode            *string
	Difficulty      *string
	CountTarget     *int
	StartedAtMs     *int64
}

// SessionEnd carries the final, authoritative numbers for a session.
type SessionEnd struct {
	DeviceID        string
	ClientSessionID string
	EndedAtMs       *int64
	Attempted       *int
	Correct         *int
	AvgMs           *int
	DurationS       *int
}

// QuestionEvent is one question shown during a practice session.
type QuestionEvent struct {
	ID              int64
	DeviceID        string
	ClientSessionID string
	A               *int
	B               *int
	Op              *string
	UserAnswer      *int
	CorrectAnswer   *int
	IsCorrect       *bool
	ElapsedMs       *int
	TimestampMs     *int64
	ClientEventID   *string
}

// WriteResult is the outcome of an idempotent write. Duplicate is set when
// the dedup key had already been recorded and ID refers to the original row.
type WriteResult struct {
	ID        int64
	Duplicate bool
}

// Status returns the wire status for the result.
func (r WriteResult) Status() string {
	if r.Duplicate {
		return "duplicate"
	}
	return "ok"
}
