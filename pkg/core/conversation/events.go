package conversation

import "github.com/bclt-academy/voicequiz/pkg/core/types"

// Event is the interface for all controller events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted on every state transition.
type StateChangedEvent struct {
	From State `json:"from"`
	To   State `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TextChangedEvent is emitted when the displayed text changes.
type TextChangedEvent struct {
	Text string `json:"text"`
}

func (e *TextChangedEvent) EventType() string { return "text.changed" }

// SessionStartedEvent is emitted once a remote session exists.
type SessionStartedEvent struct {
	SessionID string          `json:"session_id"`
	Question  *types.Question `json:"question,omitempty"`
}

func (e *SessionStartedEvent) EventType() string { return "session.started" }

// QuestionChangedEvent is emitted when a turn result brings the next question.
type QuestionChangedEvent struct {
	Question *types.Question `json:"question"`
}

func (e *QuestionChangedEvent) EventType() string { return "question.changed" }

// ErrorEvent carries a recoverable, user-visible error.
type ErrorEvent struct {
	Err *Error `json:"error"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// SummaryEvent is emitted when the session has been finalized.
type SummaryEvent struct {
	Summary Summary `json:"summary"`
}

func (e *SummaryEvent) EventType() string { return "summary.ready" }
