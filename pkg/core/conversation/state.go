package conversation

// State is the controller's single state variable.
type State int

const (
	// StateStart is idle, before a session exists.
	StateStart State = iota
	// StateAISpeaking is while prompt or feedback audio plays.
	StateAISpeaking
	// StateUserTurn waits for the microphone to be pressed.
	StateUserTurn
	// StateRecording is while the recorder captures the answer.
	StateRecording
	// StateProcessing waits for the buffer and the remote turn result.
	StateProcessing
	// StateSummary is terminal for a finished session.
	StateSummary
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAISpeaking:
		return "ai_speaking"
	case StateUserTurn:
		return "user_turn"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateSummary:
		return "summary"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether a session is in progress in this state.
func (s State) Active() bool {
	switch s {
	case StateAISpeaking, StateUserTurn, StateRecording, StateProcessing:
		return true
	default:
		return false
	}
}
