package types

import "strings"

// StartSessionResponse is returned when a conversation is opened.
type StartSessionResponse struct {
	SessionID string    `json:"sessionId"`
	Question  *Question `json:"question"`
}

// TurnResult is the outcome of one submitted answer. A nil NextQuestion
// means the backend has no further prompt for this turn.
type TurnResult struct {
	TranscribedText     string    `json:"transcribedText,omitempty"`
	Explanation         string    `json:"explanation,omitempty"`
	FeedbackText        string    `json:"feedbackText,omitempty"`
	FeedbackAudioBase64 string    `json:"feedbackAudioBase64,omitempty"`
	NextQuestion        *Question `json:"nextQuestion,omitempty"`
}

// FeedbackComposite joins the transcription, explanation and feedback text,
// skipping empty parts, separated by a blank line.
func (r *TurnResult) FeedbackComposite() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{r.TranscribedText, r.Explanation, r.FeedbackText} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HasFeedbackAudio reports whether synthesized feedback accompanies the result.
func (r *TurnResult) HasFeedbackAudio() bool {
	return r != nil && strings.TrimSpace(r.FeedbackAudioBase64) != ""
}

// SummaryResponse is the backend aggregate for a finished session.
type SummaryResponse struct {
	CorrectCount          int     `json:"correctCount"`
	PartiallyCorrectCount *int    `json:"partiallyCorrectCount,omitempty"`
	IncorrectCount        *int    `json:"incorrectCount,omitempty"`
	ScorePercentage       float64 `json:"scorePercentage"`
}
