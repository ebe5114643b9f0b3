package types

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// QuestionID identifies a question. The backend emits it either as a JSON
// string or as a number; both decode to the same textual form.
type QuestionID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode question id")
		}
		*id = QuestionID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "decode question id")
	}
	*id = QuestionID(n.String())
	return nil
}

func (id QuestionID) String() string { return string(id) }

// Question is one conversational prompt. It is replaced wholesale after each turn.
type Question struct {
	ID                QuestionID `json:"id"`
	Question          string     `json:"question,omitempty"`
	SentenceWithBlank string     `json:"sentenceWithBlank,omitempty"`
	AudioBase64       string     `json:"audioBase64,omitempty"`
}

// Prompt returns the text to display for the question.
func (q *Question) Prompt() string {
	if q == nil {
		return ""
	}
	if text := strings.TrimSpace(q.Question); text != "" {
		return text
	}
	return strings.TrimSpace(q.SentenceWithBlank)
}

// HasAudio reports whether the question carries synthesized speech.
func (q *Question) HasAudio() bool {
	return q != nil && strings.TrimSpace(q.AudioBase64) != ""
}

// StartSessionRequest opens a conversation for a thematic group.
type StartSessionRequest struct {
	ThematicGroup int  `json:"thematicGroup" validate:"required,min=1,max=6"`
	ChapterNumber *int `json:"chapterNumber,omitempty" validate:"omitempty,min=1"`
}

// SubmitAnswerRequest carries one recorded answer. It is sent as multipart
// form data, so it has no JSON encoding of its own.
type SubmitAnswerRequest struct {
	SessionID   string      `json:"sessionId" validate:"required"`
	QuestionID  QuestionID  `json:"questionId" validate:"required"`
	Audio       []byte      `json:"-" validate:"required,min=1"`
	AudioFormat AudioFormat `json:"audioFormat" validate:"required,oneof=webm m4a ogg wav"`
}

// SummaryRequest asks for the aggregate of a finished session.
type SummaryRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}
