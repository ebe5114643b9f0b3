package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bclt-academy/voicequiz/pkg/core/voice/recorder"
)

var (
	// ErrInvalidTransition is returned when a command is not valid in the current state.
	ErrInvalidTransition = errors.New("conversation: invalid transition")
	// ErrBusy is returned while a start, summary or capture request is pending.
	ErrBusy = errors.New("conversation: operation already in progress")
	// ErrSuperseded is returned when an exit overtook the command.
	ErrSuperseded = errors.New("conversation: superseded by exit")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conversation: controller closed")
)

// ErrorKind identifies a recoverable failure class.
type ErrorKind string

const (
	KindCapture        ErrorKind = "capture"
	KindEmptyRecording ErrorKind = "empty_recording"
	KindSlowResponse   ErrorKind = "slow_response"
	KindSubmit         ErrorKind = "submit"
	KindStart          ErrorKind = "start"
	KindSummary        ErrorKind = "summary"
)

// Error is a recoverable failure with a message for the learner.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("conversation %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("conversation %s", e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	}{e.Kind, e.Message})
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: messageFor(kind, err), Err: err}
}

func messageFor(kind ErrorKind, err error) string {
	switch kind {
	case KindCapture:
		switch recorder.KindOf(err) {
		case recorder.KindPermissionDenied:
			return "Accès au microphone refusé. Autorisez le micro puis réessayez."
		case recorder.KindNoDevice:
			return "Aucun microphone n'a été détecté."
		default:
			return "L'enregistrement a échoué. Réessayez."
		}
	case KindEmptyRecording:
		return "Aucun son n'a été enregistré. Réessayez."
	case KindSlowResponse:
		return "Le serveur met trop de temps à répondre. Réessayez."
	case KindSubmit:
		return "Impossible d'envoyer votre réponse. Réessayez."
	case KindStart:
		return "Impossible de démarrer la conversation."
	case KindSummary:
		return "Impossible de récupérer le bilan de la conversation."
	default:
		return "Une erreur est survenue."
	}
}
