package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/bclt-academy/voicequiz/pkg/core/conversation"
)

const (
	CommandBegin = "begin"
	CommandMic   = "mic"
	CommandEnd   = "end"
	CommandNew   = "new"
	CommandExit  = "exit"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// ClientCommand is one frame sent by the remote UI.
type ClientCommand struct {
	Type          string `json:"type"`
	ThematicGroup int    `json:"thematic_group,omitempty"`
	ChapterNumber *int   `json:"chapter_number,omitempty"`
}

// BeginOptions returns the session selection carried by begin and new.
func (c ClientCommand) BeginOptions() conversation.BeginOptions {
	return conversation.BeginOptions{ThematicGroup: c.ThematicGroup, ChapterNumber: c.ChapterNumber}
}

// DecodeClientCommand parses and validates a client frame.
func DecodeClientCommand(data []byte) (ClientCommand, error) {
	var cmd ClientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return ClientCommand{}, badRequest("invalid json frame", "")
	}
	cmd.Type = strings.TrimSpace(cmd.Type)
	switch cmd.Type {
	case "":
		return ClientCommand{}, badRequest("missing type", "type")
	case CommandBegin, CommandNew:
		if cmd.ThematicGroup < 1 || cmd.ThematicGroup > 6 {
			return ClientCommand{}, badRequest("thematic_group must be between 1 and 6", "thematic_group")
		}
		if cmd.ChapterNumber != nil && *cmd.ChapterNumber < 1 {
			return ClientCommand{}, badRequest("chapter_number must be > 0", "chapter_number")
		}
		return cmd, nil
	case CommandMic, CommandEnd, CommandExit:
		return cmd, nil
	default:
		return ClientCommand{}, &DecodeError{Code: "unsupported", Message: fmt.Sprintf("unknown command %q", cmd.Type), Param: "type"}
	}
}

// ServerSnapshot mirrors the controller after every event.
type ServerSnapshot struct {
	Type              string `json:"type"`
	Event             string `json:"event,omitempty"`
	RecorderSupported bool   `json:"recorder_supported"`
	conversation.Snapshot
}

// ServerError reports a rejected command or a controller error.
type ServerError struct {
	Type    string `json:"type"`
	Scope   string `json:"scope"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

func snapshotFrame(event string, supported bool, s conversation.Snapshot) ServerSnapshot {
	return ServerSnapshot{Type: "snapshot", Event: event, RecorderSupported: supported, Snapshot: s}
}

func controllerErrorFrame(e *conversation.Error) ServerError {
	return ServerError{Type: "error", Scope: "conversation", Code: string(e.Kind), Message: e.Message}
}

func commandErrorFrame(err error) ServerError {
	var de *DecodeError
	if errors.As(err, &de) {
		return ServerError{Type: "error", Scope: "command", Code: de.Code, Message: de.Message, Param: de.Param}
	}
	var ce *conversation.Error
	if errors.As(err, &ce) {
		return controllerErrorFrame(ce)
	}
	code := "rejected"
	switch {
	case errors.Is(err, conversation.ErrBusy):
		code = "busy"
	case errors.Is(err, conversation.ErrInvalidTransition):
		code = "invalid_transition"
	case errors.Is(err, conversation.ErrClosed):
		code = "closed"
	}
	return ServerError{Type: "error", Scope: "command", Code: code, Message: err.Error()}
}
