package bclt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/bclt-academy/voicequiz/pkg/core"
	"github.com/bclt-academy/voicequiz/pkg/core/types"
)

const voiceQuizSessionsPath = "/api/voice-quiz/sessions"

// VoiceQuizService implements the voice quiz exchange.
type VoiceQuizService struct {
	client *Client
}

// StartSession opens a conversation and returns its first question.
func (s *VoiceQuizService) StartSession(ctx context.Context, req *types.StartSessionRequest) (*types.StartSessionResponse, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("req must not be nil")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to marshal request body")
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	var out types.StartSessionResponse
	err = s.client.doWithRetry(ctx, request{
		method:      http.MethodPost,
		path:        voiceQuizSessionsPath,
		contentType: "application/json",
		newBody:     func() (io.Reader, error) { return bytes.NewReader(payload), nil },
	}, &out)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return nil, core.NewAPIError("start session response has no sessionId")
	}
	return &out, nil
}

// SubmitAnswer uploads one recorded answer. It is never retried.
func (s *VoiceQuizService) SubmitAnswer(ctx context.Context, req *types.SubmitAnswerRequest) (*types.TurnResult, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("req must not be nil")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	body, contentType, err := encodeAnswer(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	var out types.TurnResult
	err = s.client.do(ctx, request{
		method:      http.MethodPost,
		path:        sessionPath(req.SessionID, "answers"),
		contentType: contentType,
		newBody:     func() (io.Reader, error) { return bytes.NewReader(body), nil },
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSummary fetches the aggregate of a session.
func (s *VoiceQuizService) GetSummary(ctx context.Context, sessionID string) (*types.SummaryResponse, error) {
	if err := validateRequest(&types.SummaryRequest{SessionID: strings.TrimSpace(sessionID)}); err != nil {
		return nil, err
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	var out types.SummaryResponse
	err := s.client.doWithRetry(ctx, request{
		method: http.MethodGet,
		path:   sessionPath(sessionID, "summary"),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func sessionPath(sessionID, leaf string) string {
	return fmt.Sprintf("%s/%s/%s", voiceQuizSessionsPath, url.PathEscape(strings.TrimSpace(sessionID)), leaf)
}

func validateRequest(req any) error {
	err := types.Validate(req)
	if err == nil {
		return nil
	}
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return core.NewInvalidRequestErrorWithParam(verr.Error(), verr.Param)
	}
	return core.NewInvalidRequestError(err.Error())
}

// encodeAnswer builds the multipart body: questionId and audioFormat fields
// plus the audio file part.
func encodeAnswer(req *types.SubmitAnswerRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("questionId", req.QuestionID.String()); err != nil {
		return nil, "", errors.Wrap(err, "encode questionId")
	}
	if err := w.WriteField("audioFormat", string(req.AudioFormat)); err != nil {
		return nil, "", errors.Wrap(err, "encode audioFormat")
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="answer%s"`, req.AudioFormat.Extension()))
	h.Set("Content-Type", req.AudioFormat.ContentType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "create audio part")
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", errors.Wrap(err, "write audio part")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart body")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
