package bclt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/bclt-academy/voicequiz/pkg/core"
)

const (
	requestIDHeader       = "X-Request-ID"
	defaultRequestTimeout = time.Minute
	maxErrorBody          = 1 << 20
	maxResponseBody       = 32 << 20
)

func (c *Client) endpoint(path string) (string, error) {
	rawBaseURL := strings.TrimSpace(c.baseURL)
	if rawBaseURL == "" {
		return "", core.NewInvalidRequestError("base URL is not configured")
	}

	base, err := url.Parse(rawBaseURL)
	if err != nil || strings.TrimSpace(base.Scheme) == "" || strings.TrimSpace(base.Host) == "" {
		return "", core.NewInvalidRequestError("invalid base URL")
	}
	if base.User != nil {
		return "", core.NewInvalidRequestError("base URL must not include credentials")
	}

	base.RawQuery = ""
	base.Fragment = ""

	// path arrives already escaped so session ids may contain reserved characters.
	rawPath := strings.TrimSuffix(base.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", core.NewInvalidRequestError("invalid request path")
	}
	base.Path = decoded
	base.RawPath = rawPath

	return base.String(), nil
}

// request describes one HTTP exchange. newBody is called per attempt so the
// payload can be replayed on retry.
type request struct {
	method      string
	path        string
	contentType string
	newBody     func() (io.Reader, error)
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	endpoint, err := c.endpoint(r.path)
	if err != nil {
		return err
	}

	var body io.Reader
	if r.newBody != nil {
		if body, err = r.newBody(); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return &TransportError{Op: r.method, URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, uuid.NewString())
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: r.method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	log.Debug().Str("component", "sdk").
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(requestIDHeader)).
		Dur("elapsed", time.Since(started)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorResponse(resp, endpoint, r.method)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &TransportError{Op: r.method, URL: endpoint, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &core.Error{
			Type:       core.ErrAPI,
			Message:    "failed to decode response",
			RequestID:  requestIDFromHeader(resp.Header),
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// doWithRetry retries transport failures and retryable API errors with
// exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, r request, out any) error {
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryBackoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, r, out)
		if err == nil || !isRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		log.Warn().Err(err).Str("component", "sdk").Str("path", r.path).Int("attempt", attempt).Msg("retrying request")
		return retry.RetryableError(err)
	})
}

func isRetryable(err error) bool {
	var apiErr *core.Error
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return false
}

func decodeErrorResponse(resp *http.Response, endpoint, method string) error {
	requestID := requestIDFromHeader(resp.Header)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}

	var env struct {
		Error   *core.Error `json:"error"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr := env.Error
		if apiErr == nil && strings.TrimSpace(env.Message) != "" {
			apiErr = &core.Error{Message: strings.TrimSpace(env.Message)}
		}
		if apiErr != nil {
			if apiErr.RequestID == "" {
				apiErr.RequestID = requestID
			}
			if apiErr.RetryAfter == nil {
				apiErr.RetryAfter = parseRetryAfterHeader(resp.Header.Get("Retry-After"))
			}
			if apiErr.Type == "" {
				apiErr.Type = core.ErrorTypeForStatus(resp.StatusCode)
			}
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
			apiErr.StatusCode = resp.StatusCode
			return apiErr
		}
	}

	return &core.Error{
		Type:       core.ErrorTypeForStatus(resp.StatusCode),
		Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
		RequestID:  requestID,
		RetryAfter: parseRetryAfterHeader(resp.Header.Get("Retry-After")),
		StatusCode: resp.StatusCode,
	}
}

func requestIDFromHeader(h http.Header) string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(h.Get(requestIDHeader))
}

func parseRetryAfterHeader(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &seconds
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultRequestTimeout)
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultRequestTimeout)
}
