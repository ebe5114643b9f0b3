// Package bclt is the Go client for the BCLT Academy voice quiz API.
//
// The client talks to the academy backend over HTTPS. Sessions are opened
// with StartSession, answers are uploaded as multipart audio with
// SubmitAnswer, and GetSummary returns the aggregate for a finished session.
//
//	client := bclt.NewClient(
//		bclt.WithBaseURL("https://api.bclt-academy.com"),
//		bclt.WithToken(os.Getenv("BCLT_API_TOKEN")),
//	)
//	resp, err := client.VoiceQuiz.StartSession(ctx, &types.StartSessionRequest{ThematicGroup: 1})
package bclt

import (
	"net/http"
	"time"
)

const (
	DefaultBaseURL      = "http://localhost:8080"
	DefaultUserAgent    = "bclt-voicequiz-go/1"
	defaultMaxRetries   = 2
	defaultRetryBackoff = 250 * time.Millisecond
)

// Client is the entry point for the academy API.
type Client struct {
	VoiceQuiz *VoiceQuizService

	baseURL      string
	token        string
	userAgent    string
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a client. Without options it targets DefaultBaseURL.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		userAgent:    DefaultUserAgent,
		httpClient:   newDefaultHTTPClient(),
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.VoiceQuiz = &VoiceQuizService{client: c}
	return c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}
