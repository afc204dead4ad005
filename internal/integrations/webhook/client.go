// Package webhook performs the single POST/JSON exchange with the configured
// remote endpoint. One call is one attempt; retry scheduling belongs to the
// caller.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatwidget/internal/domain"
)

const (
	// SourceTag identifies the widget in every outbound payload.
	SourceTag = "chatbot-widget"

	headerSource  = "X-Chatbot-Source"
	headerSession = "X-Session-ID"

	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
	maxErrorBytes    = 4096
)

// chatRequest is the wire shape for every outbound exchange, chat and lead
// alike.
type chatRequest struct {
	ChatInput string `json:"chatInput"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	AgentName string `json:"agentName"`
}

// Clock abstracts time for latency measurement and payload timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Client posts chat and lead payloads to a single webhook endpoint.
type Client struct {
	url        string
	agentName  string
	httpClient *http.Client
	timeout    time.Duration
	clock      Clock
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client for the given endpoint. The timeout covers the
// whole exchange and cancels the in-flight request when it elapses.
func NewClient(url, agentName string, opts ...Option) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("webhook: url must not be empty")
	}
	if strings.TrimSpace(agentName) == "" {
		return nil, errors.New("webhook: agent name must not be empty")
	}
	c := &Client{
		url:        url,
		agentName:  agentName,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		clock:      systemClock{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send posts a plain chat message and returns the resolved payload together
// with the measured round-trip latency.
func (c *Client) Send(ctx context.Context, message, sessionID string) (domain.ResponsePayload, time.Duration, error) {
	body := chatRequest{
		ChatInput: message,
		SessionID: sessionID,
		Timestamp: c.clock.Now().UTC().Format(time.RFC3339),
		Source:    SourceTag,
		AgentName: c.agentName,
	}
	return c.exchange(ctx, body, nil)
}

// SendLead posts a lead-capture submission. The body carries the specially
// formatted message and the record's own timestamp; the source tag and
// session id travel in headers as well.
func (c *Client) SendLead(ctx context.Context, lead domain.LeadRecord) (domain.ResponsePayload, error) {
	body := chatRequest{
		ChatInput: lead.ChatInput(),
		SessionID: lead.SessionID,
		Timestamp: lead.Timestamp.UTC().Format(time.RFC3339),
		Source:    lead.Source,
		AgentName: c.agentName,
	}
	headers := map[string]string{
		headerSource:  "widget",
		headerSession: lead.SessionID,
	}
	payload, _, err := c.exchange(ctx, body, headers)
	return payload, err
}

func (c *Client) exchange(ctx context.Context, body chatRequest, headers map[string]string) (domain.ResponsePayload, time.Duration, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return domain.ResponsePayload{}, 0, fmt.Errorf("webhook: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if reqErr != nil {
		return domain.ResponsePayload{}, 0, fmt.Errorf("webhook: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := c.clock.Now()
	res, doErr := c.httpClient.Do(req)
	if doErr != nil {
		if errors.Is(doErr, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return domain.ResponsePayload{}, 0, &TimeoutError{After: c.timeout}
		}
		return domain.ResponsePayload{}, 0, fmt.Errorf("webhook: request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBytes))
		return domain.ResponsePayload{}, 0, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        c.url,
			Body:       string(errBody),
		}
	}

	raw, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if readErr != nil {
		return domain.ResponsePayload{}, 0, fmt.Errorf("webhook: read response body: %w", readErr)
	}
	latency := c.clock.Now().Sub(start)

	payload := ResolvePayload(raw)
	c.logger.Debug().
		Int("status", res.StatusCode).
		Dur("latency", latency).
		Int("suggested", len(payload.SuggestedReplies)).
		Msg("webhook: exchange complete")
	return payload, latency, nil
}
