package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatwidget/internal/domain"
)

const (
	typingPerChar     = 15 * time.Millisecond
	typingFloor       = 400 * time.Millisecond
	typingCeiling     = 1200 * time.Millisecond
	suggestedDelay    = time.Second
	maxTranscriptSize = 50

	timeoutApology = "Request timed out. Please try again."
	genericApology = "Sorry, there was an error processing your request. Please try again later."
)

// ResponseSender performs one webhook exchange per call.
type ResponseSender interface {
	Send(ctx context.Context, message, sessionID string) (domain.ResponsePayload, time.Duration, error)
}

// ResponseCache is the bounded response store consulted before each send.
type ResponseCache interface {
	Get(message string) (domain.ResponsePayload, bool)
	Put(message string, payload domain.ResponsePayload)
}

// SendRecorder receives metrics events for successful exchanges and cache hits.
type SendRecorder interface {
	RecordSend(latency time.Duration)
	RecordCacheHit()
}

// timeouter mirrors the Timeout method on transport timeout errors without
// importing the webhook package.
type timeouter interface {
	Timeout() bool
}

// httpStatusCoder is satisfied by the webhook package's status error.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ConversationService owns the chat-turn pipeline: cache lookup, webhook
// exchange, typing-indicator pacing, and last-speaker bookkeeping.
//
// Responses are applied in arrival order; nothing stops a second message from
// being sent before the first reply lands, so a stale reply can render after
// a newer one. Known limitation.
type ConversationService struct {
	renderer     Renderer
	sender       ResponseSender
	cache        ResponseCache
	cacheEnabled bool
	metrics      SendRecorder
	scheduler    Scheduler
	clock        Clock
	logger       zerolog.Logger
	sessionID    string

	mu              sync.Mutex
	lastSpeaker     domain.Speaker
	typingStartedAt time.Time
	transcript      []domain.ConversationTurn
}

type ConversationOption func(*ConversationService)

func WithScheduler(s Scheduler) ConversationOption {
	return func(c *ConversationService) {
		c.scheduler = s
	}
}

func WithClock(clock Clock) ConversationOption {
	return func(c *ConversationService) {
		c.clock = clock
	}
}

func WithConversationLogger(l zerolog.Logger) ConversationOption {
	return func(c *ConversationService) {
		c.logger = l
	}
}

func WithCacheEnabled(enabled bool) ConversationOption {
	return func(c *ConversationService) {
		c.cacheEnabled = enabled
	}
}

func NewConversationService(r Renderer, sender ResponseSender, cache ResponseCache, metrics SendRecorder, sessionID string, opts ...ConversationOption) (*ConversationService, error) {
	if r == nil {
		return nil, errors.New("usecase: renderer must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if cache == nil {
		return nil, errors.New("usecase: cache must not be nil")
	}
	if metrics == nil {
		return nil, errors.New("usecase: metrics must not be nil")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("usecase: session id must not be empty")
	}
	c := &ConversationService{
		renderer:     r,
		sender:       sender,
		cache:        cache,
		cacheEnabled: true,
		metrics:      metrics,
		scheduler:    TimerScheduler{},
		clock:        SystemClock{},
		logger:       zerolog.Nop(),
		sessionID:    sessionID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HandleUserMessage runs one user turn through the pipeline. It blocks for
// the duration of the webhook exchange (bounded by its timeout); display
// pacing happens on the scheduler afterwards.
func (c *ConversationService) HandleUserMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	c.appendTurnLocked(domain.SpeakerUser, text)
	c.lastSpeaker = domain.SpeakerUser
	c.renderer.RenderUserMessage(text)
	c.startTypingLocked()

	if c.cacheEnabled {
		if payload, ok := c.cache.Get(text); ok {
			c.metrics.RecordCacheHit()
			c.logger.Debug().Str("session_id", c.sessionID).Msg("conversation: serving cached response")
			c.scheduleResponseLocked(payload)
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	payload, latency, err := c.sender.Send(ctx, text, c.sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn().Err(classifySendError(err)).Str("session_id", c.sessionID).Msg("conversation: webhook exchange failed")
		c.renderer.HideTyping()
		c.typingStartedAt = time.Time{}
		if isTimeout(err) {
			c.renderBotLocked(timeoutApology)
		} else {
			c.renderBotLocked(genericApology)
		}
		return
	}

	c.metrics.RecordSend(latency)
	if c.cacheEnabled {
		c.cache.Put(text, payload)
	}
	c.scheduleResponseLocked(payload)
}

// StartTyping shows the typing indicator and anchors pacing at now. The lead
// flow uses it before feeding a held response through Deliver.
func (c *ConversationService) StartTyping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTypingLocked()
}

// Deliver runs an already-obtained payload through the normal pacing and
// rendering path.
func (c *ConversationService) Deliver(payload domain.ResponsePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleResponseLocked(payload)
}

// PostBotMessage renders a bot bubble immediately, bypassing typing pacing.
// Used for welcome messages.
func (c *ConversationService) PostBotMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderBotLocked(text)
}

// Transcript returns a copy of the session's turns so far.
func (c *ConversationService) Transcript() []domain.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ConversationTurn, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *ConversationService) startTypingLocked() {
	c.typingStartedAt = c.clock.Now()
	c.renderer.ShowTyping()
}

// scheduleResponseLocked paces the reply so the typing indicator stays
// visible for a minimum duration proportional to the reply length, then
// renders it, with suggested replies following after a fixed pause.
func (c *ConversationService) scheduleResponseLocked(payload domain.ResponsePayload) {
	delay := c.remainingTypingDelayLocked(payload.Text)
	c.scheduler.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.renderer.HideTyping()
		c.typingStartedAt = time.Time{}
		c.renderBotLocked(payload.Text)
		if len(payload.SuggestedReplies) > 0 {
			replies := payload.SuggestedReplies
			c.scheduler.AfterFunc(suggestedDelay, func() {
				c.renderer.RenderSuggested(replies)
			})
		}
	})
}

func (c *ConversationService) remainingTypingDelayLocked(text string) time.Duration {
	minDuration := time.Duration(len(text)) * typingPerChar
	if minDuration < typingFloor {
		minDuration = typingFloor
	}
	if minDuration > typingCeiling {
		minDuration = typingCeiling
	}
	if c.typingStartedAt.IsZero() {
		return minDuration
	}
	elapsed := c.clock.Now().Sub(c.typingStartedAt)
	if elapsed >= minDuration {
		return 0
	}
	return minDuration - elapsed
}

func (c *ConversationService) renderBotLocked(text string) {
	first := c.lastSpeaker != domain.SpeakerBot
	c.renderer.RenderBotMessage(text, BotMessageOpts{IsFirstInSequence: first})
	c.lastSpeaker = domain.SpeakerBot
	c.appendTurnLocked(domain.SpeakerBot, text)
}

func (c *ConversationService) appendTurnLocked(speaker domain.Speaker, text string) {
	c.transcript = append(c.transcript, domain.ConversationTurn{
		Speaker: speaker,
		Text:    text,
		SentAt:  c.clock.Now(),
	})
	if len(c.transcript) > maxTranscriptSize {
		c.transcript = c.transcript[len(c.transcript)-maxTranscriptSize:]
	}
}

func isTimeout(err error) bool {
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}

// classifySendError wraps a transport failure in the taxonomy used across
// the widget's logs.
func classifySendError(err error) *Error {
	if isTimeout(err) {
		return newError(ErrorTimeout, "webhook_deadline", err)
	}
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		return newError(ErrorHTTP, fmt.Sprintf("status_%d", statusErr.HTTPStatusCode()), err)
	}
	return newError(ErrorHTTP, "transport_failure", err)
}
