// Package widget wires the chat-widget core together behind one explicitly
// constructed instance: response cache, webhook client, conversation pacing,
// lead capture, and performance metrics. The rendering layer is injected;
// the core only ever notifies it.
package widget

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatwidget/internal/cache"
	"chatwidget/internal/domain"
	"chatwidget/internal/integrations/webhook"
	"chatwidget/internal/metrics"
	"chatwidget/internal/sessionstore"
	"chatwidget/internal/usecase"
)

const welcomeStagger = 500 * time.Millisecond

// Renderer is the notification interface the embedding UI layer implements.
type Renderer = usecase.Renderer

// BotMessageOpts re-exports the bot-bubble presentation hints.
type BotMessageOpts = usecase.BotMessageOpts

// Field re-exports the lead-form field identifiers.
type Field = usecase.Field

const (
	FieldName   = usecase.FieldName
	FieldMobile = usecase.FieldMobile
)

// LeadRecord re-exports the captured lead shape.
type LeadRecord = domain.LeadRecord

// MetricsSnapshot re-exports the performance counters view.
type MetricsSnapshot = metrics.Snapshot

// Widget is one embedded chat-widget instance. Each instance owns its cache,
// metrics, and conversation state; nothing is shared process-wide.
type Widget struct {
	cfg       Config
	renderer  Renderer
	conv      *usecase.ConversationService
	lead      *usecase.LeadFlow
	cache     *cache.Cache
	metrics   *metrics.Metrics
	store     *sessionstore.MemoryStore
	scheduler usecase.Scheduler
	sessionID string
	logger    zerolog.Logger
}

type options struct {
	httpClient *http.Client
	scheduler  usecase.Scheduler
	clock      usecase.Clock
	timer      backoff.Timer
	logger     zerolog.Logger
}

type Option func(*options)

// WithHTTPClient overrides the HTTP client used for webhook exchanges.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithScheduler overrides the deferred-work scheduler (tests).
func WithScheduler(s usecase.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithClock overrides the clock used for pacing and cache expiry (tests).
func WithClock(c usecase.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithRetryTimer overrides the timer driving lead-submission backoff (tests).
func WithRetryTimer(t backoff.Timer) Option {
	return func(o *options) {
		o.timer = t
	}
}

// WithLogger attaches a logger; the widget is silent without one.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New constructs a widget instance. A fresh session id is generated and kept
// for the instance's lifetime.
func New(cfg Config, r Renderer, opts ...Option) (*Widget, error) {
	if r == nil {
		return nil, errors.New("widget: renderer must not be nil")
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.New("widget: webhook url must not be empty")
	}
	cfg.applyDefaults()

	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	sessionID := uuid.NewString()

	clientOpts := []webhook.Option{webhook.WithLogger(o.logger)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, webhook.WithHTTPClient(o.httpClient))
	}
	if o.clock != nil {
		clientOpts = append(clientOpts, webhook.WithClock(o.clock))
	}
	client, err := webhook.NewClient(cfg.WebhookURL, cfg.AgentName, clientOpts...)
	if err != nil {
		return nil, err
	}

	cacheOpts := []cache.Option{cache.WithLogger(o.logger)}
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}
	responseCache := cache.New(cfg.CacheCapacity, cfg.CacheExpiry, cacheOpts...)

	perf := metrics.New()

	convOpts := []usecase.ConversationOption{
		usecase.WithConversationLogger(o.logger),
		usecase.WithCacheEnabled(cfg.CacheEnabled),
	}
	if o.scheduler != nil {
		convOpts = append(convOpts, usecase.WithScheduler(o.scheduler))
	}
	if o.clock != nil {
		convOpts = append(convOpts, usecase.WithClock(o.clock))
	}
	conv, err := usecase.NewConversationService(r, client, responseCache, perf, sessionID, convOpts...)
	if err != nil {
		return nil, err
	}

	store := sessionstore.NewMemoryStore()
	leadOpts := []usecase.LeadOption{usecase.WithLeadLogger(o.logger)}
	if o.scheduler != nil {
		leadOpts = append(leadOpts, usecase.WithLeadScheduler(o.scheduler))
	}
	if o.clock != nil {
		leadOpts = append(leadOpts, usecase.WithLeadClock(o.clock))
	}
	if o.timer != nil {
		leadOpts = append(leadOpts, usecase.WithRetryTimer(o.timer))
	}
	lead, err := usecase.NewLeadFlow(r, client, store, conv, sessionID, leadOpts...)
	if err != nil {
		return nil, err
	}

	scheduler := o.scheduler
	if scheduler == nil {
		scheduler = usecase.TimerScheduler{}
	}

	w := &Widget{
		cfg:       cfg,
		renderer:  r,
		conv:      conv,
		lead:      lead,
		cache:     responseCache,
		metrics:   perf,
		store:     store,
		scheduler: scheduler,
		sessionID: sessionID,
		logger:    o.logger,
	}
	w.logger.Debug().Str("session_id", sessionID).Msg("widget: initialized")
	return w, nil
}

// Open starts the session: welcome messages staggered half a second apart,
// then the lead-capture form. With welcome messages disabled the form shows
// immediately.
func (w *Widget) Open() {
	if !w.cfg.ShowWelcomeMessage || len(w.cfg.WelcomeMessages) == 0 {
		w.renderer.ShowLeadForm()
		return
	}
	for i, msg := range w.cfg.WelcomeMessages {
		msg := msg
		w.scheduler.AfterFunc(time.Duration(i)*welcomeStagger, func() {
			w.conv.PostBotMessage(msg)
		})
	}
	formDelay := time.Duration(len(w.cfg.WelcomeMessages))*welcomeStagger + welcomeStagger
	w.scheduler.AfterFunc(formDelay, w.renderer.ShowLeadForm)
}

// UserSubmittedMessage handles a typed chat message.
func (w *Widget) UserSubmittedMessage(ctx context.Context, text string) {
	w.conv.HandleUserMessage(ctx, text)
}

// UserClickedSuggested handles a suggested-reply click; it runs through the
// same pipeline as a typed message.
func (w *Widget) UserClickedSuggested(ctx context.Context, text string) {
	w.conv.HandleUserMessage(ctx, text)
}

// UserSubmittedLeadForm handles the name/mobile form submission.
func (w *Widget) UserSubmittedLeadForm(ctx context.Context, name, mobile string) {
	w.lead.Submit(ctx, name, mobile)
}

// FilterMobileInput is applied by the UI on every keystroke in the mobile
// field; the result is always a digit string of length at most ten.
func (w *Widget) FilterMobileInput(value string) string {
	return usecase.FilterMobileInput(value)
}

// SuggestedMessages returns the configured conversation starters.
func (w *Widget) SuggestedMessages() []string {
	return append([]string(nil), w.cfg.SuggestedMessages...)
}

// Metrics returns a snapshot of the instance's performance counters.
func (w *Widget) Metrics() MetricsSnapshot {
	return w.metrics.Snapshot(w.cache.Len())
}

// Lead returns the session's captured lead, if the form has been submitted.
func (w *Widget) Lead() (LeadRecord, bool) {
	return w.store.Lead()
}

// ClearCache empties the response cache.
func (w *Widget) ClearCache() {
	w.cache.Clear()
	w.logger.Debug().Msg("widget: response cache cleared")
}

// SessionID returns the identity included in every outbound request.
func (w *Widget) SessionID() string {
	return w.sessionID
}
