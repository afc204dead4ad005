package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"chatwidget/internal/domain"
	"chatwidget/internal/retry"
)

// LeadState tracks where the capture flow currently sits.
type LeadState string

const (
	LeadCollecting LeadState = "collecting"
	LeadValidating LeadState = "validating"
	LeadSubmitting LeadState = "submitting"
	LeadSucceeded  LeadState = "succeeded"
)

const (
	nameErrorMessage   = "Please enter a valid name (minimum 2 characters)"
	mobileErrorMessage = "Please enter a valid 10-digit mobile number"

	successToTypingDelay = 2 * time.Second
	submissionErrorTTL   = 5 * time.Second
)

var mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)

// htmlEscaper neutralizes markup-significant characters before the lead
// leaves the process.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// LeadSender posts a lead submission; one call is one attempt.
type LeadSender interface {
	SendLead(ctx context.Context, lead domain.LeadRecord) (domain.ResponsePayload, error)
}

// LeadStore persists the record for the session, best-effort.
type LeadStore interface {
	SaveLead(lead domain.LeadRecord) error
}

// LeadFlow drives the name/mobile capture state machine. Unlike the plain
// chat path, submission retries under an exponential backoff policy before
// giving up.
type LeadFlow struct {
	renderer  Renderer
	sender    LeadSender
	store     LeadStore
	conv      *ConversationService
	scheduler Scheduler
	clock     Clock
	policy    retry.Policy
	timer     backoff.Timer
	logger    zerolog.Logger
	sessionID string

	mu    sync.Mutex
	state LeadState
	lead  domain.LeadRecord
}

type LeadOption func(*LeadFlow)

func WithLeadScheduler(s Scheduler) LeadOption {
	return func(f *LeadFlow) {
		f.scheduler = s
	}
}

func WithLeadClock(clock Clock) LeadOption {
	return func(f *LeadFlow) {
		f.clock = clock
	}
}

func WithLeadLogger(l zerolog.Logger) LeadOption {
	return func(f *LeadFlow) {
		f.logger = l
	}
}

// WithRetryTimer injects the timer driving backoff waits; tests use it to
// avoid real sleeps.
func WithRetryTimer(t backoff.Timer) LeadOption {
	return func(f *LeadFlow) {
		f.timer = t
	}
}

func NewLeadFlow(r Renderer, sender LeadSender, store LeadStore, conv *ConversationService, sessionID string, opts ...LeadOption) (*LeadFlow, error) {
	if r == nil {
		return nil, errors.New("usecase: renderer must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: lead sender must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: lead store must not be nil")
	}
	if conv == nil {
		return nil, errors.New("usecase: conversation service must not be nil")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("usecase: session id must not be empty")
	}
	f := &LeadFlow{
		renderer:  r,
		sender:    sender,
		store:     store,
		conv:      conv,
		scheduler: TimerScheduler{},
		clock:     SystemClock{},
		policy:    retry.LeadSubmission(),
		logger:    zerolog.Nop(),
		sessionID: sessionID,
	}
	f.state = LeadCollecting
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State reports the flow's current state.
func (f *LeadFlow) State() LeadState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Lead returns the captured record once the flow has succeeded.
func (f *LeadFlow) Lead() (domain.LeadRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != LeadSucceeded {
		return domain.LeadRecord{}, false
	}
	return f.lead, true
}

// FilterMobileInput strips non-digits and truncates to ten digits. The UI
// applies it on every keystroke, so the field only ever holds a digit string
// of length <= 10.
func FilterMobileInput(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == 10 {
			break
		}
	}
	return b.String()
}

// Submit validates the form, persists the lead, and transmits it with
// retries. Validation failures report a field error and leave the flow
// collecting; transmission failure shows an auto-expiring banner and returns
// to collecting with the fields retained. It blocks until the submission
// settles.
func (f *LeadFlow) Submit(ctx context.Context, name, mobile string) {
	f.mu.Lock()
	if f.state == LeadSubmitting || f.state == LeadSucceeded {
		f.mu.Unlock()
		return
	}
	f.state = LeadValidating

	name = strings.TrimSpace(name)
	mobile = strings.TrimSpace(mobile)
	if len(name) < 2 {
		f.state = LeadCollecting
		f.logger.Debug().Err(newError(ErrorInvalidInput, "name_too_short", nil)).Msg("lead: validation failed")
		f.renderer.RenderFormError(FieldName, nameErrorMessage)
		f.mu.Unlock()
		return
	}
	if !mobilePattern.MatchString(mobile) {
		f.state = LeadCollecting
		f.logger.Debug().Err(newError(ErrorInvalidInput, "mobile_not_ten_digits", nil)).Msg("lead: validation failed")
		f.renderer.RenderFormError(FieldMobile, mobileErrorMessage)
		f.mu.Unlock()
		return
	}

	lead := domain.LeadRecord{
		Name:      sanitizeInput(name),
		Mobile:    sanitizeInput(mobile),
		SessionID: f.sessionID,
		Timestamp: f.clock.Now().UTC(),
		Source:    "chatbot-widget",
	}
	if err := f.store.SaveLead(lead); err != nil {
		storeErr := newError(ErrorStorage, "session_store_write", err)
		f.logger.Warn().Err(storeErr).Str("session_id", f.sessionID).Msg("lead: local persistence failed, continuing")
	}
	f.state = LeadSubmitting
	f.mu.Unlock()

	payload, err := f.transmit(ctx, lead)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		failure := newError(ErrorTransmissionFailed, "webhook_retries_exhausted", err)
		f.logger.Error().Err(failure).Str("session_id", f.sessionID).Msg("lead: submission failed")
		f.state = LeadCollecting
		f.renderer.RenderSubmissionError(
			fmt.Sprintf("Webhook transmission failed after %d attempts: %v", f.policy.MaxAttempts, err),
		)
		f.scheduler.AfterFunc(submissionErrorTTL, f.renderer.ClearSubmissionError)
		return
	}

	f.state = LeadSucceeded
	f.lead = lead
	f.renderer.RenderSuccess(lead.Name)
	f.scheduler.AfterFunc(successToTypingDelay, func() {
		f.conv.StartTyping()
		f.conv.Deliver(payload)
	})
}

func (f *LeadFlow) transmit(ctx context.Context, lead domain.LeadRecord) (domain.ResponsePayload, error) {
	var payload domain.ResponsePayload
	attempt := 0
	err := retry.Do(ctx, f.policy, f.timer, func() error {
		attempt++
		p, sendErr := f.sender.SendLead(ctx, lead)
		if sendErr != nil {
			f.logger.Warn().Err(sendErr).Int("attempt", attempt).Msg("lead: webhook attempt failed")
			return sendErr
		}
		payload = p
		return nil
	})
	return payload, err
}

func sanitizeInput(s string) string {
	return strings.TrimSpace(htmlEscaper.Replace(s))
}
