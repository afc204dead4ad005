package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatwidget/internal/cache"
	"chatwidget/internal/domain"
)

// ---------------------------------------------------------------------------
// fakes shared by the conversation and lead tests
// ---------------------------------------------------------------------------

type renderedBot struct {
	text  string
	first bool
}

type fieldError struct {
	field   Field
	message string
}

type fakeRenderer struct {
	mu              sync.Mutex
	typingShown     int
	typingHidden    int
	botMessages     []renderedBot
	userMessages    []string
	suggested       [][]string
	formErrors      []fieldError
	successes       []string
	submissionErrs  []string
	submissionClear int
	leadFormShown   int
}

func (r *fakeRenderer) ShowTyping() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typingShown++
}

func (r *fakeRenderer) HideTyping() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typingHidden++
}

func (r *fakeRenderer) RenderBotMessage(text string, opts BotMessageOpts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.botMessages = append(r.botMessages, renderedBot{text: text, first: opts.IsFirstInSequence})
}

func (r *fakeRenderer) RenderUserMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userMessages = append(r.userMessages, text)
}

func (r *fakeRenderer) RenderSuggested(replies []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggested = append(r.suggested, replies)
}

func (r *fakeRenderer) RenderFormError(field Field, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formErrors = append(r.formErrors, fieldError{field: field, message: message})
}

func (r *fakeRenderer) RenderSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, name)
}

func (r *fakeRenderer) RenderSubmissionError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissionErrs = append(r.submissionErrs, message)
}

func (r *fakeRenderer) ClearSubmissionError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissionClear++
}

func (r *fakeRenderer) ShowLeadForm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leadFormShown++
}

// fakeScheduler queues deferred work and runs it only when the test says so.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []scheduledTask
}

type scheduledTask struct {
	delay time.Duration
	fn    func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, scheduledTask{delay: d, fn: fn})
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.tasks))
	for i, task := range s.tasks {
		out[i] = task.delay
	}
	return out
}

// runAll executes queued tasks in order, including tasks they enqueue.
func (s *fakeScheduler) runAll() {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mu.Unlock()
		task.fn()
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeSender struct {
	mu      sync.Mutex
	payload domain.ResponsePayload
	latency time.Duration
	err     error
	calls   int
}

func (f *fakeSender) Send(_ context.Context, _ string, _ string) (domain.ResponsePayload, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.payload, f.latency, f.err
}

type fakeRecorder struct {
	mu        sync.Mutex
	sends     []time.Duration
	cacheHits int
}

func (f *fakeRecorder) RecordSend(latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, latency)
}

func (f *fakeRecorder) RecordCacheHit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheHits++
}

// timeoutError mimics the webhook package's timeout without importing it.
type timeoutError struct{}

func (timeoutError) Error() string { return "request timed out" }

func (timeoutError) Timeout() bool { return true }

// ---------------------------------------------------------------------------
// harness
// ---------------------------------------------------------------------------

type convHarness struct {
	svc       *ConversationService
	renderer  *fakeRenderer
	scheduler *fakeScheduler
	clock     *fakeClock
	sender    *fakeSender
	recorder  *fakeRecorder
	cache     *cache.Cache
}

func newConvHarness(t *testing.T, opts ...ConversationOption) *convHarness {
	t.Helper()
	h := &convHarness{
		renderer:  &fakeRenderer{},
		scheduler: &fakeScheduler{},
		clock:     newFakeClock(),
		sender:    &fakeSender{},
		recorder:  &fakeRecorder{},
	}
	h.cache = cache.New(10, time.Minute, cache.WithClock(h.clock))
	base := []ConversationOption{
		WithScheduler(h.scheduler),
		WithClock(h.clock),
	}
	svc, err := NewConversationService(h.renderer, h.sender, h.cache, h.recorder, "session-1", append(base, opts...)...)
	require.NoError(t, err)
	h.svc = svc
	return h
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestNewConversationService_NilRenderer(t *testing.T) {
	_, err := NewConversationService(nil, &fakeSender{}, cache.New(1, time.Minute), &fakeRecorder{}, "s")
	require.Error(t, err)
}

func TestNewConversationService_EmptySessionID(t *testing.T) {
	_, err := NewConversationService(&fakeRenderer{}, &fakeSender{}, cache.New(1, time.Minute), &fakeRecorder{}, "  ")
	require.Error(t, err)
}

func TestHandleUserMessage_SuccessPath(t *testing.T) {
	h := newConvHarness(t)
	h.sender.payload = domain.ResponsePayload{Text: "hello back", SuggestedReplies: []string{"more"}}
	h.sender.latency = 80 * time.Millisecond

	h.svc.HandleUserMessage(context.Background(), "hello")

	require.Equal(t, []string{"hello"}, h.renderer.userMessages)
	require.Equal(t, 1, h.renderer.typingShown)
	require.Equal(t, 1, h.sender.calls)
	require.Equal(t, []time.Duration{80 * time.Millisecond}, h.recorder.sends)

	// "hello back" is 10 chars: 150ms raw, clamped up to the 400ms floor.
	require.Equal(t, []time.Duration{400 * time.Millisecond}, h.scheduler.delays())

	h.scheduler.runAll()
	require.Equal(t, 1, h.renderer.typingHidden)
	require.Equal(t, []renderedBot{{text: "hello back", first: true}}, h.renderer.botMessages)
	require.Equal(t, [][]string{{"more"}}, h.renderer.suggested)
}

func TestHandleUserMessage_SuggestedRepliesDelayedOneSecond(t *testing.T) {
	h := newConvHarness(t)
	h.sender.payload = domain.ResponsePayload{Text: "hi", SuggestedReplies: []string{"a", "b"}}

	h.svc.HandleUserMessage(context.Background(), "hello")

	// First queued task is the paced bot message; running it queues the
	// suggested-replies task with the fixed 1s pause.
	h.scheduler.mu.Lock()
	first := h.scheduler.tasks[0]
	h.scheduler.tasks = nil
	h.scheduler.mu.Unlock()
	first.fn()

	require.Equal(t, []time.Duration{time.Second}, h.scheduler.delays())
	require.Empty(t, h.renderer.suggested)
	h.scheduler.runAll()
	require.Equal(t, [][]string{{"a", "b"}}, h.renderer.suggested)
}

func TestHandleUserMessage_NoSuggestedRepliesNoSecondTask(t *testing.T) {
	h := newConvHarness(t)
	h.sender.payload = domain.ResponsePayload{Text: "hi", SuggestedReplies: []string{}}

	h.svc.HandleUserMessage(context.Background(), "hello")
	h.scheduler.runAll()

	require.Empty(t, h.renderer.suggested)
}

func TestHandleUserMessage_EmptyInputIgnored(t *testing.T) {
	h := newConvHarness(t)
	h.svc.HandleUserMessage(context.Background(), "   ")
	require.Zero(t, h.sender.calls)
	require.Empty(t, h.renderer.userMessages)
}

func TestHandleUserMessage_CacheHitSkipsNetwork(t *testing.T) {
	h := newConvHarness(t)
	h.cache.Put("hello", domain.ResponsePayload{Text: "cached", SuggestedReplies: []string{}})

	h.svc.HandleUserMessage(context.Background(), "hello")

	require.Zero(t, h.sender.calls, "cache hit must not reach the webhook")
	require.Equal(t, 1, h.recorder.cacheHits)
	require.Empty(t, h.recorder.sends)

	h.scheduler.runAll()
	require.Equal(t, "cached", h.renderer.botMessages[0].text)
}

func TestHandleUserMessage_CacheDisabled(t *testing.T) {
	h := newConvHarness(t, WithCacheEnabled(false))
	h.sender.payload = domain.ResponsePayload{Text: "fresh"}
	h.cache.Put("hello", domain.ResponsePayload{Text: "cached"})

	h.svc.HandleUserMessage(context.Background(), "hello")

	require.Equal(t, 1, h.sender.calls)
	h.scheduler.runAll()
	require.Equal(t, "fresh", h.renderer.botMessages[0].text)
}

func TestHandleUserMessage_SuccessPopulatesCache(t *testing.T) {
	h := newConvHarness(t)
	h.sender.payload = domain.ResponsePayload{Text: "hello back", SuggestedReplies: []string{}}

	h.svc.HandleUserMessage(context.Background(), "hello")
	h.scheduler.runAll()
	h.svc.HandleUserMessage(context.Background(), "HELLO  ")

	require.Equal(t, 1, h.sender.calls, "second turn must be served from cache")
	require.Equal(t, 1, h.recorder.cacheHits)
}

func TestHandleUserMessage_TimeoutApology(t *testing.T) {
	h := newConvHarness(t)
	h.sender.err = timeoutError{}

	h.svc.HandleUserMessage(context.Background(), "hello")

	require.Equal(t, 1, h.sender.calls, "chat path never retries")
	require.Equal(t, 1, h.renderer.typingHidden)
	require.Equal(t, "Request timed out. Please try again.", h.renderer.botMessages[0].text)
	require.Empty(t, h.recorder.sends, "failures must not count as sends")
}

func TestHandleUserMessage_GenericApology(t *testing.T) {
	h := newConvHarness(t)
	h.sender.err = errors.New("status 500")

	h.svc.HandleUserMessage(context.Background(), "hello")

	require.Equal(t, 1, h.sender.calls)
	require.Equal(t, "Sorry, there was an error processing your request. Please try again later.", h.renderer.botMessages[0].text)
}

func TestHandleUserMessage_FailureNotCached(t *testing.T) {
	h := newConvHarness(t)
	h.sender.err = errors.New("status 500")
	h.svc.HandleUserMessage(context.Background(), "hello")

	h.sender.err = nil
	h.sender.payload = domain.ResponsePayload{Text: "recovered"}
	h.svc.HandleUserMessage(context.Background(), "hello")

	require.Equal(t, 2, h.sender.calls)
	require.Zero(t, h.recorder.cacheHits)
}

func TestPacing_ElapsedTypingShortensDelay(t *testing.T) {
	h := newConvHarness(t)
	h.svc.StartTyping()
	h.clock.advance(300 * time.Millisecond)

	// 100-char reply: 1500ms raw, capped at 1200ms; 300ms already elapsed.
	text := strings100()
	h.svc.Deliver(domain.ResponsePayload{Text: text})

	require.Equal(t, []time.Duration{900 * time.Millisecond}, h.scheduler.delays())
}

func TestPacing_NoTypingIndicatorUsesFullMinimum(t *testing.T) {
	h := newConvHarness(t)
	h.svc.Deliver(domain.ResponsePayload{Text: "hi"})
	require.Equal(t, []time.Duration{400 * time.Millisecond}, h.scheduler.delays())
}

func TestPacing_ElapsedBeyondMinimumIsImmediate(t *testing.T) {
	h := newConvHarness(t)
	h.svc.StartTyping()
	h.clock.advance(2 * time.Second)

	h.svc.Deliver(domain.ResponsePayload{Text: "hi"})
	require.Equal(t, []time.Duration{0}, h.scheduler.delays())
}

func TestBotMessageHeader_OnlyFirstInSequence(t *testing.T) {
	h := newConvHarness(t)
	h.svc.PostBotMessage("welcome one")
	h.svc.PostBotMessage("welcome two")

	require.Equal(t, []renderedBot{
		{text: "welcome one", first: true},
		{text: "welcome two", first: false},
	}, h.renderer.botMessages)
}

func TestBotMessageHeader_ResetByUserTurn(t *testing.T) {
	h := newConvHarness(t)
	h.sender.payload = domain.ResponsePayload{Text: "reply"}

	h.svc.PostBotMessage("welcome")
	h.svc.HandleUserMessage(context.Background(), "hello")
	h.scheduler.runAll()

	require.Len(t, h.renderer.botMessages, 2)
	require.True(t, h.renderer.botMessages[1].first, "bot reply after a user turn opens a new sequence")
}

func TestTranscript_CappedAtFifty(t *testing.T) {
	h := newConvHarness(t)
	for i := 0; i < 60; i++ {
		h.svc.PostBotMessage("turn")
	}
	require.Len(t, h.svc.Transcript(), 50)
}

func strings100() string {
	b := make([]byte, 100)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
