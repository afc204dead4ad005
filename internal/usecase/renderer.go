package usecase

import "time"

// Field names a lead-form input for field-level error reporting.
type Field string

const (
	FieldName   Field = "name"
	FieldMobile Field = "mobile"
)

// BotMessageOpts carries presentation hints for a bot bubble.
type BotMessageOpts struct {
	// IsFirstInSequence is set when the previous turn was not from the bot,
	// so the UI can emit the agent-name/avatar header.
	IsFirstInSequence bool
}

// Renderer is the notification surface of the embedding UI layer. The core
// talks to the UI exclusively through these calls and never waits on them.
type Renderer interface {
	ShowTyping()
	HideTyping()
	RenderBotMessage(text string, opts BotMessageOpts)
	RenderUserMessage(text string)
	RenderSuggested(replies []string)
	RenderFormError(field Field, message string)
	RenderSuccess(name string)
	RenderSubmissionError(message string)
	ClearSubmissionError()
	ShowLeadForm()
}

// Scheduler defers work without blocking the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// Clock abstracts time for pacing computations.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TimerScheduler schedules with real timers.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
