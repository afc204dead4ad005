package domain

import "time"

// Speaker identifies which side of the conversation produced a turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// ConversationTurn is a single entry in the session transcript. Turns are
// append-only and never replayed; they exist so the next bot bubble knows
// whether it opens a new sequence.
type ConversationTurn struct {
	Speaker Speaker
	Text    string
	SentAt  time.Time
}
