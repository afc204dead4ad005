package domain

import (
	"fmt"
	"time"
)

// LeadRecord holds the validated name/mobile capture for one session. It is
// created once, after validation succeeds, and never mutated afterwards.
type LeadRecord struct {
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// ChatInput renders the record as the specially formatted message the
// webhook expects for lead submissions.
func (l LeadRecord) ChatInput() string {
	return fmt.Sprintf("name is %s & mobile is %s", l.Name, l.Mobile)
}
