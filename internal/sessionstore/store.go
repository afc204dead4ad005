// Package sessionstore holds the captured lead for the lifetime of the
// session. Nothing here survives the process; the store mirrors a browser
// sessionStorage slot, base64 encoding included, so embedders can swap in a
// real one.
package sessionstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"chatwidget/internal/domain"
)

const leadKey = "chatbot_user_data"

// Store persists the lead record for the session. Implementations are
// best-effort; callers treat failures as non-fatal.
type Store interface {
	SaveLead(lead domain.LeadRecord) error
	Lead() (domain.LeadRecord, bool)
}

// MemoryStore keeps the encoded lead in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// SaveLead encodes the record as base64 JSON under the session slot.
func (s *MemoryStore) SaveLead(lead domain.LeadRecord) error {
	buf, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("sessionstore: encode lead: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[leadKey] = base64.StdEncoding.EncodeToString(buf)
	return nil
}

// Lead decodes and returns the stored record, if any.
func (s *MemoryStore) Lead() (domain.LeadRecord, bool) {
	s.mu.Lock()
	encoded, ok := s.values[leadKey]
	s.mu.Unlock()
	if !ok {
		return domain.LeadRecord{}, false
	}

	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.LeadRecord{}, false
	}
	var lead domain.LeadRecord
	if err := json.Unmarshal(buf, &lead); err != nil {
		return domain.LeadRecord{}, false
	}
	return lead, true
}
