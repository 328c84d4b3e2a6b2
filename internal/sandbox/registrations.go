package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/onboard/internal/schema"
)

// Status tracks a registration through review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// StoredFile describes an uploaded document. Contents are not retained.
type StoredFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Registration is one submitted form.
type Registration struct {
	ID           string                `json:"id"`
	SchemaID     string                `json:"schemaId"`
	Fields       map[string]string     `json:"fields"`
	Files        map[string]StoredFile `json:"files"`
	Status       Status                `json:"status"`
	RejectReason string                `json:"rejectReason,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	DecidedAt    time.Time             `json:"decidedAt,omitempty"`
}

// Has reports whether name carries a non-empty value or a file.
func (r Registration) Has(name string) bool {
	if _, ok := r.Files[name]; ok {
		return true
	}
	return strings.TrimSpace(r.Fields[name]) != ""
}

// Email returns the submitted email address.
func (r Registration) Email() string {
	return strings.ToLower(strings.TrimSpace(r.Fields["email"]))
}

// DisplayName returns the person named on the form.
func (r Registration) DisplayName() string {
	if name := strings.TrimSpace(r.Fields["name"]); name != "" {
		return name
	}
	return strings.TrimSpace(r.Fields["businessManager"])
}

// Missing lists the required fields of s that r leaves empty, sorted.
func (r Registration) Missing(s schema.Schema) []string {
	var missing []string
	for _, f := range s.Fields() {
		if f.IsOptional() || r.Has(f.Name) {
			continue
		}
		missing = append(missing, f.Name)
	}
	sort.Strings(missing)
	return missing
}

// match picks the first schema r satisfies. When none fits, it returns the
// missing fields of the closest schema.
func match(r Registration, schemas []schema.Schema) (schema.Schema, []string) {
	var best []string
	for i, s := range schemas {
		missing := r.Missing(s)
		if len(missing) == 0 {
			return s, nil
		}
		if i == 0 || len(missing) < len(best) {
			best = missing
		}
	}
	return schema.Schema{}, best
}

// Store keeps registrations in memory.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*Registration
	byEmail map[string]string
	newID   func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byID:    map[string]*Registration{},
		byEmail: map[string]string{},
		newID:   uuid.NewString,
	}
}

// ErrDuplicateEmail signals that a pending or approved registration already uses the email.
var ErrDuplicateEmail = errors.New("sandbox: email already registered")

// Add stores r as pending and assigns its ID.
func (s *Store) Add(r Registration, now time.Time) (Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := r.Email()
	if id, exists := s.byEmail[email]; exists && email != "" {
		if prev := s.byID[id]; prev != nil && prev.Status != StatusRejected {
			return Registration{}, ErrDuplicateEmail
		}
	}
	r.ID = s.newID()
	r.Status = StatusPending
	r.CreatedAt = now
	stored := r
	s.byID[r.ID] = &stored
	if email != "" {
		s.byEmail[email] = r.ID
	}
	return stored, nil
}

// Get returns the registration with id.
func (s *Store) Get(id string) (Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return Registration{}, false
	}
	return *r, true
}

// Decide moves a pending registration to approved or rejected.
func (s *Store) Decide(id string, status Status, reason string, now time.Time) (Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return Registration{}, fmt.Errorf("sandbox: registration %s not found", id)
	}
	if r.Status != StatusPending {
		return *r, fmt.Errorf("sandbox: registration already %s", r.Status)
	}
	r.Status = status
	r.RejectReason = reason
	r.DecidedAt = now
	return *r, nil
}

// List returns registrations ordered by creation time.
func (s *Store) List() []Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Registration, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
