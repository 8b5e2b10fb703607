package domain

import (
	"regexp"
	"strings"
	"time"
)

// Collection types accepted by the contact collector.
const (
	CollectionVisitors        = "visitors"
	CollectionFormSubmissions = "form_submissions"
)

// VisitorProfile is the accumulated contact identity for one browser session.
// A nil field means "not yet known".
type VisitorProfile struct {
	SessionID string    `json:"session_id"`
	Name      *string   `json:"name"`
	Phone     *string   `json:"phone"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Merge applies update on top of p. Populated fields are never cleared by a
// nil or blank value in update; non-blank values replace earlier ones.
func (p *VisitorProfile) Merge(update VisitorProfile) {
	if p.SessionID == "" {
		p.SessionID = update.SessionID
	}
	p.Name = pickField(p.Name, update.Name)
	p.Phone = pickField(p.Phone, update.Phone)
	p.Email = pickField(p.Email, update.Email)
	if p.CreatedAt.IsZero() || (!update.CreatedAt.IsZero() && update.CreatedAt.Before(p.CreatedAt)) {
		p.CreatedAt = update.CreatedAt
	}
	if update.UpdatedAt.After(p.UpdatedAt) {
		p.UpdatedAt = update.UpdatedAt
	}
}

func pickField(current, next *string) *string {
	if next == nil || strings.TrimSpace(*next) == "" {
		return current
	}
	v := *next
	return &v
}

// LeadSubmission is the minimal profile update appended by the contact
// collector and relayed to the profile sink.
type LeadSubmission struct {
	SessionID      string    `json:"session_id"`
	Name           *string   `json:"name"`
	Phone          *string   `json:"phone"`
	Email          *string   `json:"email"`
	CollectionType string    `json:"collection_type"`
	DeviceType     string    `json:"device_type,omitempty"`
	Location       string    `json:"location,omitempty"`
	ClientAddr     string    `json:"ip"`
	Timestamp      time.Time `json:"timestamp"`

	// StreamMessageID is set when the submission was read back from a stream.
	StreamMessageID string `json:"-"`
}

// Profile converts the submission into a profile update.
func (s LeadSubmission) Profile() VisitorProfile {
	return VisitorProfile{
		SessionID: s.SessionID,
		Name:      s.Name,
		Phone:     s.Phone,
		Email:     s.Email,
		CreatedAt: s.Timestamp,
		UpdatedAt: s.Timestamp,
	}
}

var phonePattern = regexp.MustCompile(`(\+?\d[\d\s-]{8,}\d)`)

// NormalizePhone extracts the first phone-like run (optionally prefixed with
// "+") from raw and strips everything but digits and '+'. ok is false when
// raw holds no such run.
func NormalizePhone(raw string) (phone string, ok bool) {
	match := phonePattern.FindString(raw)
	if match == "" {
		return "", false
	}
	var b strings.Builder
	for _, r := range match {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String(), true
}
