// Package session holds the converged identity view and its merge policy.
package session

import (
	"time"

	"concord/internal/identity"
	"concord/internal/profile"
	"concord/pkg/domain"
)

// Session is the application-wide answer to "who is signed in". A nil
// *Session means signed out; a non-nil Session always carries a SubjectID.
type Session struct {
	SubjectID      domain.SubjectID `json:"subject_id"`
	Email          string           `json:"email,omitempty"`
	DisplayNameRaw string           `json:"display_name_raw,omitempty"`
	Phone          string           `json:"phone,omitempty"`

	// Profile fields, populated only when Completeness is enriched.
	BusinessName string `json:"business_name,omitempty"`
	Address      string `json:"address,omitempty"`
	NationalID   string `json:"national_id,omitempty"`
	AgentCode    string `json:"agent_code,omitempty"`

	Completeness domain.Completeness `json:"completeness"`
}

// NewBasic builds the Session published the instant the provider reports a
// signed-in principal.
func NewBasic(p identity.Principal) *Session {
	return &Session{
		SubjectID:      p.SubjectID,
		Email:          p.Email,
		DisplayNameRaw: p.DisplayName,
		Phone:          p.Phone,
		Completeness:   domain.CompletenessBasic,
	}
}

// MergeProfile returns an enriched copy of s. Identity-provider fields stay
// authoritative for email, display name and phone; the document is
// authoritative for the business fields. Empty identity fields fall back to
// the document's copy so a provider that omits phone does not blank it.
func (s *Session) MergeProfile(doc *profile.Document) *Session {
	merged := *s
	merged.BusinessName = doc.BusinessName
	merged.Address = doc.Address
	merged.NationalID = doc.NationalID
	merged.AgentCode = doc.AgentCode
	if merged.Email == "" {
		merged.Email = doc.Email
	}
	if merged.DisplayNameRaw == "" {
		merged.DisplayNameRaw = doc.DisplayName
	}
	if merged.Phone == "" {
		merged.Phone = doc.Phone
	}
	merged.Completeness = domain.CompletenessEnriched
	return &merged
}

// Clone returns a copy so readers never alias the store's value.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

// Snapshot is the cached form of the last published Session. It may be stale
// or absent and is never authoritative once a live provider event arrives.
type Snapshot struct {
	Session Session   `json:"session"`
	SavedAt time.Time `json:"saved_at"`
}
