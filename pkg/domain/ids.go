// Package domain holds the identifier and enum types shared across the
// reconciliation engine. Keeping them here lets stores, services and
// transport agree on types without importing each other.
package domain

// SubjectID is the stable identifier the identity provider assigns to a
// principal. It is opaque to this application and immutable once assigned.
type SubjectID string

func (s SubjectID) IsZero() bool { return s == "" }

func (s SubjectID) String() string { return string(s) }

// Completeness marks how much of a Session has been populated.
type Completeness string

const (
	// CompletenessBasic means only identity-provider fields are present.
	CompletenessBasic Completeness = "basic"
	// CompletenessEnriched means the remote profile document was merged in.
	CompletenessEnriched Completeness = "enriched"
)
