// Package profile defines the port to the remote profile document store.
package profile

import (
	"context"

	"concord/pkg/domain"
)

// Document is the per-subject profile record held by the remote store. The
// identity provider stays authoritative for email, display name and phone;
// the document is authoritative for the business fields.
type Document struct {
	SubjectID    domain.SubjectID `json:"subject_id"`
	Email        string           `json:"email,omitempty"`
	DisplayName  string           `json:"display_name,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	BusinessName string           `json:"business_name,omitempty"`
	Address      string           `json:"address,omitempty"`
	NationalID   string           `json:"national_id,omitempty"`
	AgentCode    string           `json:"agent_code,omitempty"`
}

// Store is the document-store port.
//
// Get returns sentinel.ErrNotFound when no document exists for the subject,
// sentinel.ErrUnavailable (possibly wrapped) on transport failure, and
// sentinel.ErrPermissionDenied when the store rejects the caller. Set upserts;
// Update fails with sentinel.ErrNotFound when the document is absent.
//
// SetNetworkEnabled tells the store to stop or resume remote traffic so an
// offline device does not burn resources; while disabled, calls fail with
// sentinel.ErrUnavailable.
type Store interface {
	Get(ctx context.Context, id domain.SubjectID) (*Document, error)
	Set(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error
	SetNetworkEnabled(enabled bool)
}
