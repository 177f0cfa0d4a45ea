// Package identity defines the port to the external identity provider and
// the translation of its wire codes into the stable error taxonomy.
package identity

import (
	"context"
	"errors"
	"fmt"

	"concord/pkg/domain"
	domainerrors "concord/pkg/domain-errors"
)

// Principal is the authenticated identity reported by the provider. These
// fields are authoritative over anything the profile document carries.
type Principal struct {
	SubjectID   domain.SubjectID
	Email       string
	DisplayName string
	Phone       string
}

// Provider is the identity-provider port. A nil principal in an OnChange
// callback means signed out.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Principal, error)
	SignUp(ctx context.Context, email, password string) (Principal, error)
	SignOut(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, subjectID domain.SubjectID, name string) error
	CurrentPrincipal(ctx context.Context) (*Principal, error)
	OnChange(fn func(p *Principal)) (unsubscribe func())
}

// Provider wire codes. Providers return these inside a *ProviderError;
// Translate maps them to taxonomy codes at the service boundary.
const (
	WireEmailNotFound   = "EMAIL_NOT_FOUND"
	WireInvalidPassword = "INVALID_PASSWORD"
	WireTooManyAttempts = "TOO_MANY_ATTEMPTS_TRY_LATER"
	WireEmailExists     = "EMAIL_EXISTS"
	WireWeakPassword    = "WEAK_PASSWORD"
	WireUnavailable     = "UNAVAILABLE"
)

// ProviderError carries a provider-specific wire code.
type ProviderError struct {
	WireCode string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider rejected the request: %s", e.WireCode)
}

var wireToCode = map[string]domainerrors.Code{
	WireEmailNotFound:   domainerrors.CodeUnknownEmail,
	WireInvalidPassword: domainerrors.CodeInvalidCredentials,
	WireTooManyAttempts: domainerrors.CodeRateLimited,
	WireEmailExists:     domainerrors.CodeEmailInUse,
	WireWeakPassword:    domainerrors.CodeWeakPassword,
	WireUnavailable:     domainerrors.CodeNetworkUnavailable,
}

// Translate maps a provider error to a coded domain error. Transport-level
// failures (no wire code) become network-unavailable; unknown wire codes
// become unexpected.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return domainerrors.Wrap(err, domainerrors.CodeNetworkUnavailable, "identity provider unreachable")
	}
	code, ok := wireToCode[pe.WireCode]
	if !ok {
		return domainerrors.Wrap(err, domainerrors.CodeUnexpected, "unrecognized identity provider error")
	}
	return domainerrors.Wrap(err, code, "identity provider rejected the request")
}
