// Package service executes the session intents: login, register, logout.
// Each intent guards on connectivity, calls the identity provider, and hands
// the resulting principal to the resolver; enrichment failures degrade to a
// basic session instead of failing the intent.
package service

import (
	"context"
	"log/slog"

	"concord/internal/identity"
	"concord/internal/netmon"
	"concord/internal/platform/metrics"
	"concord/internal/profile"
	"concord/internal/resolver"
	"concord/internal/session"
	"concord/internal/session/store"
	domainerrors "concord/pkg/domain-errors"
)

type Service struct {
	provider identity.Provider
	profiles profile.Store
	net      *netmon.Monitor
	resolver *resolver.Resolver
	cell     *store.Store
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func New(
	provider identity.Provider,
	profiles profile.Store,
	net *netmon.Monitor,
	res *resolver.Resolver,
	cell *store.Store,
	log *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		provider: provider,
		profiles: profiles,
		net:      net,
		resolver: res,
		cell:     cell,
		log:      log,
		metrics:  m,
	}
}

// RegistrationInput carries the registration form fields. Validation beyond
// what the provider enforces is the caller's concern.
type RegistrationInput struct {
	Email        string
	Password     string
	DisplayName  string
	Phone        string
	BusinessName string
	Address      string
	NationalID   string
	AgentCode    string
}

// Login authenticates against the identity provider. Rejected immediately
// with CodeOffline when the device is offline; no provider call is made.
func (s *Service) Login(ctx context.Context, email, password string) (*session.Session, error) {
	if !s.net.Online() {
		s.metrics.ObserveLoginOutcome(string(domainerrors.CodeOffline))
		return nil, domainerrors.New(domainerrors.CodeOffline, "device is offline")
	}

	principal, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		translated := identity.Translate(err)
		s.metrics.ObserveLoginOutcome(string(domainerrors.CodeOf(translated)))
		return nil, translated
	}

	s.establish(ctx, principal)
	s.metrics.ObserveLoginOutcome("ok")
	return s.cell.Current(), nil
}

// Register creates the provider principal, sets its display name, writes the
// initial profile document, and resolves the session. A failed document
// write degrades to a basic session; registration is never rolled back.
func (s *Service) Register(ctx context.Context, in RegistrationInput) (*session.Session, error) {
	if !s.net.Online() {
		return nil, domainerrors.New(domainerrors.CodeOffline, "device is offline")
	}

	principal, err := s.provider.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return nil, identity.Translate(err)
	}

	if in.DisplayName != "" {
		if err := s.provider.UpdateDisplayName(ctx, principal.SubjectID, in.DisplayName); err != nil {
			s.log.Warn("display name update failed during registration",
				"subject_id", principal.SubjectID, "error", err)
		}
		principal.DisplayName = in.DisplayName
	}
	principal.Phone = in.Phone

	doc := &profile.Document{
		SubjectID:    principal.SubjectID,
		Email:        principal.Email,
		DisplayName:  in.DisplayName,
		Phone:        in.Phone,
		BusinessName: in.BusinessName,
		Address:      in.Address,
		NationalID:   in.NationalID,
		AgentCode:    in.AgentCode,
	}
	if err := s.profiles.Set(ctx, doc); err != nil {
		// The principal already exists; the user is never blocked by a
		// failed enrichment write.
		s.log.Warn("initial profile write failed, continuing with basic session",
			"subject_id", principal.SubjectID, "error", err)
	}

	s.establish(ctx, principal)
	return s.cell.Current(), nil
}

// Logout signs out of the provider and publishes the signed-out state. Local
// sign-out always succeeds; a provider failure is logged, not surfaced.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		s.log.Warn("provider sign-out failed, clearing local session anyway", "error", err)
	}
	// Idempotent with the provider's own change event.
	s.resolver.ResolveSignOut()
	return nil
}

// establish hands the principal to the resolver; if resolution fails
// synchronously the session degrades to basic rather than failing the
// intent.
func (s *Service) establish(ctx context.Context, principal identity.Principal) {
	if err := s.resolver.ResolveSignIn(ctx, principal); err != nil {
		s.log.Error("resolution failed, publishing basic session directly",
			"subject_id", principal.SubjectID, "error", err)
		s.cell.Publish(session.NewBasic(principal))
	}
}
