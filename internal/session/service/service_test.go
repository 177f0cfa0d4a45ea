package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"concord/internal/cache"
	"concord/internal/identity"
	"concord/internal/netmon"
	"concord/internal/platform/config"
	"concord/internal/profile"
	"concord/internal/resolver"
	"concord/internal/session/store"
	"concord/pkg/domain"
	domainerrors "concord/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	provider *identity.MemoryProvider
	profiles *profile.MemoryStore
	cache    *cache.Memory
	cell     *store.Store
	net      *netmon.Monitor
	resolver *resolver.Resolver
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	log := slog.New(slog.DiscardHandler)
	cfg := config.Resolver{
		MaxAttempts:       3,
		AttemptTimeout:    50 * time.Millisecond,
		BaseDelay:         time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		ResolutionTimeout: time.Second,
	}
	s.provider = identity.NewMemoryProvider()
	s.profiles = profile.NewMemoryStore()
	s.cache = cache.NewMemory()
	s.cell = store.New()
	s.net = netmon.New(log)
	retrier := resolver.NewRetrier(s.profiles, s.net, resolver.PolicyFromConfig(cfg), log, nil)
	s.resolver = resolver.New(s.provider, s.profiles, s.cache, s.cell, retrier, cfg, log, nil)
	s.svc = New(s.provider, s.profiles, s.net, s.resolver, s.cell, log, nil)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestLogin() {
	s.Run("rejects immediately when offline, no provider call", func() {
		s.provider.Seed("ada@example.com", "correct horse", "Ada", "")
		s.net.SetOnline(false)
		defer s.net.SetOnline(true)

		_, err := s.svc.Login(context.Background(), "ada@example.com", "correct horse")
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeOffline))

		// The pre-flight guard fired before any provider interaction.
		current, cerr := s.provider.CurrentPrincipal(context.Background())
		s.Require().NoError(cerr)
		s.Nil(current)
	})

	s.Run("publishes a basic session immediately on success", func() {
		s.provider.Seed("ada@example.com", "correct horse", "Ada", "+4411")

		sess, err := s.svc.Login(context.Background(), "ada@example.com", "correct horse")
		s.Require().NoError(err)
		s.Require().NotNil(sess)
		s.Equal("ada@example.com", sess.Email)
		s.False(sess.SubjectID.IsZero())

		s.resolver.Wait()
	})

	s.Run("maps wrong password to invalid-credentials", func() {
		s.provider.Seed("ada@example.com", "correct horse", "Ada", "")
		_, err := s.svc.Login(context.Background(), "ada@example.com", "nope")
		s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidCredentials))
	})

	s.Run("maps unknown email to unknown-email", func() {
		_, err := s.svc.Login(context.Background(), "nobody@example.com", "pw")
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnknownEmail))
	})

	s.Run("enrichment lands asynchronously after login", func() {
		s.provider.Seed("ada@example.com", "correct horse", "Ada", "")
		seeded, err := s.provider.SignIn(context.Background(), "ada@example.com", "correct horse")
		s.Require().NoError(err)
		s.Require().NoError(s.provider.SignOut(context.Background()))
		s.Require().NoError(s.profiles.Set(context.Background(), &profile.Document{
			SubjectID:    seeded.SubjectID,
			BusinessName: "Ada's Shop",
		}))

		_, err = s.svc.Login(context.Background(), "ada@example.com", "correct horse")
		s.Require().NoError(err)
		s.resolver.Wait()

		got := s.cell.Current()
		s.Require().NotNil(got)
		s.Equal(domain.CompletenessEnriched, got.Completeness)
		s.Equal("Ada's Shop", got.BusinessName)
	})
}

func (s *ServiceSuite) TestRegister() {
	input := RegistrationInput{
		Email:        "new@example.com",
		Password:     "long enough",
		DisplayName:  "Grace",
		Phone:        "+1555",
		BusinessName: "Hopper Consulting",
		AgentCode:    "G-1",
	}

	s.Run("rejects immediately when offline", func() {
		s.net.SetOnline(false)
		defer s.net.SetOnline(true)

		_, err := s.svc.Register(context.Background(), input)
		s.True(domainerrors.HasCode(err, domainerrors.CodeOffline))
	})

	s.Run("creates principal, document, and session", func() {
		sess, err := s.svc.Register(context.Background(), input)
		s.Require().NoError(err)
		s.Require().NotNil(sess)
		s.Equal("Grace", sess.DisplayNameRaw)
		s.resolver.Wait()

		doc, err := s.profiles.Get(context.Background(), sess.SubjectID)
		s.Require().NoError(err)
		s.Equal("Hopper Consulting", doc.BusinessName)
		s.Equal("G-1", doc.AgentCode)

		enriched := s.cell.Current()
		s.Require().NotNil(enriched)
		s.Equal(domain.CompletenessEnriched, enriched.Completeness)
		s.Equal("Hopper Consulting", enriched.BusinessName)
	})

	s.Run("maps duplicate email to email-in-use", func() {
		// The account was created by the previous subtest.
		_, err := s.svc.Register(context.Background(), input)
		s.True(domainerrors.HasCode(err, domainerrors.CodeEmailInUse))
	})

	s.Run("maps short password to weak-password", func() {
		weak := input
		weak.Email = "weak@example.com"
		weak.Password = "tiny"
		_, err := s.svc.Register(context.Background(), weak)
		s.True(domainerrors.HasCode(err, domainerrors.CodeWeakPassword))
	})

	s.Run("document write failure still yields a basic session", func() {
		s.profiles.SetNetworkEnabled(false)
		defer s.profiles.SetNetworkEnabled(true)

		degraded := input
		degraded.Email = "degraded@example.com"
		sess, err := s.svc.Register(context.Background(), degraded)
		s.Require().NoError(err, "registration is not rolled back on a failed profile write")
		s.Require().NotNil(sess)
		s.resolver.Wait()

		got := s.cell.Current()
		s.Require().NotNil(got)
		s.Equal(domain.CompletenessBasic, got.Completeness)
	})
}

func (s *ServiceSuite) TestLogout() {
	s.provider.Seed("ada@example.com", "correct horse", "Ada", "")
	_, err := s.svc.Login(context.Background(), "ada@example.com", "correct horse")
	s.Require().NoError(err)
	s.resolver.Wait()
	s.Require().NotNil(s.cell.Current())

	s.Require().NoError(s.svc.Logout(context.Background()))
	s.Nil(s.cell.Current())
	s.Nil(s.cache.Load())

	current, err := s.provider.CurrentPrincipal(context.Background())
	s.Require().NoError(err)
	s.Nil(current)
}

func TestLoginRateLimitedMapping(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	provider := identity.NewMemoryProvider()
	provider.Seed("ada@example.com", "correct horse", "Ada", "")
	profiles := profile.NewMemoryStore()
	cell := store.New()
	net := netmon.New(log)
	cfg := config.Resolver{MaxAttempts: 1, AttemptTimeout: 50 * time.Millisecond, BaseDelay: time.Millisecond, ResolutionTimeout: time.Second}
	retrier := resolver.NewRetrier(profiles, net, resolver.PolicyFromConfig(cfg), log, nil)
	res := resolver.New(provider, profiles, cache.NewMemory(), cell, retrier, cfg, log, nil)
	svc := New(provider, profiles, net, res, cell, log, nil)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(context.Background(), "ada@example.com", "wrong")
		require.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidCredentials))
	}
	_, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeRateLimited))
}
