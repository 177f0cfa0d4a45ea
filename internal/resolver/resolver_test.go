package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/cache"
	"concord/internal/identity"
	"concord/internal/netmon"
	"concord/internal/platform/config"
	"concord/internal/profile"
	"concord/internal/session"
	"concord/internal/session/store"
	"concord/pkg/domain"
	domainerrors "concord/pkg/domain-errors"
	"concord/pkg/testutil"
)

type fixture struct {
	provider *identity.MemoryProvider
	profiles *profile.MemoryStore
	cache    *cache.Memory
	cell     *store.Store
	net      *netmon.Monitor
	resolver *Resolver
}

func newFixture(t *testing.T, cfg config.Resolver) *fixture {
	t.Helper()
	f := &fixture{
		provider: identity.NewMemoryProvider(),
		profiles: profile.NewMemoryStore(),
		cache:    cache.NewMemory(),
		cell:     store.New(),
		net:      netmon.New(testLogger()),
	}
	retrier := NewRetrier(f.profiles, f.net, PolicyFromConfig(cfg), testLogger(), nil)
	f.resolver = New(f.provider, f.profiles, f.cache, f.cell, retrier, cfg, testLogger(), nil)
	return f
}

func fastResolverConfig() config.Resolver {
	return config.Resolver{
		MaxAttempts:       5,
		AttemptTimeout:    50 * time.Millisecond,
		BaseDelay:         time.Millisecond,
		MaxDelay:          8 * time.Millisecond,
		ResolutionTimeout: time.Second,
	}
}

func principal() identity.Principal {
	return identity.Principal{
		SubjectID:   domain.SubjectID("u1"),
		Email:       "ada@example.com",
		DisplayName: "Ada",
		Phone:       "+4411",
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stop := f.resolver.Start(ctx)
	t.Cleanup(func() { stop(); cancel() })
}

func (f *fixture) waitForCompleteness(t *testing.T, c domain.Completeness) *session.Session {
	t.Helper()
	ok := testutil.Eventually(t, 2*time.Second, func() bool {
		sess := f.cell.Current()
		return sess != nil && sess.Completeness == c
	})
	require.True(t, ok, "session never reached completeness %q", c)
	return f.cell.Current()
}

func TestFreshSignInHealthyNetwork(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	require.NoError(t, f.profiles.Set(context.Background(), &profile.Document{
		SubjectID:    "u1",
		BusinessName: "Ada's Shop",
		AgentCode:    "A-17",
	}))
	f.start(t)
	f.provider.Seed("ada@example.com", "correct horse", "Ada", "+4411")

	_, err := f.provider.SignIn(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	// The basic session is published synchronously with the provider event.
	sess := f.cell.Current()
	require.NotNil(t, sess)
	assert.Equal(t, domain.CompletenessBasic, sess.Completeness)
	assert.False(t, f.cell.View().Provisional)

	enriched := f.waitForCompleteness(t, domain.CompletenessEnriched)
	assert.Equal(t, "Ada's Shop", enriched.BusinessName)
	assert.Equal(t, "A-17", enriched.AgentCode)
	assert.Equal(t, "ada@example.com", enriched.Email)

	// Both publishes were mirrored to the cache.
	f.resolver.Wait()
	assert.GreaterOrEqual(t, f.cache.Saves(), 2)
	snap := f.cache.Load()
	require.NotNil(t, snap)
	assert.Equal(t, domain.CompletenessEnriched, snap.Session.Completeness)
}

func TestEnrichmentFailureRetainsBasic(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	f.profiles.FailGets(100) // unavailable for all attempts
	f.start(t)

	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), principal()))
	f.resolver.Wait()

	sess := f.cell.Current()
	require.NotNil(t, sess)
	assert.Equal(t, domain.CompletenessBasic, sess.Completeness)
	// The failure is never surfaced as a resolution error.
	assert.NoError(t, f.cell.View().Err)
}

func TestAbsentDocumentCreatesProfileAndRetainsBasic(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	f.start(t)

	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), principal()))
	f.resolver.Wait()

	sess := f.cell.Current()
	require.NotNil(t, sess)
	assert.Equal(t, domain.CompletenessBasic, sess.Completeness)

	// A document was created from the basic fields.
	doc, err := f.profiles.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", doc.Email)
	assert.Equal(t, "Ada", doc.DisplayName)
}

func TestProfileCreateFailureDoesNotDowngrade(t *testing.T) {
	// Get answers absent, then the ensure-create write fails; the published
	// basic session must survive untouched.
	pf := &failingWriteStore{MemoryStore: profile.NewMemoryStore()}
	cell := store.New()
	net := netmon.New(testLogger())
	retrier := NewRetrier(pf, net, PolicyFromConfig(fastResolverConfig()), testLogger(), nil)
	r := New(identity.NewMemoryProvider(), pf, cache.NewMemory(), cell, retrier, fastResolverConfig(), testLogger(), nil)

	require.NoError(t, r.ResolveSignIn(context.Background(), principal()))
	r.Wait()

	sess := cell.Current()
	require.NotNil(t, sess)
	assert.Equal(t, domain.CompletenessBasic, sess.Completeness)
	assert.NoError(t, cell.View().Err)
}

func TestSignOutClearsSessionAndCache(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	f.start(t)

	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), principal()))
	f.resolver.Wait()
	require.NotNil(t, f.cell.Current())

	f.resolver.ResolveSignOut()
	assert.Nil(t, f.cell.Current())
	assert.Nil(t, f.cache.Load())
	assert.GreaterOrEqual(t, f.cache.Clears(), 1)
}

func TestStaleEnrichmentNeverOverwritesNewerSession(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	require.NoError(t, f.profiles.Set(context.Background(), &profile.Document{
		SubjectID:    "u1",
		BusinessName: "Stale Shop",
	}))
	f.profiles.SetLatency(50 * time.Millisecond) // first enrichment is slow
	f.start(t)

	first := principal()
	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), first))

	// A newer event supersedes before the first enrichment lands.
	second := identity.Principal{SubjectID: "u2", Email: "grace@example.com"}
	f.profiles.SetLatency(0)
	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), second))

	f.resolver.Wait()

	sess := f.cell.Current()
	require.NotNil(t, sess)
	assert.Equal(t, domain.SubjectID("u2"), sess.SubjectID, "stale enrichment must not win")
	snap := f.cache.Load()
	require.NotNil(t, snap)
	assert.Equal(t, domain.SubjectID("u2"), snap.Session.SubjectID)
}

func TestDuplicateEventsResolveIdentically(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	require.NoError(t, f.profiles.Set(context.Background(), &profile.Document{
		SubjectID:    "u1",
		BusinessName: "Ada's Shop",
	}))
	f.start(t)

	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), principal()))
	f.resolver.Wait()
	first := f.cell.Current()

	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), principal()))
	f.resolver.Wait()
	second := f.cell.Current()

	assert.Equal(t, first, second, "re-resolving the same event must be idempotent")
	assert.Equal(t, domain.CompletenessEnriched, second.Completeness)
}

func TestColdStartBootstrapsProvisionalSessionFromCache(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	cached := &session.Session{
		SubjectID:    "u1",
		Email:        "ada@example.com",
		Completeness: domain.CompletenessEnriched,
	}
	f.cache.Seed(cached, time.Now().Add(-time.Hour))
	f.start(t)

	v := f.cell.View()
	require.NotNil(t, v.Session)
	assert.True(t, v.Provisional)
	assert.True(t, v.Loading)
	assert.Equal(t, domain.SubjectID("u1"), v.Session.SubjectID)
}

func TestCorruptCacheIsIgnoredAtStart(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	f.cache.Seed(&session.Session{SubjectID: "u1"}, time.Now())
	f.cache.CorruptLoad(true)
	f.start(t)

	assert.Nil(t, f.cell.Current())
}

func TestWatchdogSurfacesResolutionTimeout(t *testing.T) {
	cfg := fastResolverConfig()
	cfg.ResolutionTimeout = 30 * time.Millisecond
	f := newFixture(t, cfg)
	f.start(t)

	// No provider event ever arrives and no principal exists.
	ok := testutil.Eventually(t, time.Second, func() bool {
		return f.cell.View().Err != nil
	})
	require.True(t, ok, "watchdog never surfaced the timeout")
	assert.True(t, domainerrors.HasCode(f.cell.View().Err, domainerrors.CodeResolutionTimeout))
}

func TestWatchdogReconstructsFromCurrentPrincipal(t *testing.T) {
	cfg := fastResolverConfig()
	cfg.ResolutionTimeout = 30 * time.Millisecond
	f := newFixture(t, cfg)

	// A principal is signed in, but its change event was lost: sign in
	// before the resolver subscribes.
	f.provider.Seed("ada@example.com", "correct horse", "Ada", "")
	_, err := f.provider.SignIn(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	f.start(t)

	ok := testutil.Eventually(t, time.Second, func() bool {
		sess := f.cell.Current()
		return sess != nil && !f.cell.View().Provisional
	})
	require.True(t, ok, "watchdog never reconstructed the session")
	assert.Equal(t, "ada@example.com", f.cell.Current().Email)
}

func TestWatchdogStaysQuietAfterPublish(t *testing.T) {
	cfg := fastResolverConfig()
	cfg.ResolutionTimeout = 30 * time.Millisecond
	f := newFixture(t, cfg)
	f.start(t)

	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), principal()))
	f.resolver.Wait()

	time.Sleep(60 * time.Millisecond)
	assert.NoError(t, f.cell.View().Err)
}

func TestCacheSaveFailureDoesNotAffectResolution(t *testing.T) {
	f := newFixture(t, fastResolverConfig())
	f.cache.FailSaves(true)
	f.start(t)

	require.NoError(t, f.resolver.ResolveSignIn(context.Background(), principal()))
	f.resolver.Wait()

	require.NotNil(t, f.cell.Current())
	assert.NoError(t, f.cell.View().Err)
}

// failingWriteStore answers Get with absent and rejects every write, so the
// ensure-profile path fails while enrichment itself succeeds.
type failingWriteStore struct {
	*profile.MemoryStore
}

func (s *failingWriteStore) Set(ctx context.Context, doc *profile.Document) error {
	return assert.AnError
}
