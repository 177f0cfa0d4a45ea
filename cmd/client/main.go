package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"concord/internal/cache"
	"concord/internal/guard"
	"concord/internal/identity"
	"concord/internal/netmon"
	"concord/internal/platform/config"
	"concord/internal/platform/logger"
	"concord/internal/platform/metrics"
	"concord/internal/profile"
	"concord/internal/resolver"
	"concord/internal/session/service"
	"concord/internal/session/store"
	httptransport "concord/internal/transport/http"
)

// main wires the session engine end to end: network monitor, identity
// provider, profile store, cache, resolver, guard and the HTTP surface.
// Reconciliation logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	net := netmon.New(log)

	db, err := cache.Open(cfg.CacheDir)
	if err != nil {
		log.Error("opening cache store", "dir", cfg.CacheDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	cacheAdapter := cache.NewBadger(db, log, m)

	var provider identity.Provider
	if cfg.IdentityAPIBaseURL != "" {
		provider = identity.NewRESTProvider(cfg.IdentityAPIBaseURL, cfg.IdentityAPIKey)
		log.Info("using REST identity provider", "base_url", cfg.IdentityAPIBaseURL)
	} else {
		provider = identity.NewMemoryProvider()
		log.Info("using in-memory identity provider")
	}

	var profiles profile.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("parsing redis url", "error", err)
			os.Exit(1)
		}
		profiles = profile.NewRedisStore(redis.NewClient(opts))
		log.Info("using redis profile store")
	} else {
		profiles = profile.NewMemoryStore()
		log.Info("using in-memory profile store")
	}

	// The profile store refuses remote calls while the device is offline.
	unsubNet := net.Subscribe(func(online bool) {
		profiles.SetNetworkEnabled(online)
	})
	defer unsubNet()

	cell := store.New()
	retrier := resolver.NewRetrier(profiles, net, resolver.PolicyFromConfig(cfg.Resolver), log, m)
	res := resolver.New(provider, profiles, cacheAdapter, cell, retrier, cfg.Resolver, log, m)
	stopResolver := res.Start(ctx)
	defer stopResolver()

	svc := service.New(provider, profiles, net, res, cell, log, m)
	g := guard.New(cell, cacheAdapter, cfg.Guard, log, m)
	router := httptransport.NewRouter(httptransport.NewHandler(svc, cell, log), g)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	if cfg.ProbeURL != "" {
		probe := netmon.HTTPProbe(cfg.ProbeURL, 5*time.Second)
		group.Go(func() error {
			net.Run(ctx, probe, cfg.ProbeInterval)
			return nil
		})
	}

	group.Go(func() error {
		log.Info("starting concord client", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("shutting down", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
