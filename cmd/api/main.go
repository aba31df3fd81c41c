package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/config"
	"github.com/mokurokubooks/mokuroku/pkg/database"
	"github.com/mokurokubooks/mokuroku/pkg/migrations"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/mokurokubooks/mokuroku/pkg/ratelimit"
	"github.com/mokurokubooks/mokuroku/pkg/resolver"
	"github.com/mokurokubooks/mokuroku/pkg/scanner"
	"github.com/mokurokubooks/mokuroku/pkg/server"
	"github.com/mokurokubooks/mokuroku/pkg/sourceclient"
	"github.com/mokurokubooks/mokuroku/pkg/sources"
	"github.com/mokurokubooks/mokuroku/pkg/version"
	"github.com/mokurokubooks/mokuroku/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/uptrace/bun"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting mokuroku", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	bindings, err := buildBindings(ctx, cfg, db)
	if err != nil {
		log.Err(err).Fatal("source setup error")
	}
	log.Info("sources configured", logger.Data{"count": len(bindings)})

	resolverService := resolver.NewService(db, nil)
	scn := scanner.New(db, bindings, resolverService, ratelimit.SystemClock())

	wrkr := worker.New(cfg, db, scn)

	srv, err := server.New(cfg, db, scn)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"port": actualPort})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// buildBindings seeds the configured sources into the database and wires each
// one to a rate-limited client and a provider. Shared state is deliberate: a
// single tracker, breaker, and counter store cover every source so limits hold
// across the whole process.
func buildBindings(ctx context.Context, cfg *config.Config, db *bun.DB) ([]*scanner.SourceBinding, error) {
	clock := ratelimit.SystemClock()
	store := ratelimit.NewDBStore(db, clock)
	tracker := ratelimit.NewTracker(store, clock)

	breakerConfigs := map[string]ratelimit.BreakerConfig{}
	for _, sc := range cfg.UserConfig.Sources {
		if sc.BreakerFailureThreshold > 0 || sc.BreakerCooldownSeconds > 0 {
			breakerConfigs[sc.Name] = ratelimit.BreakerConfig{
				FailureThreshold: sc.BreakerFailureThreshold,
				Cooldown:         sc.BreakerCooldown(),
			}
		}
	}
	breaker := ratelimit.NewBreaker(clock, breakerConfigs)

	sourceService := sources.NewService(db)
	httpc := &http.Client{Timeout: 30 * time.Second}

	bindings := []*scanner.SourceBinding{}
	for _, sc := range cfg.UserConfig.Sources {
		if sc.Disabled {
			continue
		}

		source, err := sourceService.EnsureSource(ctx, &models.Source{
			Name:       sc.Name,
			Kind:       sc.Kind,
			TrustLevel: sc.TrustLevel,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}

		client := sourceclient.New(sourceclient.Config{
			Source: sc.Name,
			Limits: ratelimit.Limits{
				PerDay:    sc.RequestsPerDay,
				PerHour:   sc.RequestsPerHour,
				PerMinute: sc.RequestsPerMinute,
			},
			MinInterval: sc.MinInterval(),
			CacheTTL:    sc.CacheTTL(),
		}, tracker, breaker, httpc, clock)

		provider := providerFor(sc, client)
		if provider == nil {
			continue
		}

		bindings = append(bindings, &scanner.SourceBinding{
			Source:   source,
			Provider: provider,
			Client:   client,
		})
	}

	return bindings, nil
}

func providerFor(sc *config.SourceConfig, client *sourceclient.Client) sources.Provider {
	switch sc.Name {
	case "openlibrary":
		return sources.NewOpenLibraryProvider(client, sc.BaseURL)
	}
	return nil
}
