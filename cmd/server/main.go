// Command server runs the bot backend: the Telegram webhook intake, the admin
// API and the background jobs (state sweeps, knowledge reloads, update id
// purges).
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-bizbot-backend/internal/brain"
	"github.com/tbourn/go-bizbot-backend/internal/channel/telegram"
	"github.com/tbourn/go-bizbot-backend/internal/config"
	httpapi "github.com/tbourn/go-bizbot-backend/internal/http"
	"github.com/tbourn/go-bizbot-backend/internal/http/handlers"
	"github.com/tbourn/go-bizbot-backend/internal/knowledge"
	"github.com/tbourn/go-bizbot-backend/internal/observability"
	"github.com/tbourn/go-bizbot-backend/internal/repo"
	"github.com/tbourn/go-bizbot-backend/internal/scheduler"
	"github.com/tbourn/go-bizbot-backend/internal/services"
	"github.com/tbourn/go-bizbot-backend/internal/state"
	"github.com/tbourn/go-bizbot-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run wires every component, serves until ctx is cancelled or a component
// fails, then shuts down in reverse order. It returns the process exit code.
func run(ctx context.Context) int {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	log := sysutil.NewLogger(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: version,
		Hooks:   []zerolog.Hook{observability.TraceHook{}},
	})
	ctx = log.WithContext(ctx)
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version,
		attribute.String("bizbot.default_tenant", cfg.Telegram.DefaultTenant))
	if err != nil {
		log.Error().Err(err).Msg("otel setup failed")
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage.
	dsn := cfg.DBPath
	if cfg.DBDriver == repo.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	db, err := repo.Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.DBDriver).Msg("database open failed")
		return 1
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Error().Err(err).Msg("migration failed")
		return 1
	}
	store := repo.Store{}

	// Credentials.
	dispatcher := telegram.NewDispatcher(cfg.Telegram.APIURL, cfg.Telegram.SendTimeout)
	creds := services.NewCredentialService(db, store, cfg.Telegram.DefaultTenant)
	creds.Probe = cfg.Telegram.ProbeCredentials
	creds.Webhooks = dispatcher
	creds.WebhookBaseURL = cfg.Telegram.WebhookBaseURL
	if _, err := store.EnsureTenant(ctx, db, cfg.Telegram.DefaultTenant, ""); err != nil {
		log.Error().Err(err).Msg("default tenant bootstrap failed")
		return 1
	}
	if seeded, err := creds.Seed(ctx, cfg.Telegram.DefaultTenant, cfg.Telegram.BotToken, cfg.Telegram.WebhookSecret); err != nil {
		log.Error().Err(err).Msg("seeding bot credential failed")
		return 1
	} else if seeded == nil {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set; replies need a registered credential")
	}

	// Conversation state.
	stOpts := state.Options{
		TTL:        cfg.State.TTL,
		MaxEntries: cfg.State.MaxEntries,
		Spam: state.SpamPolicy{
			Window:      cfg.Pipeline.SpamWindow,
			MinGap:      cfg.Pipeline.SpamMinGap,
			MaxMessages: cfg.Pipeline.SpamMaxMessages,
		},
	}
	if cfg.State.RedisURL != "" {
		rdb, err := state.NewRedisClient(ctx, cfg.State.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("redis unavailable")
			return 1
		}
		defer rdb.Close()
		stOpts.Memory = state.NewRedisStore(rdb, "", cfg.State.TTL)
		log.Info().Msg("conversation memory kept in redis")
	}
	convState := state.New(stOpts)

	// Knowledge base. A missing or broken file leaves the base empty.
	kb, kbStats, err := knowledge.NewFromFile(cfg.KnowledgePath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.KnowledgePath).Msg("knowledge base not loaded")
	} else {
		log.Info().Int("entries", kbStats.Loaded).Int("skipped", kbStats.Skipped).Msg("knowledge base loaded")
	}

	b := brain.New(brain.Options{
		Knowledge:              kb,
		State:                  convState,
		MaxRunes:               cfg.Pipeline.MaxMessageRunes,
		UnknownStreakThreshold: cfg.Pipeline.UnknownStreakThreshold,
	})

	conversations := services.NewConversationService(db, store)
	webhook := &services.WebhookService{
		Normalizer:     &telegram.Normalizer{MaxRunes: cfg.Pipeline.MaxMessageRunes},
		Brain:          b,
		Resolver:       creds,
		Sender:         dispatcher,
		Recorder:       conversations,
		DB:             db,
		Updates:        store,
		DedupTTL:       cfg.UpdateDedupTTL,
		PersistTimeout: cfg.Pipeline.PersistTimeout,
	}

	// Background jobs.
	sched, err := scheduler.New(log)
	if err != nil {
		log.Error().Err(err).Msg("scheduler init failed")
		return 1
	}
	jobs := []scheduler.Job{
		scheduler.StateSweepJob(convState, cfg.State.SweepInterval),
		scheduler.UpdatePurgeJob(db, cfg.UpdateDedupTTL/4, nil),
	}
	if cfg.KnowledgeReloadInterval > 0 {
		jobs = append(jobs, scheduler.KnowledgeReloadJob(kb, cfg.KnowledgeReloadInterval))
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			log.Error().Err(err).Str("job", j.Name).Msg("scheduling failed")
			return 1
		}
	}

	// HTTP.
	h := handlers.New(handlers.Deps{
		Webhook:       webhook,
		Conversations: conversations,
		Memory:        &services.MemoryService{State: convState},
		Credentials:   creds,
		Knowledge:     kb,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
	r := gin.New()
	httpapi.RegisterRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sched.Start()
		log.Info().Strs("jobs", sched.Jobs()).Msg("scheduler started")
		<-gctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("scheduler shutdown")
		}
		return nil
	})

	// SIGHUP reloads the knowledge base without a restart.
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				st, err := kb.Reload(gctx)
				if err != nil {
					log.Warn().Err(err).Msg("knowledge reload on SIGHUP failed")
					continue
				}
				log.Info().Int("entries", st.Loaded).Msg("knowledge reloaded on SIGHUP")
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if derr := webhook.Drain(sctx); derr != nil {
			log.Warn().Err(derr).Msg("pending conversation writes abandoned")
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped with error")
		return 1
	}
	log.Info().Msg("server stopped")
	return 0
}
