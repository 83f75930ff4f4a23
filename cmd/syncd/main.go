// Command syncd runs the conversation sync daemon: the reconciliation
// engine, its HTTP surface, and the realtime feed subscriber.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bbBOZ/jellyspace-sync/internal/bot"
	"github.com/bbBOZ/jellyspace-sync/internal/cache"
	"github.com/bbBOZ/jellyspace-sync/internal/config"
	"github.com/bbBOZ/jellyspace-sync/internal/domain"
	httpapi "github.com/bbBOZ/jellyspace-sync/internal/http"
	"github.com/bbBOZ/jellyspace-sync/internal/observability"
	"github.com/bbBOZ/jellyspace-sync/internal/repo"
	"github.com/bbBOZ/jellyspace-sync/internal/stream"
	"github.com/bbBOZ/jellyspace-sync/internal/sync"
	"github.com/bbBOZ/jellyspace-sync/internal/sysutil"
)

const responderGreeting = "Hi! I'm Jelly~ Nice to meet you!"

// version is overridable at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.OTEL.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL,
		sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), version))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store := repo.NewStore(db)
	cacheStore := cache.NewStore(db, cfg.CacheTTL)

	var responder *bot.Responder
	if cfg.Bot.Enabled {
		responder = bot.NewResponder(bot.NewChatClient(cfg.Bot), store,
			cfg.Bot.UserID, cfg.Bot.HistoryLimit, log.Logger)
	}

	engine := sync.NewEngine(store, cacheStore, log.Logger, sync.Options{
		Responder:   responder,
		ColdTimeout: cfg.ColdLoadTimeout,
		Bootstrap: func(ctx context.Context, userID string) error {
			if !cfg.Bot.Enabled {
				return nil
			}
			_, err := store.EnsureResponderConversation(ctx, userID, cfg.Bot.UserID, responderGreeting)
			return err
		},
	})

	if cfg.Stream.URL != "" {
		sub := stream.NewSubscriber(cfg.Stream, log.Logger)
		sub.OnEvent(func(ev domain.MessageInserted) {
			engine.HandleEvent(context.Background(), ev)
		})
		sub.OnStatus(engine.HandleStreamStatus)
		if err := sub.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("url", cfg.Stream.URL).Msg("initial feed connect failed; retrying")
			// The subscriber reconnects on its own only after a drop, so
			// keep dialing until the first connection lands.
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-time.After(cfg.Stream.ReconnectBase):
					}
					if err := sub.Connect(ctx); err == nil {
						return
					}
				}
			}()
		}
		defer func() {
			if err := sub.Close(); err != nil {
				log.Warn().Err(err).Msg("feed close")
			}
		}()
	} else {
		log.Info().Msg("STREAM_URL not set; realtime feed disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, engine, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("stopped")
}
