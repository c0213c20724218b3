package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/weiawesome/live-relay/internal/auth"
	"github.com/weiawesome/live-relay/internal/chatlog"
	"github.com/weiawesome/live-relay/internal/config"
	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/handler"
	"github.com/weiawesome/live-relay/internal/hub"
	"github.com/weiawesome/live-relay/internal/idgen"
	"github.com/weiawesome/live-relay/internal/presence"
	"github.com/weiawesome/live-relay/internal/registry"
	"github.com/weiawesome/live-relay/internal/repository"
	"github.com/weiawesome/live-relay/internal/service"
	"github.com/weiawesome/live-relay/pkg/database"
	"github.com/weiawesome/live-relay/pkg/jwt"
	pkglog "github.com/weiawesome/live-relay/pkg/log"
	"github.com/weiawesome/live-relay/pkg/middleware"
	"github.com/weiawesome/live-relay/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting live-relay")

	// Admin accounts
	var repo repository.AdminRepository = repository.NewMemoryAdminRepository()
	var db *gorm.DB
	if cfg.Database.Enabled() {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
		}
		if err := database.AutoMigrate(db, &domain.AdminModel{}); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
		repo = repository.NewGormAdminRepository(db)
		logger.Info().Str("driver", cfg.Database.Driver).Msg("admin accounts stored in database")
	}
	if cfg.Auth.AdminSecret == "" {
		logger.Warn().Msg("admin secret not set, registration disabled")
	}

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("jwt secret not set, tokens are signed with a per-process key")
	}
	authService := auth.NewService(repo, tokens, auth.Config{
		AdminSecret: cfg.Auth.AdminSecret,
		BcryptCost:  cfg.Auth.BcryptCost,
	})

	// Core stores
	ids, err := idgen.New(cfg.Chat.MessageID)
	if err != nil {
		logger.Fatal().Err(err).Str("kind", cfg.Chat.MessageID).Msg("failed to create message id generator")
	}
	chat := chatlog.New(chatlog.Config{
		Capacity:      cfg.Chat.HistorySize,
		MaxTextLength: cfg.Chat.MaxTextLength,
		AdminLabel:    cfg.Chat.AdminLabel,
	}, ids)

	// Event mirror is optional
	ps, err := pubsub.NewPubSub(cfg.PubSub)
	switch {
	case errors.Is(err, pubsub.ErrDisabled):
		ps = nil
		logger.Info().Msg("pubsub disabled")
	case err != nil:
		ps = nil
		logger.Warn().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to initialize pubsub, event mirror disabled")
	default:
		logger.Info().Str("driver", cfg.PubSub.Driver).Str("room", cfg.PubSub.Room).Msg("event mirror enabled")
	}

	wsHub := hub.NewHub(cfg.WebSocket)

	relaySvc := service.NewRelayService(
		wsHub,
		registry.New(cfg.Stream.DefaultTitle),
		presence.New(),
		chat,
		authService,
		ps,
		service.Options{
			Room:                 cfg.PubSub.Room,
			PublisherGracePeriod: cfg.Stream.PublisherGracePeriod,
			MaxNameLength:        cfg.Chat.MaxNameLength,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := relaySvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start relay service")
	}

	// HTTP API
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), pkglog.GinMiddleware(logger), middleware.CORS())
	handler.NewHandler(authService, relaySvc, middleware.NewAuthMiddleware(authService), cfg.WebRTC.ICEServers).RegisterRoutes(router)

	// The gin engine logs its own requests; the websocket route gets the
	// net/http logger.
	wsMux := http.NewServeMux()
	handler.NewWSHandler(wsHub, relaySvc).RegisterRoutes(wsMux)

	mux := http.NewServeMux()
	mux.Handle("/ws", pkglog.HTTPMiddleware(logger)(wsMux))
	mux.Handle("/", router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("live-relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down live-relay")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		wsHub.Shutdown()
		if stopErr := relaySvc.Stop(); stopErr != nil {
			logger.Error().Err(stopErr).Msg("failed to stop relay service")
		}
		if ps != nil {
			if closeErr := ps.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close pubsub")
			}
		}
		if db != nil {
			if closeErr := database.Close(db); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close database")
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("live-relay stopped with error")
	}
	logger.Info().Msg("live-relay stopped")
}

