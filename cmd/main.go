package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/seedling-live/internal/cart"
	"github.com/weiawesome/seedling-live/internal/config"
	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/eventbus"
	"github.com/weiawesome/seedling-live/internal/handler"
	"github.com/weiawesome/seedling-live/internal/hub"
	"github.com/weiawesome/seedling-live/internal/live"
	"github.com/weiawesome/seedling-live/internal/provider"
	"github.com/weiawesome/seedling-live/internal/receipt"
	"github.com/weiawesome/seedling-live/internal/relay"
	"github.com/weiawesome/seedling-live/internal/session"
	"github.com/weiawesome/seedling-live/pkg/database"
	"github.com/weiawesome/seedling-live/pkg/jwt"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
	"github.com/weiawesome/seedling-live/pkg/middleware"
	"github.com/weiawesome/seedling-live/pkg/pubsub"
	"github.com/weiawesome/seedling-live/pkg/storage"
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

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting seedling-live")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := eventbus.New()
	defer bus.Close()

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	// Cart backend
	var (
		backend     cart.Backend
		mutator     cart.Mutator
		httpBackend *cart.HTTPBackend
	)
	switch cfg.Cart.Driver {
	case "database":
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close(db)
		if err := database.AutoMigrate(db, cart.Models()...); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
		gb := cart.NewGormBackend(db)
		backend, mutator = gb, gb
		logger.Info().Str("driver", cfg.Database.Driver).Msg("cart backend: database")
	case "http", "":
		httpBackend = cart.NewHTTPBackend(cfg.Cart.BaseURL, cfg.Cart.FetchTimeout)
		backend = httpBackend
		logger.Info().Str("base_url", cfg.Cart.BaseURL).Msg("cart backend: storefront api")
	default:
		logger.Fatal().Str("driver", cfg.Cart.Driver).Msg("unsupported cart driver")
	}

	syncer := cart.NewSynchronizer(backend, bus, cfg.Cart.FetchTimeout)
	syncer.Start(ctx)
	defer syncer.Stop()

	sessions := session.NewManager(tokens, syncer)
	if httpBackend != nil {
		httpBackend.SetTokenSource(sessions.Token)
	}

	// Live session over pub/sub
	ps, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pubsub")
	}
	defer ps.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("connected to pubsub")

	ctrl := live.NewController(provider.NewPubSubProvider(ps), bus)
	rel := relay.New(ctrl, bus)
	defer rel.Close()

	// Receipts
	store, err := storage.New(ctx, cfg.Receipt.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize receipt storage")
	}
	var archive *receipt.Archive
	if store != nil {
		archive = receipt.NewArchive(store, cfg.Receipt.URLExpiry)
		logger.Info().Str("driver", cfg.Receipt.Storage.Driver).Msg("receipt archive enabled")
	}

	wsHub := hub.NewHub(cfg.WebSocket)

	h := handler.NewHandler(handler.Services{
		Bus:      bus,
		Cart:     syncer,
		Mutator:  mutator,
		Live:     ctrl,
		Relay:    rel,
		Session:  sessions,
		Receipts: receipt.NewPDFGenerator(cfg.Receipt.Brand),
		Archive:  archive,
		Hub:      wsHub,
	}, middleware.NewAuthMiddleware(tokens))
	wsHandler := handler.NewWSHandler(wsHub, h, cfg.WebSocket)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), pkglog.GinMiddleware(logger))
	h.RegisterRoutes(router)
	wsHandler.RegisterRoutes(router)
	if cfg.Receipt.Storage.Driver == "local" {
		router.Static("/receipts", filepath.Join(cfg.Receipt.Storage.Local.BasePath, "receipts"))
	}

	if cfg.Live.RoomID != "" {
		self := domain.Participant{
			ID:          cfg.Live.ParticipantID,
			DisplayName: cfg.Live.DisplayName,
			Mode:        domain.Mode(cfg.Live.Mode),
		}
		if err := ctrl.Join(ctx, cfg.Live.RoomID, self); err != nil {
			logger.Fatal().Err(err).Str(pkglog.FieldRoomID, cfg.Live.RoomID).Msg("failed to join live room")
		}
	}

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("seedling-live listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down seedling-live")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if ctrl.Joined() {
			if err := ctrl.Leave(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("failed to leave live room")
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("seedling-live exited with error")
	}
	logger.Info().Msg("seedling-live stopped")
}
