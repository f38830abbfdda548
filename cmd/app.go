package cmd

import (
	"context"
	"fmt"
	"net/http"

	"sports-buddy-backend/internal/config"
	"sports-buddy-backend/internal/feed"
	"sports-buddy-backend/internal/handlers"
	"sports-buddy-backend/internal/metrics"
	"sports-buddy-backend/internal/middleware"
	"sports-buddy-backend/internal/repository"
	"sports-buddy-backend/internal/repository/memory"
	"sports-buddy-backend/internal/services"
	"sports-buddy-backend/internal/session"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// stores groups the persistence the services run on
type stores struct {
	accounts      services.AccountStore
	profiles      services.ProfileStore
	listings      services.ListingStore
	notifications services.NotificationStore
	source        feed.Source
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		store := memory.New()
		return &stores{
			accounts:      store,
			profiles:      store,
			listings:      store,
			notifications: store,
			source:        store,
			close:         func() {},
		}, nil
	}

	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("Database schema applied")
	}

	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	return &stores{
		accounts:      userRepo,
		profiles:      userRepo,
		listings:      listingRepo,
		notifications: repository.NewNotificationRepository(db),
		source:        listingRepo,
		close:         db.Close,
	}, nil
}

// app is the wired service: stores, live feed, services and handlers
type app struct {
	cfg    *config.Config
	stores *stores
	stream *feed.Stream
	cache  *feed.Cache
	coord  *feed.Coordinator
	hub    *services.WSHub

	authService    *services.AuthService
	listingService *services.ListingService
	adminService   *services.AdminService
	profileService *services.ProfileService
	uploadService  *services.UploadService
	resolver       *session.Resolver

	feedDone chan struct{}
}

func newApp(ctx context.Context, cfg *config.Config, st *stores) (*app, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	var pusher services.Pusher
	if cfg.APNs.Enabled() {
		apns, err := services.NewAPNsPusher(cfg.APNs)
		if err != nil {
			return nil, fmt.Errorf("failed to create push client: %w", err)
		}
		pusher = apns
	}

	a := &app{
		cfg:      cfg,
		stores:   st,
		cache:    feed.NewCache(),
		resolver: session.NewResolver(st.profiles),
		feedDone: make(chan struct{}),
	}

	notifier := services.NewNotifier(st.notifications, st.profiles, pusher)
	a.authService = services.NewAuthService(
		st.accounts,
		st.profiles,
		services.NewLogMailer(),
		cfg.Auth.Secret,
		cfg.Auth.TokenTTL,
		cfg.Auth.ResetTokenTTL,
		cfg.Auth.ResetURLPattern,
	)
	a.listingService = services.NewListingService(st.listings, st.profiles, notifier, a.cache, loc)
	a.adminService = services.NewAdminService(st.listings, st.profiles, loc)
	a.profileService = services.NewProfileService(st.profiles)
	if cfg.AWS.Enabled() {
		a.uploadService, err = services.NewUploadService(ctx, st.profiles, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("failed to create upload service: %w", err)
		}
	}
	a.hub = services.NewWSHub(a.listingService, a.adminService)
	a.authService.OnRevoke(a.hub.Revoke)

	a.stream, err = feed.Open(ctx, st.source)
	if err != nil {
		return nil, fmt.Errorf("failed to open listing stream: %w", err)
	}
	a.coord = feed.NewCoordinator(a.cache)
	a.coord.Register(a.hub)

	go func() {
		defer close(a.feedDone)
		if err := a.coord.Run(a.stream); err != nil {
			log.Error().Err(err).Msg("Listing stream ended")
		}
	}()

	return a, nil
}

// router builds the HTTP routes
func (a *app) router() http.Handler {
	authHandler := handlers.NewAuthHandler(a.authService)
	listingHandler := handlers.NewListingHandler(a.listingService)
	adminHandler := handlers.NewAdminHandler(a.adminService)
	profileHandler := handlers.NewProfileHandler(a.profileService, a.uploadService)
	wsHandler := handlers.NewWebSocketHandler(a.hub, a.authService, a.resolver, a.checkOrigin)

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.Recover)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   a.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(a.authService, a.resolver))

		// Public routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/password-reset", authHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
		r.Get("/session", authHandler.GetSession)
		r.Get("/listings", listingHandler.ListListings)
		r.Get("/listings/{id}", listingHandler.GetListing)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/listings/mine", listingHandler.MyListings)
			r.Post("/listings", listingHandler.CreateListing)
			r.Post("/listings/{id}/join", listingHandler.JoinListing)
			r.Delete("/listings/{id}", listingHandler.DeleteListing)
			r.Get("/admin/stats", adminHandler.GetStats)
			r.Post("/admin/clear-test-data", adminHandler.ClearTestData)
			r.Put("/profile/push-token", profileHandler.UpdatePushToken)
			r.Post("/profile/photo/upload", profileHandler.GetPhotoUploadURL)
			r.Put("/profile/photo", profileHandler.ConfirmPhoto)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	r.Get("/health", a.health)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if a.coord.Err() != nil {
		status = "feed_disconnected"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":%q,"listings":%d,"connections":%d}`, status, a.cache.Len(), a.hub.Count())
}

func (a *app) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// shutdown stops the live feed and closes every WebSocket, drains srv, and
// only then closes the stores so requests still in flight can finish
func (a *app) shutdown(ctx context.Context, srv *http.Server) error {
	a.stream.Close()
	select {
	case <-a.feedDone:
	case <-ctx.Done():
		log.Warn().Msg("Timed out waiting for the feed to stop")
	}
	a.hub.CloseAll()

	err := srv.Shutdown(ctx)
	a.stores.close()
	return err
}
