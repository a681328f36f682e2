package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/config"
	"github.com/tomymiron/ETH-Global/internal/db"
	"github.com/tomymiron/ETH-Global/internal/handlers"
	"github.com/tomymiron/ETH-Global/internal/logging"
	"github.com/tomymiron/ETH-Global/internal/mail"
	"github.com/tomymiron/ETH-Global/internal/mq"
	"github.com/tomymiron/ETH-Global/internal/services"
	"github.com/tomymiron/ETH-Global/internal/storage"
	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/internal/telemetry"
)

const (
	requestTimeout = 60 * time.Second
	redisPingWait  = 5 * time.Second
	corsMaxAge     = 300
)

// Services are the dependencies mounted by the router.
type Services struct {
	Auth     handlers.AuthService
	OTP      handlers.OTPService
	Recovery handlers.RecoveryService
	Events   handlers.EventService
	Payments handlers.PaymentService
	Images   handlers.ImageService
}

// Server wraps the HTTP server, its router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	queue      *mq.MQ
	mailer     *mail.InlineDispatcher
	tracing    func(context.Context) error
}

// New opens every backing connection, wires the services and builds the
// router. Resources opened before a failure are released.
func New(ctx context.Context, cfg config.Config) (srv *Server, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	s := &Server{logger: logger, tracing: func(context.Context) error { return nil }}
	defer func() {
		if err != nil {
			_ = s.release(context.Background())
		}
	}()

	s.tracing, err = telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	s.db, err = db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingWait)
	err = s.redis.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s.queue, err = mq.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}

	var dispatcher mail.Dispatcher
	var publisher services.EventPublisher
	if s.queue != nil {
		dispatcher = mail.NewQueueDispatcher(s.queue)
		publisher = s.queue
	} else {
		s.mailer = mail.NewInlineDispatcher(mail.NewSender(cfg.Mail), logger)
		dispatcher = s.mailer
	}

	procs := store.NewProcedures(s.db)
	users := store.NewUserRepository(procs)
	otps := store.NewOTPRepository(procs)
	templates := mail.NewTemplates(cfg.Mail.TemplateDir, cfg.Mail.DefaultTemplateDir)
	sessions := services.NewSessionTokens(cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	images := services.NewProfileImages(objects)

	svc := Services{
		Auth: services.NewAuthService(users, sessions, images, logger),
		OTP:  services.NewOTPService(users, otps, templates, dispatcher, logger),
		Recovery: services.NewRecoveryService(
			users,
			otps,
			templates,
			dispatcher,
			services.NewRecoveryTokens(cfg.Auth.RecoverPassKey, cfg.Auth.RecoverTTL),
			store.NewRecoveryTokenLedger(s.redis),
			logger,
		),
		Events: services.NewEventService(
			store.NewEventRepository(procs),
			store.NewCatalogRepository(s.db),
			logger,
		),
		Payments: services.NewPaymentService(store.NewPaymentRepository(s.db), publisher, logger),
		Images:   images,
	}

	s.router = NewRouter(svc, logger, cfg.CORSOrigins)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// NewRouter mounts every route of the API on a chi router.
func NewRouter(svc Services, logger *zap.Logger, origins []string) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.RequestLogger(logger),
		logging.SecurityHeaders,
		cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "x-api-key"},
			ExposedHeaders:   []string{handlers.HeaderNextCursor},
			AllowCredentials: true,
			MaxAge:           corsMaxAge,
		}),
		middleware.Timeout(requestTimeout),
	)

	router.Get("/", handlers.Welcome)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, svc.Auth, svc.OTP, svc.Recovery, logger)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, svc.Events, svc.Auth, logger)
	})
	router.Route("/payments", func(r chi.Router) {
		handlers.PaymentRouter(r, svc.Payments, logger)
	})
	router.Route("/image", func(r chi.Router) {
		handlers.ImageRouter(r, svc.Images, logger)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Logger returns the process logger.
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight requests and
// queued inline mail, then closes the queue, Redis and the database and
// flushes pending spans.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.release(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) release(ctx context.Context) error {
	var errs []error
	if s.mailer != nil {
		s.mailer.Wait()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if err := s.tracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush tracing: %w", err))
	}
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
