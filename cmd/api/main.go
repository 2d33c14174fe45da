package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxportal/docs"
	"taxportal/internal/config"
	"taxportal/internal/database"
	"taxportal/internal/database/migration"
	handlers "taxportal/internal/http/handler"
	"taxportal/internal/http/middleware"
	"taxportal/internal/logging"
	"taxportal/internal/metrics"
	"taxportal/internal/notify"
	"taxportal/internal/otel"
	"taxportal/internal/payment"
	"taxportal/internal/ratelimit"
	"taxportal/internal/repository/postgres"
	"taxportal/internal/security"
	"taxportal/internal/service"
	"taxportal/internal/storage"
)

// @title						Tax Portal API
// @version					1.0
// @description				GST, ITR and ROC filing portal: submissions, payments and staff review.
// @BasePath					/
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
// @securityDefinitions.apikey	SessionCookie
// @in							cookie
// @name						session
func main() {
	cfg := config.Load()
	loc := cfg.Location()
	log := logging.New("taxportal-api", cfg.LogLevel, loc)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error("tracing shutdown failed", "error", err)
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		runner, err := migration.NewRunner(db, cfg.Database.Host, log)
		if err != nil {
			return err
		}
		if err := runner.Up(ctx); err != nil {
			return err
		}
	}

	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer limiter.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics, err := metrics.New(reg)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notifySenders(cfg.Notify, log), cfg.Notify.QueueSize, log, appMetrics)
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dispatcher.Close(dctx); err != nil {
			log.Warn("notification queue not drained", "error", err)
		}
	}()

	sessions, err := security.NewSessionManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}

	users := postgres.NewUserPostgres(db)
	regions := postgres.NewRegionPostgres(db)
	catalog := postgres.NewCatalogPostgres(db)
	submissions := postgres.NewSubmissionPostgres(db)
	payments := postgres.NewPaymentPostgres(db)

	authSvc := service.NewAuthService(users, limiter, sessions, service.LoginPolicy{
		IPLimit:    cfg.Auth.IPLimit,
		EmailLimit: cfg.Auth.EmailLimit,
		Window:     cfg.Auth.RateWindow,
	}, appMetrics, log)
	submissionSvc := service.NewSubmissionService(service.SubmissionDeps{
		Submissions: submissions,
		Catalog:     catalog,
		Regions:     regions,
		Users:       users,
		Store:       objStore,
		Notifier:    dispatcher,
		Metrics:     appMetrics,
		Log:         log,
	}, service.UploadPolicy{
		MaxFileSize: cfg.Upload.MaxFileSize,
		MaxFiles:    cfg.Upload.MaxFiles,
		PresignTTL:  cfg.Upload.PresignTTL,
	})
	paymentSvc := service.NewPaymentService(service.PaymentDeps{
		Payments:    payments,
		Submissions: submissions,
		Catalog:     catalog,
		Users:       users,
		Gateway: payment.Gateway{
			Key:        cfg.Payment.MerchantKey,
			Salt:       cfg.Payment.Salt,
			ActionURL:  cfg.Payment.ActionURL,
			SuccessURL: cfg.Payment.SuccessURL,
			FailureURL: cfg.Payment.FailureURL,
		},
		Notifier: dispatcher,
		Metrics:  appMetrics,
		Log:      log,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.Upload.BodyLimitMiB << 20,
		ProxyHeader:  cfg.ProxyHeader,
	})

	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	app.Use(httpMetrics.Handler())
	app.Use(middleware.LoggerWithWriter(os.Stdout, cfg.Location()))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:          db,
		Auth:        authSvc,
		Catalog:     service.NewCatalogService(catalog),
		Regions:     service.NewRegionService(regions, users),
		Users:       service.NewUserService(users, regions, log),
		Submissions: submissionSvc,
		Payments:    paymentSvc,
		Sessions:    sessions,
		Cookie: handlers.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		},
		PaymentReturnURL: cfg.Payment.ReturnURL,
		Log:              log,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("http server listening", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func newLimiter(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (ratelimit.Limiter, error) {
	if cfg.Auth.RateLimitBackend == "redis" {
		return ratelimit.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	}
	return ratelimit.NewMemory(), nil
}

// notifySenders enables each channel whose endpoint is configured.
func notifySenders(cfg config.NotifyConfig, log *slog.Logger) []notify.Sender {
	var senders []notify.Sender
	if cfg.SMTPHost != "" {
		senders = append(senders, notify.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From))
	}
	if cfg.WhatsAppURL != "" {
		senders = append(senders, notify.NewWhatsAppSender(cfg.WhatsAppURL, cfg.WhatsAppToken))
	}
	if len(senders) == 0 {
		log.Warn("no notification channel configured")
	}
	return senders
}
