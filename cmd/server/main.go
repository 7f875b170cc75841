package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quickclean/internal/changefeed"
	"quickclean/internal/config"
	"quickclean/internal/database"
	"quickclean/internal/httputil"
	"quickclean/internal/logger"
	appmw "quickclean/internal/middleware"
	"quickclean/internal/models"
	"quickclean/internal/modules/auth"
	"quickclean/internal/modules/notification"
	"quickclean/internal/modules/pricing"
	"quickclean/internal/modules/request"
	"quickclean/internal/modules/upload"
	"quickclean/internal/modules/worker"
	"quickclean/pkg/email"
	"quickclean/pkg/eventbus"
	"quickclean/pkg/sms"
	"quickclean/pkg/storage"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("main: failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("main: failed to build logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Fatal("main: server exited", zap.Error(err))
	}
	logg.Info("main: server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *zap.Logger) error {
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		logg.Info("database schema applied")
	}

	var priceCache pricing.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logg.Warn("redis unavailable, pricing cache disabled", zap.Error(err))
		} else {
			priceCache = pricing.NewRedisCache(rdb)
		}
	}

	// Repositories and services.
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret, cfg.JWTTTL, logg)

	pricingSvc := pricing.NewService(pricing.NewRepository(pool), priceCache, logg)
	requestSvc := request.NewService(request.NewRepository(pool), pricingSvc, logg)
	workerSvc := worker.NewService(worker.NewRepository(pool), logg)
	notificationRepo := notification.NewRepository(pool)

	broker := changefeed.NewBroker(logg)
	defer broker.Close()

	g, gctx := errgroup.WithContext(ctx)

	listener := changefeed.NewListener(pool, broker, logg)

	if cfg.NotifierEnabled {
		notifier, err := buildNotifier(ctx, cfg, notificationRepo, logg)
		if err != nil {
			return err
		}

		var publisher notification.Publisher = notifier
		if cfg.AMQPURL != "" {
			bus, err := eventbus.Dial(cfg.AMQPURL, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer bus.Close()
			publisher = notification.NewBusPublisher(bus)
			g.Go(func() error {
				return notification.ConsumeEvents(gctx, bus, notifier)
			})
		}

		dispatcher := notification.NewDispatcher(broker, publisher, notificationRepo, logg)
		listener.OnConnect(func(ctx context.Context) {
			if err := dispatcher.Reconcile(ctx); err != nil {
				logg.Error("notification reconcile failed", zap.Error(err))
			}
		})
		g.Go(func() error {
			return dispatcher.Run(gctx)
		})
	}

	g.Go(func() error {
		return listener.Run(gctx)
	})

	e := newServer(cfg, logg, pool)

	api := e.Group("/api/v1")
	authed := api.Group("", appmw.JWT(cfg.JWTSecret), appmw.Session(authSvc))
	routes := httputil.Routes{
		Public: api,
		Authed: authed,
		Worker: authed.Group("/worker", appmw.RequireRole(models.RoleWorker)),
		Admin:  authed.Group("/admin", appmw.RequireRole(models.RoleAdmin)),
	}

	auth.NewHandler(authSvc).RegisterRoutes(routes)
	pricing.NewHandler(pricingSvc).RegisterRoutes(routes)
	request.NewHandler(requestSvc).RegisterRoutes(routes)
	worker.NewHandler(workerSvc).RegisterRoutes(routes)
	notification.NewHandler(notificationRepo, broker).RegisterRoutes(routes)

	if cfg.MinioEndpoint != "" {
		store, err := storage.New(ctx, storage.Options{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		})
		if err != nil {
			return err
		}
		upload.NewHandler(store, logg).RegisterRoutes(routes)
		logg.Info("connected to object storage", zap.String("bucket", cfg.MinioBucket))
	} else {
		logg.Warn("MINIO_ENDPOINT not set, image uploads disabled")
	}

	g.Go(func() error {
		logg.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logg.Info("server is shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Open change-feed streams only end when their subscription closes.
		broker.Close()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newServer(cfg *config.Config, logg *zap.Logger, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(appmw.RequestLogger(logg))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitPerSec))))

	e.GET("/healthz", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Message: "database unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}

// buildNotifier picks the SMS and email senders. Missing credentials only
// surface when a send is attempted.
func buildNotifier(ctx context.Context, cfg *config.Config, repo notification.RepositoryInterface, logg *zap.Logger) (*notification.Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}

	var mail email.Sender
	switch cfg.EmailProvider {
	case "mailersend":
		mail = email.NewMailerSend(cfg.MailerSendAPIKey, "QuickClean", cfg.EmailFrom)
	case "ses":
		mail = email.NewSES(awsCfg, cfg.EmailFrom)
	default:
		logg.Warn("unknown EMAIL_PROVIDER, completion emails disabled", zap.String("provider", cfg.EmailProvider))
	}

	return notification.NewNotifier(repo, sms.NewSNS(awsCfg, cfg.SMSSenderID), mail, cfg.ClientOrigin, logg), nil
}
