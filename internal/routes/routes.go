package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/congo-pay/custody_auth/internal/audit"
	"github.com/congo-pay/custody_auth/internal/config"
	"github.com/congo-pay/custody_auth/internal/custody"
	"github.com/congo-pay/custody_auth/internal/lease"
	"github.com/congo-pay/custody_auth/internal/metrics"
	"github.com/congo-pay/custody_auth/internal/middleware"
	"github.com/congo-pay/custody_auth/internal/notification"
	"github.com/congo-pay/custody_auth/internal/session"
	"github.com/congo-pay/custody_auth/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache and
// Mongo may be nil in development; Backend defaults to the HTTP custody
// client built from Cfg.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Mongo   *mongo.Client
	Backend custody.Backend
	Logger  *slog.Logger
}

// Runtime exposes the components that outlive request handling.
type Runtime struct {
	Metrics  *metrics.Metrics
	Recorder *audit.Recorder
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	m := metrics.New()
	auditRepo, err := auditRepository(d)
	if err != nil {
		return nil, err
	}
	recorder := audit.NewRecorder(auditRepo, d.Logger, m, notification.NewLoggerNotifier(d.Logger), d.Cfg.AuditWriteTimeout)

	backend := d.Backend
	if backend == nil {
		backend = custody.NewHTTPClient(d.Cfg.CustodyBaseURL, d.Cfg.CustodyAPIKey, &http.Client{
			Timeout: d.Cfg.CustodyCallTimeout + time.Second,
		})
	}

	var (
		epochs custody.EpochStore
		locker lease.Locker
	)
	if d.Cache != nil {
		epochs = custody.NewRedisEpochStore(d.Cache)
		locker = lease.NewRedisLocker(d.Cache)
	} else {
		epochs = custody.NewMemoryEpochStore()
		locker = lease.NewMemoryLocker()
	}

	sessionSvc := session.NewService(session.Deps{
		Backend:  backend,
		Keys:     custody.NewKeys(epochs),
		Locker:   locker,
		Recorder: recorder,
		Metrics:  m,
		Logger:   d.Logger,
	}, session.Options{
		AccountType: d.Cfg.CustodyAccountType,
		Blockchains: d.Cfg.Blockchains(),
		CallTimeout: d.Cfg.CustodyCallTimeout,
		LeaseTTL:    d.Cfg.SessionLeaseTTL,
	})
	locator := wallet.NewLocator(backend, m, d.Logger, d.Cfg.CustodyCallTimeout)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))
	app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	app.Get("/client-config", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{"appId": d.Cfg.ClientAppID})
	})

	RegisterSessionRoutes(app, session.NewHandler(sessionSvc), middleware.SessionRateLimit(d.Cache, d.Cfg.SessionRateLimitPerMin, d.Logger))
	RegisterWalletRoutes(app, wallet.NewHandler(locator))

	return &Runtime{Metrics: m, Recorder: recorder}, nil
}

func auditRepository(d Deps) (audit.Repository, error) {
	switch backend := d.Cfg.ResolvedAuditBackend(); backend {
	case config.AuditBackendPostgres:
		if d.DB == nil {
			return nil, fmt.Errorf("audit backend postgres needs a database connection")
		}
		return audit.NewPostgresRepository(d.DB), nil
	case config.AuditBackendMongo:
		if d.Mongo == nil {
			return nil, fmt.Errorf("audit backend mongo needs a mongo connection")
		}
		repo := audit.NewMongoRepository(d.Mongo.Database(d.Cfg.MongoDatabase).Collection(audit.DefaultCollection))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.EnsureIndexes(ctx); err != nil {
			d.Logger.Warn("audit index creation failed", slog.Any("error", err))
		}
		return repo, nil
	default:
		if !d.Cfg.IsDevelopment() {
			d.Logger.Warn("audit records are kept in memory only", slog.String("app_env", d.Cfg.AppEnv))
		}
		return audit.NewMemoryRepository(), nil
	}
}
