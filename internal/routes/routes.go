package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/config"
	"github.com/torget/walletd/internal/directory"
	"github.com/torget/walletd/internal/funding"
	"github.com/torget/walletd/internal/gateway"
	"github.com/torget/walletd/internal/ledger"
	"github.com/torget/walletd/internal/middleware"
	"github.com/torget/walletd/internal/notification"
	"github.com/torget/walletd/internal/paymethod"
	"github.com/torget/walletd/internal/payments"
	"github.com/torget/walletd/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Gateway gateway.Gateway
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	RegisterHealthRoutes(app, d)

	var store balance.Store
	var ledgerBackend ledger.Ledger
	var registry paymethod.Registry
	var walletRepo wallet.Repository
	var userDir directory.Directory
	if d.DB != nil {
		store = balance.NewPostgresStore(d.DB)
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		registry = paymethod.NewPostgresRegistry(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		userDir = directory.NewPostgres(d.DB)
	} else {
		store = balance.NewMemoryStore()
		ledgerBackend = ledger.NewInMemory()
		registry = paymethod.NewMemoryRegistry()
		walletRepo = wallet.NewMemoryRepository()
		userDir = directory.AllowAll{}
	}

	gw := d.Gateway
	if gw == nil {
		gw = gateway.NewStatic()
	}

	walletSvc := wallet.NewService(walletRepo, store, ledgerBackend, registry, userDir, d.Cfg.DefaultCurrency)
	notifier := notification.NewLoggerNotifier(d.Logger)
	fundingSvc, err := funding.NewService(walletSvc, ledgerBackend, gw, notifier, d.Cfg.GatewayMaxAttempts, d.Cfg.GatewayRetryBase)
	if err != nil {
		return err
	}
	paymentSvc := payments.NewService(walletSvc, notifier)

	walletHandler := wallet.NewHandler(walletSvc)
	fundingHandler := funding.NewHandler(fundingSvc)
	paymentHandler := payments.NewHandler(paymentSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDHeader).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// The gateway callback sits outside the HTTP idempotency layer; the
	// reconciliation flow dedupes redelivered events itself.
	api.Post("/gateway/callbacks", fundingHandler.Callback)

	mutating := api.Group("")
	if d.Cache != nil {
		mutating.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterWalletRoutes(mutating, walletHandler)
	RegisterFundingRoutes(mutating, fundingHandler)
	RegisterPaymentRoutes(mutating, paymentHandler)

	return nil
}
