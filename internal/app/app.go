// Package app assembles repositories, services and HTTP routes into a
// runnable fiber application.
package app

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/carbon-ledger/internal/api/http"
	"github.com/spec-kit/carbon-ledger/internal/api/http/handlers"
	"github.com/spec-kit/carbon-ledger/internal/approval"
	"github.com/spec-kit/carbon-ledger/internal/auth"
	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/ledger"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/persistence"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	"github.com/spec-kit/carbon-ledger/internal/repository/memory"
	"github.com/spec-kit/carbon-ledger/internal/service"
)

// Storage is the set of repositories sharing one Transactor.
type Storage struct {
	Users         repository.UserRepository
	Organizations repository.OrganizationRepository
	Trips         repository.TripRepository
	Transactions  repository.CreditTransactionRepository
	History       repository.TransactionHistoryRepository
	LedgerEntries repository.LedgerEntryRepository
	Transactor    repository.Transactor
}

// MemoryStorage backs every repository with store.
func MemoryStorage(store *memory.Store) Storage {
	return Storage{
		Users:         store.Users(),
		Organizations: store.Organizations(),
		Trips:         store.Trips(),
		Transactions:  store.CreditTransactions(),
		History:       store.TransactionHistory(),
		LedgerEntries: store.LedgerEntries(),
		Transactor:    store,
	}
}

// PostgresStorage backs every repository with the pool behind pg.
func PostgresStorage(pg *persistence.Postgres, lockTimeout time.Duration, logger *zap.Logger) Storage {
	pool := pg.Pool
	return Storage{
		Users:         repository.NewUserRepository(pool),
		Organizations: repository.NewOrganizationRepository(pool),
		Trips:         repository.NewTripRepository(pool),
		Transactions:  repository.NewCreditTransactionRepository(pool),
		History:       repository.NewTransactionHistoryRepository(pool),
		LedgerEntries: repository.NewLedgerEntryRepository(pool),
		Transactor:    persistence.NewTxManager(pool, lockTimeout, logger),
	}
}

// Options configures New.
type Options struct {
	Config     config.Config
	Storage    Storage
	Locker     ledger.Locker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Dependencies are probed by /health/ready.
	Dependencies map[string]handlers.Pinger
}

// Application is the wired service graph.
type Application struct {
	Fiber         *fiber.App
	Ledger        *ledger.Ledger
	Auth          *service.AuthService
	Organizations *service.OrganizationService
	Trips         *service.TripService
	Transfers     *service.TransferService
}

// New wires services and registers routes.
func New(opts Options) *Application {
	cfg := opts.Config
	logger := opts.Logger
	st := opts.Storage

	gate := approval.NewGate(st.Organizations)
	l := ledger.New(st.Organizations, st.LedgerEntries, st.Transactor, opts.Locker, opts.Metrics, logger)

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:         st.Users,
		OrganizationRepo: st.Organizations,
		Transactor:       st.Transactor,
		Logger:           logger,
	})
	orgService := service.NewOrganizationService(service.OrganizationDependencies{
		OrganizationRepo: st.Organizations,
		UserRepo:         st.Users,
		Transactor:       st.Transactor,
		Ledger:           l,
		Gate:             gate,
		Dispatcher:       opts.Dispatcher,
		Logger:           logger,
	})
	tripService := service.NewTripService(service.TripDependencies{
		TripRepo:   st.Trips,
		UserRepo:   st.Users,
		Transactor: st.Transactor,
		Ledger:     l,
		Gate:       gate,
		Dispatcher: opts.Dispatcher,
		Metrics:    opts.Metrics,
		Logger:     logger,
	})
	transferService := service.NewTransferService(service.TransferDependencies{
		TransactionRepo:  st.Transactions,
		HistoryRepo:      st.History,
		OrganizationRepo: st.Organizations,
		Transactor:       st.Transactor,
		Ledger:           l,
		Gate:             gate,
		Dispatcher:       opts.Dispatcher,
		Metrics:          opts.Metrics,
		Logger:           logger,
	})

	fiberApp := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(fiberApp, logger, opts.Metrics, cfg.App.RequestTimeout())

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = opts.Metrics
	}
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, opts.Dependencies),
		Auth:           handlers.NewAuthHandler(authService),
		Organizations:  handlers.NewOrganizationsHandler(orgService),
		Trips:          handlers.NewTripsHandler(tripService),
		Credits:        handlers.NewCreditsHandler(transferService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), st.Users),
		Metrics:        metrics,
	})

	return &Application{
		Fiber:         fiberApp,
		Ledger:        l,
		Auth:          authService,
		Organizations: orgService,
		Trips:         tripService,
		Transfers:     transferService,
	}
}
