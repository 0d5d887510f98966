// Package app wires configuration, storage and services into a runnable
// application shared by the HTTP server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/api"
	"github.com/ndewijer/fund-ledger/internal/config"
	"github.com/ndewijer/fund-ledger/internal/database"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/pricecache"
	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/yahoo"
)

// App holds the open database, the optional cache client and every service.
type App struct {
	DB     *sql.DB
	Redis  *redis.Client
	Log    *zap.Logger
	Config *config.Config

	System         *service.SystemService
	Valuation      *service.ValuationService
	UnitAccounting *service.UnitAccountingService
	Risk           *service.RiskService
	Ledger         *service.LedgerService
	Prices         *service.PriceImportService
}

// Open opens and migrates the database, connects the price cache when
// configured and builds the services.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("connected to database", zap.String("path", cfg.Database.Path))

	a, err := New(ctx, db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// New builds the services on an already-migrated database.
func New(ctx context.Context, db *sql.DB, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{DB: db, Log: log, Config: cfg}

	ledgerRepo := repository.NewLedgerRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	riskRepo := repository.NewRiskRepository(db)

	priceRepo := repository.NewPriceRepository(db)
	var prices service.PriceOracle = priceRepo
	var invalidator service.PriceInvalidator
	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
		cache := pricecache.New(a.Redis, priceRepo, ttl, log.Named("pricecache"))
		prices, invalidator = cache, cache
		log.Info("price cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", ttl))
	}

	a.System = service.NewSystemService(db)
	a.Valuation = service.NewValuationService(ledgerRepo, prices, log.Named("valuation"))
	a.UnitAccounting = service.NewUnitAccountingService(ledgerRepo, a.Valuation, snapshotRepo, log.Named("units"))
	a.Risk = service.NewRiskService(
		a.Valuation.Composition(),
		prices,
		snapshotRepo,
		riskRepo,
		service.RiskOptions{
			LookbackDays: cfg.Risk.LookbackDays,
			MaxParallel:  cfg.Risk.MaxParallel,
		},
		log.Named("risk"),
	)
	a.Ledger = service.NewLedgerService(ledgerRepo, ledgerRepo, log.Named("ledger"))
	a.Prices = service.NewPriceImportService(
		yahoo.NewFinanceClient(cfg.Prices.BaseURL),
		priceRepo,
		a.Valuation.Composition(),
		invalidator,
		log.Named("prices"),
	)

	return a, nil
}

// Services returns the services exposed over HTTP.
func (a *App) Services() api.Services {
	return api.Services{
		System:         a.System,
		Valuation:      a.Valuation,
		UnitAccounting: a.UnitAccounting,
		Risk:           a.Risk,
		Ledger:         a.Ledger,
		Prices:         a.Prices,
	}
}

// RunDaily computes the snapshot for date and then its risk figures. When
// price fetching is enabled the held tickers' recent closes are refreshed
// first; fetch failures are logged and the computation proceeds with the
// prices on hand. A risk estimate that cannot be formed for lack of history
// is logged, not returned.
func (a *App) RunDaily(ctx context.Context, date time.Time) error {
	if a.Config.Prices.FetchOnSchedule {
		start := date.AddDate(0, 0, -a.Config.Prices.FetchDays)
		if _, err := a.Prices.ImportHeld(ctx, start, date); err != nil {
			a.Log.Warn("daily price refresh failed", zap.Error(err))
		}
	}

	snap, err := a.UnitAccounting.Compute(ctx, date)
	if err != nil {
		return err
	}
	a.Log.Info("daily snapshot computed",
		logging.Date("date", snap.Date),
		zap.String("nav", snap.NavPerUnit.String()),
	)

	// Risk is anchored on the latest snapshot before the given date, so the
	// day after is the one whose anchor is today's snapshot.
	if _, err := a.Risk.ComputeRisk(ctx, date.AddDate(0, 0, 1)); err != nil {
		if service.IsRiskSkip(err) {
			a.Log.Warn("daily risk skipped", zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

// Close releases the cache client and the database.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
