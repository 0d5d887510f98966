package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/api/handlers"
	custommiddleware "github.com/ndewijer/fund-ledger/internal/api/middleware"
	"github.com/ndewijer/fund-ledger/internal/config"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// Services groups the services the HTTP API exposes.
type Services struct {
	System         *service.SystemService
	Valuation      *service.ValuationService
	UnitAccounting *service.UnitAccountingService
	Risk           *service.RiskService
	Ledger         *service.LedgerService
	Prices         *service.PriceImportService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/fund", func(r chi.Router) {
			fundHandler := handlers.NewFundHandler(svc.Valuation, svc.UnitAccounting)
			r.Get("/value", fundHandler.Value)
			r.Get("/snapshot", fundHandler.Snapshots)
			r.Post("/snapshot/range", fundHandler.ComputeRange)
			r.Route("/snapshot/{date}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateDateMiddleware)
				r.Post("/", fundHandler.ComputeSnapshot)
				r.Get("/investors", fundHandler.Investors)
			})
		})

		r.Route("/risk", func(r chi.Router) {
			riskHandler := handlers.NewRiskHandler(svc.Risk)
			r.Post("/range", riskHandler.ComputeRange)
			r.Route("/{date}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateDateMiddleware)
				r.Get("/", riskHandler.GetRisk)
				r.Post("/", riskHandler.ComputeRisk)
			})
		})

		r.Route("/ledger", func(r chi.Router) {
			ledgerHandler := handlers.NewLedgerHandler(svc.Ledger)
			r.Get("/event", ledgerHandler.Events)
			r.Post("/event", ledgerHandler.AppendEvent)
		})

		r.Route("/prices", func(r chi.Router) {
			pricesHandler := handlers.NewPricesHandler(svc.Prices)
			r.Post("/import", pricesHandler.Import)
		})
	})

	return r
}
