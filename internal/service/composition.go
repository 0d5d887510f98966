package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// CompositionResolver derives the fund's security holdings on a date from the
// cumulative buy and sell events in the ledger.
type CompositionResolver struct {
	ledger TransactionLedger
	log    *zap.Logger
}

// NewCompositionResolver creates a new CompositionResolver.
func NewCompositionResolver(ledger TransactionLedger, log *zap.Logger) *CompositionResolver {
	return &CompositionResolver{ledger: ledger, log: log}
}

// CompositionAt returns the net quantity held per ticker across all buy and
// sell events dated on or before date. Tickers whose net quantity is zero or
// negative are closed positions and are left out.
func (c *CompositionResolver) CompositionAt(ctx context.Context, date time.Time) (model.Composition, error) {
	net, err := c.ledger.NetShares(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve composition: %w", err)
	}

	comp := make(model.Composition, len(net))
	for ticker, qty := range net {
		if !qty.IsPositive() {
			if qty.IsNegative() {
				c.log.Debug("oversold position excluded from composition",
					logging.Date("date", date),
					zap.String("ticker", ticker),
					zap.String("netQuantity", qty.String()),
				)
			}
			continue
		}
		comp[ticker] = qty
	}

	return comp, nil
}
