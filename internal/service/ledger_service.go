package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// LedgerService records and lists ledger events. Events are validated before
// they reach this layer.
type LedgerService struct {
	appender EventAppender
	ledger   TransactionLedger
	log      *zap.Logger
}

// NewLedgerService creates a new LedgerService with the provided dependencies.
func NewLedgerService(appender EventAppender, ledger TransactionLedger, log *zap.Logger) *LedgerService {
	return &LedgerService{
		appender: appender,
		ledger:   ledger,
		log:      log,
	}
}

// Append stores an event. Snapshots already computed for the event's date or
// later are not recomputed; callers recompute the affected range.
func (s *LedgerService) Append(ctx context.Context, event model.CashFlowEvent) (model.CashFlowEvent, error) {
	stored, err := s.appender.Append(ctx, event)
	if err != nil {
		return model.CashFlowEvent{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToAppendEvent, err)
	}

	s.log.Info("ledger event appended",
		zap.String("id", stored.ID),
		zap.String("type", string(stored.Type)),
		logging.Date("date", stored.Date),
		zap.String("amount", stored.Amount.String()),
	)
	return stored, nil
}

// Events lists ledger events matching filter in (date, seq) order.
func (s *LedgerService) Events(ctx context.Context, filter model.LedgerFilter) ([]model.CashFlowEvent, error) {
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.Start.After(filter.End) {
		return nil, apperrors.ErrInvalidDateRange
	}
	events, err := s.ledger.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	return events, nil
}
