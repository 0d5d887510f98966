package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

func TestLedgerService_Append(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestLedgerService(t, db)
	ctx := context.Background()

	stored, err := svc.Append(ctx, testutil.NewEvent(model.TypeDeposit).On("2025-01-01").Amount("1000").By("alice").Event())
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.NotZero(t, stored.Seq)

	_, err = svc.Append(ctx, stored)
	assert.ErrorIs(t, err, apperrors.ErrFailedToAppendEvent, "duplicate id is rejected")

	testutil.AssertRowCount(t, db, "ledger_event", 1)
}

func TestLedgerService_Events(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestLedgerService(t, db)
	ctx := context.Background()

	testutil.Deposit(t, db, "2025-01-01", "alice", "1000")
	testutil.Deposit(t, db, "2025-01-02", "bob", "500")
	testutil.Buy(t, db, "2025-01-02", "AAA", "5", "500")

	events, err := svc.Events(ctx, model.LedgerFilter{Types: []model.TransactionType{model.TypeDeposit}})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].Owner)
	assert.Equal(t, "bob", events[1].Owner)

	_, err = svc.Events(ctx, model.LedgerFilter{Start: testutil.Date("2025-02-01"), End: testutil.Date("2025-01-01")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidDateRange)
}
