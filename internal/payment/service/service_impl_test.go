package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/fanvault/internal/clock"
	"github.com/smallbiznis/fanvault/internal/config"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	"github.com/smallbiznis/fanvault/internal/payment/gateway/gatewaytest"
	"github.com/smallbiznis/fanvault/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type failingGateway struct{ err error }

func (g *failingGateway) Charge(context.Context, paymentdomain.ChargeRequest) (paymentdomain.ChargeResult, error) {
	return paymentdomain.ChargeResult{}, g.err
}

func newTestService(t *testing.T, gateway paymentdomain.Gateway) (paymentdomain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.Attempt{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Cfg:     config.Config{},
		Gateway: gateway,
		Repo:    repository.Provide(),
	})
	return svc, node
}

func TestCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("completed charge is recorded with a masked source", func(t *testing.T) {
		svc, node := newTestService(t, gatewaytest.NewCompleted())
		accountID := node.Generate()

		attempt, err := svc.Charge(ctx, paymentdomain.ChargeParams{
			AccountID:   accountID,
			AmountCents: 1999,
			SourceToken: "tok_4242424242",
			TargetType:  paymentdomain.TargetTypeMembership,
			TargetID:    node.Generate(),
		})
		require.NoError(t, err)

		assert.Equal(t, paymentdomain.AttemptStatusCompleted, attempt.Status)
		assert.Equal(t, "****4242", attempt.SourceRef)
		assert.Equal(t, "USD", attempt.Currency)
		assert.NotEmpty(t, attempt.TransactionID)

		attempts, err := svc.ListByAccount(ctx, accountID.String())
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, attempt.ID, attempts[0].ID)
	})

	t.Run("decline is a recorded outcome, not an error", func(t *testing.T) {
		svc, node := newTestService(t, gatewaytest.NewDeclined("insufficient_funds"))

		attempt, err := svc.Charge(ctx, paymentdomain.ChargeParams{
			AccountID:   node.Generate(),
			AmountCents: 500,
			SourceToken: "tok_4000000000",
			TargetType:  paymentdomain.TargetTypeMessage,
			TargetID:    node.Generate(),
		})
		require.NoError(t, err)
		assert.Equal(t, paymentdomain.AttemptStatusDeclined, attempt.Status)
		assert.Equal(t, "insufficient_funds", attempt.DeclineReason)
		assert.Empty(t, attempt.TransactionID)
	})

	t.Run("gateway fault is recorded and surfaced", func(t *testing.T) {
		fault := errors.New("connection reset")
		svc, node := newTestService(t, &failingGateway{err: fault})
		accountID := node.Generate()

		attempt, err := svc.Charge(ctx, paymentdomain.ChargeParams{
			AccountID:   accountID,
			AmountCents: 500,
			SourceToken: "tok_4242424242",
			TargetType:  paymentdomain.TargetTypeMembership,
			TargetID:    node.Generate(),
		})
		require.ErrorIs(t, err, fault)
		assert.Equal(t, paymentdomain.AttemptStatusError, attempt.Status)

		// The fault still lands on the audit trail.
		attempts, listErr := svc.ListByAccount(ctx, accountID.String())
		require.NoError(t, listErr)
		require.Len(t, attempts, 1)
		assert.Equal(t, paymentdomain.AttemptStatusError, attempts[0].Status)
	})

	t.Run("validation happens before the gateway", func(t *testing.T) {
		gateway := gatewaytest.NewCompleted()
		svc, node := newTestService(t, gateway)

		_, err := svc.Charge(ctx, paymentdomain.ChargeParams{
			AccountID:   node.Generate(),
			SourceToken: "tok_4242424242",
		})
		assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

		_, err = svc.Charge(ctx, paymentdomain.ChargeParams{
			AccountID:   node.Generate(),
			AmountCents: 500,
			SourceToken: "   ",
		})
		assert.ErrorIs(t, err, paymentdomain.ErrInvalidSourceToken)

		assert.Equal(t, 0, gateway.Calls())
	})
}

func TestListByAccount(t *testing.T) {
	svc, _ := newTestService(t, gatewaytest.NewCompleted())

	_, err := svc.ListByAccount(context.Background(), "not-a-snowflake")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAccount)
}

func TestListByTarget(t *testing.T) {
	ctx := context.Background()
	svc, node := newTestService(t, gatewaytest.NewCompleted())
	target := node.Generate()

	for i := 0; i < 2; i++ {
		_, err := svc.Charge(ctx, paymentdomain.ChargeParams{
			AccountID:   node.Generate(),
			AmountCents: 999,
			SourceToken: "tok_4242424242",
			TargetType:  paymentdomain.TargetTypeMembership,
			TargetID:    target,
		})
		require.NoError(t, err)
	}

	attempts, err := svc.ListByTarget(ctx, paymentdomain.TargetTypeMembership, target.String())
	require.NoError(t, err)
	assert.Len(t, attempts, 2)

	_, err = svc.ListByTarget(ctx, paymentdomain.TargetTypeMembership, "")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidTarget)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****4242", maskToken("tok_4242424242"))
	assert.Equal(t, "****", maskToken("abc"))
	assert.Equal(t, "****", maskToken("4242"))
}
