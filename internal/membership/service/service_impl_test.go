package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/fanvault/internal/clock"
	"github.com/smallbiznis/fanvault/internal/config"
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
	"github.com/smallbiznis/fanvault/internal/membership/repository"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	"github.com/smallbiznis/fanvault/internal/payment/gateway/gatewaytest"
	paymentrepo "github.com/smallbiznis/fanvault/internal/payment/repository"
	paymentservice "github.com/smallbiznis/fanvault/internal/payment/service"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
	planrepo "github.com/smallbiznis/fanvault/internal/plan/repository"
	planservice "github.com/smallbiznis/fanvault/internal/plan/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	gateway  *gatewaytest.Stub
	plans    plandomain.Service
	payments paymentdomain.Service
	svc      membershipdomain.Service
}

func newTestEnv(t *testing.T, gateway *gatewaytest.Stub) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plandomain.Plan{},
		&membershipdomain.Membership{},
		&paymentdomain.Attempt{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	plans := planservice.NewService(planservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  planrepo.Provide(),
	})
	payments := paymentservice.NewService(paymentservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Cfg:     config.Config{},
		Gateway: gateway,
		Repo:    paymentrepo.Provide(),
	})
	svc := NewService(ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Repo:       repository.Provide(),
		Plansvc:    plans,
		Paymentsvc: payments,
	})

	return &testEnv{
		db:       db,
		node:     node,
		clk:      clk,
		gateway:  gateway,
		plans:    plans,
		payments: payments,
		svc:      svc,
	}
}

func (e *testEnv) createPlan(t *testing.T, priceCents int64) plandomain.Plan {
	t.Helper()
	plan, err := e.plans.Create(context.Background(), plandomain.CreatePlanRequest{
		CreatorID:  e.node.Generate().String(),
		Name:       "Gold Tier",
		PriceCents: priceCents,
	})
	require.NoError(t, err)
	return plan
}

func (e *testEnv) subscribe(t *testing.T, plan plandomain.Plan) membershipdomain.Membership {
	t.Helper()
	membership, err := e.svc.Subscribe(context.Background(), membershipdomain.SubscribeRequest{
		AccountID:   e.node.Generate().String(),
		PlanID:      plan.ID.String(),
		SourceToken: "tok_4242424242",
	})
	require.NoError(t, err)
	return membership
}

func (e *testEnv) setPending(t *testing.T, id snowflake.ID, pending bool) {
	t.Helper()
	err := e.db.Model(&membershipdomain.Membership{}).
		Where("id = ?", id).
		Update("payment_pending", pending).Error
	require.NoError(t, err)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("creates active membership after successful charge", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 1999)

		membership := env.subscribe(t, plan)

		assert.Equal(t, membershipdomain.StatusActive, membership.Status)
		assert.Equal(t, plan.ID, membership.PlanID)
		assert.Equal(t, int64(1999), membership.AmountCents)
		assert.Equal(t, "USD", membership.Currency)
		assert.Equal(t, env.clk.Now().Add(membershipdomain.BillingPeriod), membership.NextBillingAt)
		assert.False(t, membership.PaymentPending)

		attempts, err := env.payments.ListByAccount(ctx, membership.AccountID.String())
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, paymentdomain.AttemptStatusCompleted, attempts[0].Status)
		assert.Equal(t, "****4242", attempts[0].SourceRef)
		assert.Equal(t, paymentdomain.TargetTypeMembership, attempts[0].TargetType)
	})

	t.Run("decline leaves no membership behind", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewDeclined("card_declined"))
		plan := env.createPlan(t, 1999)

		accountID := env.node.Generate()
		_, err := env.svc.Subscribe(ctx, membershipdomain.SubscribeRequest{
			AccountID:   accountID.String(),
			PlanID:      plan.ID.String(),
			SourceToken: "tok_4000000000",
		})
		require.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)

		memberships, err := env.svc.ListByAccount(ctx, accountID.String())
		require.NoError(t, err)
		assert.Empty(t, memberships)

		// The declined attempt is still on the audit trail.
		attempts, err := env.payments.ListByAccount(ctx, accountID.String())
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, paymentdomain.AttemptStatusDeclined, attempts[0].Status)
	})

	t.Run("inactive plan is rejected before charging", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 1999)
		_, err := env.plans.SetActive(ctx, plan.ID.String(), false)
		require.NoError(t, err)

		_, err = env.svc.Subscribe(ctx, membershipdomain.SubscribeRequest{
			AccountID:   env.node.Generate().String(),
			PlanID:      plan.ID.String(),
			SourceToken: "tok_4242424242",
		})
		assert.ErrorIs(t, err, plandomain.ErrPlanInactive)
		assert.Equal(t, 0, env.gateway.Calls())
	})

	t.Run("second subscription to the same plan is rejected", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 1999)
		membership := env.subscribe(t, plan)

		_, err := env.svc.Subscribe(ctx, membershipdomain.SubscribeRequest{
			AccountID:   membership.AccountID.String(),
			PlanID:      plan.ID.String(),
			SourceToken: "tok_4242424242",
		})
		assert.ErrorIs(t, err, membershipdomain.ErrAlreadySubscribed)
		assert.Equal(t, 1, env.gateway.Calls())
	})

	t.Run("missing source token", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 1999)

		_, err := env.svc.Subscribe(ctx, membershipdomain.SubscribeRequest{
			AccountID: env.node.Generate().String(),
			PlanID:    plan.ID.String(),
		})
		assert.ErrorIs(t, err, membershipdomain.ErrInvalidSourceToken)
	})
}

func TestPauseResumeCancel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, gatewaytest.NewCompleted())
	plan := env.createPlan(t, 999)
	membership := env.subscribe(t, plan)
	id := membership.ID.String()

	t.Run("pause active membership", func(t *testing.T) {
		paused, err := env.svc.Pause(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, membershipdomain.StatusPaused, paused.Status)
		require.NotNil(t, paused.PausedAt)
		// Pausing keeps the billing anchor; resuming must not shorten the
		// already paid period.
		assert.WithinDuration(t, membership.NextBillingAt, paused.NextBillingAt, time.Second)
	})

	t.Run("pause paused membership is rejected", func(t *testing.T) {
		_, err := env.svc.Pause(ctx, id)
		assert.ErrorIs(t, err, membershipdomain.ErrInvalidTransition)
	})

	t.Run("resume paused membership", func(t *testing.T) {
		resumed, err := env.svc.Resume(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, membershipdomain.StatusActive, resumed.Status)
		assert.Nil(t, resumed.PausedAt)
	})

	t.Run("resume active membership is rejected", func(t *testing.T) {
		_, err := env.svc.Resume(ctx, id)
		assert.ErrorIs(t, err, membershipdomain.ErrInvalidTransition)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		canceled, err := env.svc.Cancel(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, membershipdomain.StatusCanceled, canceled.Status)
		require.NotNil(t, canceled.CanceledAt)
		firstCanceledAt := *canceled.CanceledAt

		again, err := env.svc.Cancel(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, membershipdomain.StatusCanceled, again.Status)
		require.NotNil(t, again.CanceledAt)
		assert.WithinDuration(t, firstCanceledAt, *again.CanceledAt, time.Second)
	})

	t.Run("resume canceled membership is rejected", func(t *testing.T) {
		_, err := env.svc.Resume(ctx, id)
		assert.ErrorIs(t, err, membershipdomain.ErrInvalidTransition)
	})

	t.Run("mutation while a charge is pending conflicts", func(t *testing.T) {
		other := env.subscribe(t, plan)
		env.setPending(t, other.ID, true)

		_, err := env.svc.Pause(ctx, other.ID.String())
		assert.ErrorIs(t, err, membershipdomain.ErrChargeInFlight)
	})
}

func TestRenew(t *testing.T) {
	ctx := context.Background()

	t.Run("successful renewal advances the billing anchor", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 999)
		membership := env.subscribe(t, plan)
		firstAnchor := membership.NextBillingAt

		env.clk.Advance(membershipdomain.BillingPeriod)
		renewed, err := env.svc.Renew(ctx, membershipdomain.RenewRequest{
			MembershipID: membership.ID.String(),
			SourceToken:  "tok_4242424242",
		})
		require.NoError(t, err)
		assert.Equal(t, membershipdomain.StatusActive, renewed.Status)
		assert.WithinDuration(t, firstAnchor.Add(membershipdomain.BillingPeriod), renewed.NextBillingAt, time.Second)
		assert.Zero(t, renewed.GraceAttempts)
		assert.False(t, renewed.PaymentPending)
	})

	t.Run("empty token falls back to the vaulted billing reference", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 999)
		membership := env.subscribe(t, plan)

		env.clk.Advance(membershipdomain.BillingPeriod)
		renewed, err := env.svc.Renew(ctx, membershipdomain.RenewRequest{
			MembershipID: membership.ID.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, membershipdomain.StatusActive, renewed.Status)
		assert.Equal(t, 2, env.gateway.Calls())
	})

	t.Run("decline grants one grace attempt then expires", func(t *testing.T) {
		gateway := gatewaytest.NewCompleted().Script(
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeCompleted},
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeDeclined, DeclineReason: "card_declined"},
		)
		env := newTestEnv(t, gateway)
		plan := env.createPlan(t, 999)
		membership := env.subscribe(t, plan)
		id := membership.ID.String()

		env.clk.Advance(membershipdomain.BillingPeriod)
		pastDue, err := env.svc.Renew(ctx, membershipdomain.RenewRequest{MembershipID: id})
		require.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)
		assert.Equal(t, membershipdomain.StatusPastDue, pastDue.Status)
		assert.Equal(t, 1, pastDue.GraceAttempts)
		assert.False(t, pastDue.PaymentPending)

		expired, err := env.svc.Renew(ctx, membershipdomain.RenewRequest{MembershipID: id})
		require.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)
		assert.Equal(t, membershipdomain.StatusExpired, expired.Status)
		require.NotNil(t, expired.ExpiredAt)

		// Expired memberships are out of the renewal population for good.
		_, err = env.svc.Renew(ctx, membershipdomain.RenewRequest{MembershipID: id})
		assert.ErrorIs(t, err, membershipdomain.ErrInvalidTransition)
	})

	t.Run("renewal while a charge is pending conflicts", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 999)
		membership := env.subscribe(t, plan)
		env.setPending(t, membership.ID, true)

		_, err := env.svc.Renew(ctx, membershipdomain.RenewRequest{MembershipID: membership.ID.String()})
		assert.ErrorIs(t, err, membershipdomain.ErrChargeInFlight)
		assert.Equal(t, 1, env.gateway.Calls())
	})

	t.Run("unknown membership", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		_, err := env.svc.Renew(ctx, membershipdomain.RenewRequest{
			MembershipID: env.node.Generate().String(),
		})
		assert.ErrorIs(t, err, membershipdomain.ErrMembershipNotFound)
	})
}

func TestUpgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("charges the full new plan price and restarts the cycle", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		gold := env.createPlan(t, 999)
		platinum := env.createPlan(t, 2499)
		membership := env.subscribe(t, gold)

		env.clk.Advance(10 * 24 * time.Hour)
		upgraded, err := env.svc.Upgrade(ctx, membershipdomain.UpgradeRequest{
			MembershipID: membership.ID.String(),
			NewPlanID:    platinum.ID.String(),
			SourceToken:  "tok_4242424242",
		})
		require.NoError(t, err)
		assert.Equal(t, platinum.ID, upgraded.PlanID)
		assert.Equal(t, int64(2499), upgraded.AmountCents)
		assert.Equal(t, env.clk.Now().Add(membershipdomain.BillingPeriod), upgraded.NextBillingAt)
		assert.False(t, upgraded.PaymentPending)

		attempts, err := env.payments.ListByAccount(ctx, membership.AccountID.String())
		require.NoError(t, err)
		require.Len(t, attempts, 2)
	})

	t.Run("same plan is rejected and releases the claim", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		gold := env.createPlan(t, 999)
		membership := env.subscribe(t, gold)

		_, err := env.svc.Upgrade(ctx, membershipdomain.UpgradeRequest{
			MembershipID: membership.ID.String(),
			NewPlanID:    gold.ID.String(),
			SourceToken:  "tok_4242424242",
		})
		assert.ErrorIs(t, err, membershipdomain.ErrSamePlan)

		// The pending claim must not leak; a follow-up mutation succeeds.
		_, err = env.svc.Pause(ctx, membership.ID.String())
		require.NoError(t, err)
	})

	t.Run("only active memberships can upgrade", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		gold := env.createPlan(t, 999)
		platinum := env.createPlan(t, 2499)
		membership := env.subscribe(t, gold)
		_, err := env.svc.Pause(ctx, membership.ID.String())
		require.NoError(t, err)

		_, err = env.svc.Upgrade(ctx, membershipdomain.UpgradeRequest{
			MembershipID: membership.ID.String(),
			NewPlanID:    platinum.ID.String(),
			SourceToken:  "tok_4242424242",
		})
		assert.ErrorIs(t, err, membershipdomain.ErrInvalidTransition)
	})

	t.Run("declined upgrade keeps the current plan", func(t *testing.T) {
		gateway := gatewaytest.NewCompleted().Script(
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeCompleted},
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeDeclined, DeclineReason: "insufficient_funds"},
		)
		env := newTestEnv(t, gateway)
		gold := env.createPlan(t, 999)
		platinum := env.createPlan(t, 2499)
		membership := env.subscribe(t, gold)

		_, err := env.svc.Upgrade(ctx, membershipdomain.UpgradeRequest{
			MembershipID: membership.ID.String(),
			NewPlanID:    platinum.ID.String(),
			SourceToken:  "tok_4000000000",
		})
		require.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)

		current, err := env.svc.Get(ctx, membership.ID.String())
		require.NoError(t, err)
		assert.Equal(t, gold.ID, current.PlanID)
		assert.Equal(t, int64(999), current.AmountCents)
		assert.False(t, current.PaymentPending)
	})
}

func TestReactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("expired membership returns to active", func(t *testing.T) {
		gateway := gatewaytest.NewCompleted().Script(
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeCompleted},
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeDeclined, DeclineReason: "card_declined"},
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeDeclined, DeclineReason: "card_declined"},
			paymentdomain.ChargeResult{Status: paymentdomain.ChargeCompleted},
		)
		env := newTestEnv(t, gateway)
		plan := env.createPlan(t, 999)
		membership := env.subscribe(t, plan)
		id := membership.ID.String()

		env.clk.Advance(membershipdomain.BillingPeriod)
		_, _ = env.svc.Renew(ctx, membershipdomain.RenewRequest{MembershipID: id})
		_, _ = env.svc.Renew(ctx, membershipdomain.RenewRequest{MembershipID: id})

		expired, err := env.svc.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, membershipdomain.StatusExpired, expired.Status)

		reactivated, err := env.svc.Reactivate(ctx, membershipdomain.ReactivateRequest{
			MembershipID: id,
			SourceToken:  "tok_4242424242",
		})
		require.NoError(t, err)
		assert.Equal(t, membershipdomain.StatusActive, reactivated.Status)
		assert.Nil(t, reactivated.ExpiredAt)
		assert.Zero(t, reactivated.GraceAttempts)
		assert.Equal(t, env.clk.Now().Add(membershipdomain.BillingPeriod), reactivated.NextBillingAt)
	})

	t.Run("canceled membership stays canceled", func(t *testing.T) {
		env := newTestEnv(t, gatewaytest.NewCompleted())
		plan := env.createPlan(t, 999)
		membership := env.subscribe(t, plan)
		_, err := env.svc.Cancel(ctx, membership.ID.String())
		require.NoError(t, err)

		_, err = env.svc.Reactivate(ctx, membershipdomain.ReactivateRequest{
			MembershipID: membership.ID.String(),
			SourceToken:  "tok_4242424242",
		})
		assert.ErrorIs(t, err, membershipdomain.ErrInvalidTransition)
	})
}

func TestDueForRenewal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, gatewaytest.NewCompleted())
	plan := env.createPlan(t, 999)

	active := env.subscribe(t, plan)
	paused := env.subscribe(t, plan)
	_, err := env.svc.Pause(ctx, paused.ID.String())
	require.NoError(t, err)

	due, err := env.svc.DueForRenewal(ctx, env.clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	env.clk.Advance(membershipdomain.BillingPeriod + time.Minute)
	due, err = env.svc.DueForRenewal(ctx, env.clk.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, active.ID, due[0].ID)
}
