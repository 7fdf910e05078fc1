package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fanvault/internal/clock"
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
	obsmetrics "github.com/smallbiznis/fanvault/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       membershipdomain.Repository
	plansvc    plandomain.Service
	paymentsvc paymentdomain.Service
	obsMetrics *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       membershipdomain.Repository
	Plansvc    plandomain.Service
	Paymentsvc paymentdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) membershipdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("membership.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		plansvc:    p.Plansvc,
		paymentsvc: p.Paymentsvc,
		obsMetrics: p.ObsMetrics,
	}
}

// Subscribe charges the plan price and creates the membership only after the
// gateway completes. A decline leaves no membership behind; the payment
// attempt row is the only trace.
func (s *Service) Subscribe(ctx context.Context, req membershipdomain.SubscribeRequest) (membershipdomain.Membership, error) {
	accountID, err := s.parseID(req.AccountID, membershipdomain.ErrInvalidAccount)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return membershipdomain.Membership{}, membershipdomain.ErrInvalidSourceToken
	}

	plan, err := s.plansvc.Get(ctx, req.PlanID)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if !plan.Active {
		return membershipdomain.Membership{}, plandomain.ErrPlanInactive
	}

	existing, err := s.repo.FindOpenByAccountAndPlan(ctx, s.db, accountID, plan.ID)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if existing != nil {
		return membershipdomain.Membership{}, membershipdomain.ErrAlreadySubscribed
	}

	membershipID := s.genID.Generate()
	attempt, err := s.paymentsvc.Charge(ctx, paymentdomain.ChargeParams{
		AccountID:   accountID,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		SourceToken: req.SourceToken,
		TargetType:  paymentdomain.TargetTypeMembership,
		TargetID:    membershipID,
	})
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if attempt.Status != paymentdomain.AttemptStatusCompleted {
		return membershipdomain.Membership{}, declineError(attempt)
	}

	now := s.clock.Now()
	membership := membershipdomain.Membership{
		ID:            membershipID,
		AccountID:     accountID,
		PlanID:        plan.ID,
		Status:        membershipdomain.StatusActive,
		AmountCents:   plan.PriceCents,
		Currency:      plan.Currency,
		BillingToken:  strings.TrimSpace(req.SourceToken),
		SubscribedAt:  now,
		NextBillingAt: now.Add(membershipdomain.BillingPeriod),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &membership); err != nil {
		return membershipdomain.Membership{}, err
	}

	s.log.Info("membership created",
		zap.String("membership_id", membership.ID.String()),
		zap.String("account_id", membership.AccountID.String()),
		zap.String("plan_id", membership.PlanID.String()),
		zap.Int64("amount_cents", membership.AmountCents),
	)

	return membership, nil
}

// Renew charges the snapshotted amount for the next billing cycle. The
// pending flag claimed up front is what guarantees at most one renewal charge
// in flight per membership; the row lock is never held across the gateway
// call. Outcomes: success re-arms the cycle, a decline from ACTIVE grants one
// grace attempt (PAST_DUE), a decline from PAST_DUE expires the membership.
func (s *Service) Renew(ctx context.Context, req membershipdomain.RenewRequest) (membershipdomain.Membership, error) {
	id, err := s.parseID(req.MembershipID, membershipdomain.ErrInvalidMembership)
	if err != nil {
		return membershipdomain.Membership{}, err
	}

	now := s.clock.Now()
	claimed, err := s.repo.ClaimPending(ctx, s.db, id, []membershipdomain.Status{
		membershipdomain.StatusActive,
		membershipdomain.StatusPastDue,
	}, now)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if !claimed {
		return membershipdomain.Membership{}, s.claimFailure(ctx, id, membershipdomain.StatusActive, membershipdomain.StatusPastDue)
	}

	membership, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if membership == nil {
		return membershipdomain.Membership{}, membershipdomain.ErrMembershipNotFound
	}

	// Driver-initiated renewals pass no token and fall back to the vaulted
	// billing reference captured at subscribe time.
	token := strings.TrimSpace(req.SourceToken)
	if token == "" {
		token = membership.BillingToken
	}
	if token == "" {
		_ = s.repo.ReleasePending(ctx, s.db, id, s.clock.Now())
		return membershipdomain.Membership{}, membershipdomain.ErrInvalidSourceToken
	}

	attempt, err := s.paymentsvc.Charge(ctx, paymentdomain.ChargeParams{
		AccountID:   membership.AccountID,
		AmountCents: membership.AmountCents,
		Currency:    membership.Currency,
		SourceToken: token,
		TargetType:  paymentdomain.TargetTypeMembership,
		TargetID:    membership.ID,
	})
	if err != nil {
		_ = s.repo.ReleasePending(ctx, s.db, id, s.clock.Now())
		return membershipdomain.Membership{}, err
	}

	updated, err := s.applyRenewalOutcome(ctx, id, attempt)
	if err != nil {
		return membershipdomain.Membership{}, err
	}

	if attempt.Status == paymentdomain.AttemptStatusCompleted {
		s.recordRenewal(ctx, "completed")
		return updated, nil
	}

	s.recordRenewal(ctx, string(updated.Status))
	return updated, declineError(attempt)
}

func (s *Service) applyRenewalOutcome(ctx context.Context, id snowflake.ID, attempt paymentdomain.Attempt) (membershipdomain.Membership, error) {
	var updated membershipdomain.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if membership == nil {
			return membershipdomain.ErrMembershipNotFound
		}

		now := s.clock.Now()
		if attempt.Status == paymentdomain.AttemptStatusCompleted {
			membership.Status = membershipdomain.StatusActive
			membership.NextBillingAt = membership.NextBillingAt.Add(membershipdomain.BillingPeriod)
			membership.GraceAttempts = 0
		} else if membership.Status == membershipdomain.StatusPastDue {
			membership.Status = membershipdomain.StatusExpired
			membership.ExpiredAt = &now
		} else {
			membership.Status = membershipdomain.StatusPastDue
			membership.GraceAttempts++
		}
		membership.PaymentPending = false
		membership.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, membership); err != nil {
			return err
		}
		updated = *membership
		return nil
	})
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	return updated, nil
}

// claimFailure turns a failed pending claim into the precise caller error.
func (s *Service) claimFailure(ctx context.Context, id snowflake.ID, eligible ...membershipdomain.Status) error {
	membership, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if membership == nil {
		return membershipdomain.ErrMembershipNotFound
	}
	if membership.PaymentPending {
		return membershipdomain.ErrChargeInFlight
	}
	for _, status := range eligible {
		if membership.Status == status {
			// Eligible and not pending: the claim lost a race that has since
			// settled. Still a conflict from the caller's point of view.
			return membershipdomain.ErrChargeInFlight
		}
	}
	return membershipdomain.ErrInvalidTransition
}

// Pause freezes billing. Only an active membership can pause; NextBillingAt
// keeps its value so resuming does not shorten the paid period.
func (s *Service) Pause(ctx context.Context, membershipID string) (membershipdomain.Membership, error) {
	return s.transition(ctx, membershipID, func(m *membershipdomain.Membership, now time.Time) error {
		if m.Status != membershipdomain.StatusActive {
			return membershipdomain.ErrInvalidTransition
		}
		m.Status = membershipdomain.StatusPaused
		m.PausedAt = &now
		return nil
	})
}

func (s *Service) Resume(ctx context.Context, membershipID string) (membershipdomain.Membership, error) {
	return s.transition(ctx, membershipID, func(m *membershipdomain.Membership, now time.Time) error {
		if m.Status != membershipdomain.StatusPaused {
			return membershipdomain.ErrInvalidTransition
		}
		m.Status = membershipdomain.StatusActive
		m.PausedAt = nil
		return nil
	})
}

// Cancel stops all future charges. Idempotent: cancelling an already
// cancelled membership is a no-op.
func (s *Service) Cancel(ctx context.Context, membershipID string) (membershipdomain.Membership, error) {
	return s.transition(ctx, membershipID, func(m *membershipdomain.Membership, now time.Time) error {
		switch m.Status {
		case membershipdomain.StatusCanceled:
			return nil
		case membershipdomain.StatusActive, membershipdomain.StatusPaused, membershipdomain.StatusPastDue:
			m.Status = membershipdomain.StatusCanceled
			m.CanceledAt = &now
			return nil
		default:
			return membershipdomain.ErrInvalidTransition
		}
	})
}

func (s *Service) transition(ctx context.Context, membershipID string, apply func(*membershipdomain.Membership, time.Time) error) (membershipdomain.Membership, error) {
	id, err := s.parseID(membershipID, membershipdomain.ErrInvalidMembership)
	if err != nil {
		return membershipdomain.Membership{}, err
	}

	var updated membershipdomain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if membership == nil {
			return membershipdomain.ErrMembershipNotFound
		}
		if membership.PaymentPending {
			return membershipdomain.ErrChargeInFlight
		}

		now := s.clock.Now()
		before := membership.Status
		if err := apply(membership, now); err != nil {
			return err
		}
		if membership.Status != before {
			membership.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, membership); err != nil {
				return err
			}
		}
		updated = *membership
		return nil
	})
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	return updated, nil
}

// Upgrade moves an active membership to a different active plan. The full new
// plan price is charged immediately and the billing anchor restarts; there is
// no pro-ration of the remaining period.
func (s *Service) Upgrade(ctx context.Context, req membershipdomain.UpgradeRequest) (membershipdomain.Membership, error) {
	id, err := s.parseID(req.MembershipID, membershipdomain.ErrInvalidMembership)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return membershipdomain.Membership{}, membershipdomain.ErrInvalidSourceToken
	}

	plan, err := s.plansvc.Get(ctx, req.NewPlanID)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if !plan.Active {
		return membershipdomain.Membership{}, plandomain.ErrPlanInactive
	}

	now := s.clock.Now()
	claimed, err := s.repo.ClaimPending(ctx, s.db, id, []membershipdomain.Status{
		membershipdomain.StatusActive,
	}, now)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if !claimed {
		return membershipdomain.Membership{}, s.claimFailure(ctx, id, membershipdomain.StatusActive)
	}

	membership, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if membership == nil {
		return membershipdomain.Membership{}, membershipdomain.ErrMembershipNotFound
	}
	if membership.PlanID == plan.ID {
		_ = s.repo.ReleasePending(ctx, s.db, id, s.clock.Now())
		return membershipdomain.Membership{}, membershipdomain.ErrSamePlan
	}

	attempt, err := s.paymentsvc.Charge(ctx, paymentdomain.ChargeParams{
		AccountID:   membership.AccountID,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		SourceToken: req.SourceToken,
		TargetType:  paymentdomain.TargetTypeMembership,
		TargetID:    membership.ID,
	})
	if err != nil {
		_ = s.repo.ReleasePending(ctx, s.db, id, s.clock.Now())
		return membershipdomain.Membership{}, err
	}
	if attempt.Status != paymentdomain.AttemptStatusCompleted {
		_ = s.repo.ReleasePending(ctx, s.db, id, s.clock.Now())
		return membershipdomain.Membership{}, declineError(attempt)
	}

	return s.rebind(ctx, id, plan)
}

func (s *Service) rebind(ctx context.Context, id snowflake.ID, plan plandomain.Plan) (membershipdomain.Membership, error) {
	var updated membershipdomain.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if membership == nil {
			return membershipdomain.ErrMembershipNotFound
		}

		now := s.clock.Now()
		membership.PlanID = plan.ID
		membership.AmountCents = plan.PriceCents
		membership.Currency = plan.Currency
		membership.NextBillingAt = now.Add(membershipdomain.BillingPeriod)
		membership.GraceAttempts = 0
		membership.PaymentPending = false
		membership.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, membership); err != nil {
			return err
		}
		updated = *membership
		return nil
	})
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	return updated, nil
}

// Reactivate re-charges the snapshotted amount like a fresh subscribe and
// re-arms billing from now. Valid from ACTIVE, PAUSED or EXPIRED; a cancelled
// membership stays cancelled.
func (s *Service) Reactivate(ctx context.Context, req membershipdomain.ReactivateRequest) (membershipdomain.Membership, error) {
	id, err := s.parseID(req.MembershipID, membershipdomain.ErrInvalidMembership)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return membershipdomain.Membership{}, membershipdomain.ErrInvalidSourceToken
	}

	eligible := []membershipdomain.Status{
		membershipdomain.StatusActive,
		membershipdomain.StatusPaused,
		membershipdomain.StatusExpired,
	}

	now := s.clock.Now()
	claimed, err := s.repo.ClaimPending(ctx, s.db, id, eligible, now)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if !claimed {
		return membershipdomain.Membership{}, s.claimFailure(ctx, id, eligible...)
	}

	membership, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if membership == nil {
		return membershipdomain.Membership{}, membershipdomain.ErrMembershipNotFound
	}

	attempt, err := s.paymentsvc.Charge(ctx, paymentdomain.ChargeParams{
		AccountID:   membership.AccountID,
		AmountCents: membership.AmountCents,
		Currency:    membership.Currency,
		SourceToken: req.SourceToken,
		TargetType:  paymentdomain.TargetTypeMembership,
		TargetID:    membership.ID,
	})
	if err != nil {
		_ = s.repo.ReleasePending(ctx, s.db, id, s.clock.Now())
		return membershipdomain.Membership{}, err
	}
	if attempt.Status != paymentdomain.AttemptStatusCompleted {
		_ = s.repo.ReleasePending(ctx, s.db, id, s.clock.Now())
		return membershipdomain.Membership{}, declineError(attempt)
	}

	var updated membershipdomain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if membership == nil {
			return membershipdomain.ErrMembershipNotFound
		}

		now := s.clock.Now()
		membership.Status = membershipdomain.StatusActive
		membership.NextBillingAt = now.Add(membershipdomain.BillingPeriod)
		membership.GraceAttempts = 0
		membership.PaymentPending = false
		membership.PausedAt = nil
		membership.ExpiredAt = nil
		membership.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, membership); err != nil {
			return err
		}
		updated = *membership
		return nil
	})
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, membershipID string) (membershipdomain.Membership, error) {
	id, err := s.parseID(membershipID, membershipdomain.ErrInvalidMembership)
	if err != nil {
		return membershipdomain.Membership{}, err
	}

	membership, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return membershipdomain.Membership{}, err
	}
	if membership == nil {
		return membershipdomain.Membership{}, membershipdomain.ErrMembershipNotFound
	}
	return *membership, nil
}

func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]membershipdomain.Membership, error) {
	id, err := s.parseID(accountID, membershipdomain.ErrInvalidAccount)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByAccount(ctx, s.db, id)
}

func (s *Service) DueForRenewal(ctx context.Context, now time.Time, limit int) ([]membershipdomain.Membership, error) {
	return s.repo.FindDue(ctx, s.db, now, limit)
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func (s *Service) recordRenewal(ctx context.Context, result string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordRenewal(ctx, result)
	}
}

func declineError(attempt paymentdomain.Attempt) error {
	reason := attempt.DeclineReason
	if reason == "" {
		reason = "declined"
	}
	return fmt.Errorf("%w: %s", paymentdomain.ErrPaymentDeclined, reason)
}
