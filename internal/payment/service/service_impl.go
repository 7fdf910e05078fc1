package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fanvault/internal/clock"
	"github.com/smallbiznis/fanvault/internal/config"
	obsmetrics "github.com/smallbiznis/fanvault/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Gateway    paymentdomain.Gateway
	Repo       paymentdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	gateway    paymentdomain.Gateway
	repo       paymentdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Cfg,
		gateway:    p.Gateway,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Charge invokes the gateway exactly once and appends the outcome to the
// audit trail. Declines come back as a DECLINED attempt with a nil error.
func (s *Service) Charge(ctx context.Context, params paymentdomain.ChargeParams) (paymentdomain.Attempt, error) {
	if params.AmountCents <= 0 {
		return paymentdomain.Attempt{}, paymentdomain.ErrInvalidAmount
	}
	token := strings.TrimSpace(params.SourceToken)
	if token == "" {
		return paymentdomain.Attempt{}, paymentdomain.ErrInvalidSourceToken
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}

	chargeCtx := ctx
	if s.cfg.Gateway.Timeout > 0 {
		var cancel context.CancelFunc
		chargeCtx, cancel = context.WithTimeout(ctx, s.cfg.Gateway.Timeout)
		defer cancel()
	}

	attempt := paymentdomain.Attempt{
		ID:          s.genID.Generate(),
		AccountID:   params.AccountID,
		AmountCents: params.AmountCents,
		Currency:    currency,
		SourceRef:   maskToken(token),
		TargetType:  params.TargetType,
		TargetID:    params.TargetID,
		CreatedAt:   s.clock.Now(),
	}

	result, gatewayErr := s.gateway.Charge(chargeCtx, paymentdomain.ChargeRequest{
		AmountCents: params.AmountCents,
		Currency:    currency,
		SourceToken: token,
	})

	switch {
	case gatewayErr != nil:
		attempt.Status = paymentdomain.AttemptStatusError
		attempt.DeclineReason = gatewayErr.Error()
	case result.Completed():
		attempt.Status = paymentdomain.AttemptStatusCompleted
		attempt.TransactionID = result.TransactionID
	default:
		attempt.Status = paymentdomain.AttemptStatusDeclined
		attempt.DeclineReason = result.DeclineReason
	}

	if err := s.repo.Insert(ctx, s.db, &attempt); err != nil {
		return paymentdomain.Attempt{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCharge(ctx, string(attempt.TargetType), string(attempt.Status))
	}

	s.log.Info("charge resolved",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("account_id", attempt.AccountID.String()),
		zap.String("status", string(attempt.Status)),
		zap.Int64("amount_cents", attempt.AmountCents),
		zap.String("target_type", string(attempt.TargetType)),
	)

	if gatewayErr != nil {
		return attempt, gatewayErr
	}
	return attempt, nil
}

func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]paymentdomain.Attempt, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(accountID))
	if err != nil || id == 0 {
		return nil, paymentdomain.ErrInvalidAccount
	}
	return s.repo.FindByAccount(ctx, s.db, id)
}

func (s *Service) ListByTarget(ctx context.Context, targetType paymentdomain.TargetType, targetID string) ([]paymentdomain.Attempt, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(targetID))
	if err != nil || id == 0 {
		return nil, paymentdomain.ErrInvalidTarget
	}
	return s.repo.FindByTarget(ctx, s.db, targetType, id)
}

// maskToken keeps only the last four characters of an opaque source token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
