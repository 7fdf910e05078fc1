// Package scheduler drives membership renewals: it periodically scans for
// memberships whose billing date has passed and pushes each one through the
// ledger's Renew operation.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/fanvault/internal/clock"
	"github.com/smallbiznis/fanvault/internal/config"
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Cfg           config.Config
	MembershipSvc membershipdomain.Service
}

type Scheduler struct {
	log           *zap.Logger
	clock         clock.Clock
	interval      time.Duration
	batchSize     int
	membershipSvc membershipdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.MembershipSvc == nil {
		return nil, ErrInvalidConfig
	}

	interval := p.Cfg.Renewal.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	batchSize := p.Cfg.Renewal.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "renewal")),
		clock:         p.Clock,
		interval:      interval,
		batchSize:     batchSize,
		membershipSvc: p.MembershipSvc,
	}, nil
}

// RunOnce processes one batch of due memberships and reports how many
// renewals were attempted.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.membershipSvc.DueForRenewal(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	attempted := 0
	for _, membership := range due {
		if ctx.Err() != nil {
			return attempted, ctx.Err()
		}

		attempted++
		_, err := s.membershipSvc.Renew(ctx, membershipdomain.RenewRequest{
			MembershipID: membership.ID.String(),
		})
		switch {
		case err == nil:
			s.log.Info("membership renewed",
				zap.String("membership_id", membership.ID.String()),
			)
		case errors.Is(err, membershipdomain.ErrChargeInFlight):
			// Another caller owns the charge window; next sweep picks it up.
		case errors.Is(err, paymentdomain.ErrPaymentDeclined):
			s.log.Warn("renewal declined",
				zap.String("membership_id", membership.ID.String()),
				zap.Error(err),
			)
		default:
			s.log.Error("renewal failed",
				zap.String("membership_id", membership.ID.String()),
				zap.Error(err),
			)
		}
	}
	return attempted, nil
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("renewal sweep failed", zap.Error(err))
			}
		}
	}
}

func run(lc fx.Lifecycle, s *Scheduler, cfg config.Config) {
	if !cfg.Renewal.Enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.loop(ctx)
			}()
			s.log.Info("renewal driver started",
				zap.Duration("interval", s.interval),
				zap.Int("batch_size", s.batchSize),
			)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

// Module wires the renewal driver into the application lifecycle.
var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(run),
)
