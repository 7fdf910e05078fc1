// Package sim is the stand-in payment gateway used outside production. It
// approves a configurable fraction of charges after a simulated processing
// delay, mirroring what a real acquirer integration would return.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/fanvault/internal/clock"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
)

type Config struct {
	// SuccessRate is the approval probability in [0, 1].
	SuccessRate float64
	// Latency simulates processor round-trip time.
	Latency time.Duration
}

type Gateway struct {
	cfg   Config
	clock clock.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a simulated gateway. A nil rng seeds from the clock; tests pass
// a fixed-seed source to force outcomes.
func New(cfg Config, clk clock.Clock, rng *rand.Rand) *Gateway {
	if cfg.SuccessRate < 0 {
		cfg.SuccessRate = 0
	}
	if cfg.SuccessRate > 1 {
		cfg.SuccessRate = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(clk.Now().UnixNano()))
	}
	return &Gateway{cfg: cfg, clock: clk, rng: rng}
}

// Charge resolves to exactly one result. A context deadline hit during the
// simulated latency resolves as Declined{reason=timeout}, never an error.
func (g *Gateway) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.ChargeResult, error) {
	if req.AmountCents <= 0 {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrInvalidSourceToken
	}

	if g.cfg.Latency > 0 {
		timer := time.NewTimer(g.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return paymentdomain.ChargeResult{
				Status:        paymentdomain.ChargeDeclined,
				DeclineReason: paymentdomain.DeclineReasonTimeout,
			}, nil
		case <-timer.C:
		}
	}

	if g.roll() >= g.cfg.SuccessRate {
		return paymentdomain.ChargeResult{
			Status:        paymentdomain.ChargeDeclined,
			DeclineReason: "card_declined",
		}, nil
	}

	return paymentdomain.ChargeResult{
		Status:        paymentdomain.ChargeCompleted,
		TransactionID: g.transactionID(),
	}, nil
}

func (g *Gateway) roll() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *Gateway) transactionID() string {
	g.mu.Lock()
	suffix := g.rng.Uint32()
	g.mu.Unlock()
	return fmt.Sprintf("txn_%d_%08x", g.clock.Now().UnixMilli(), suffix)
}
