// Package gatewaytest provides a gateway stub with forced outcomes for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
)

// Stub returns a scripted outcome per call and counts invocations.
type Stub struct {
	mu      sync.Mutex
	outcome []paymentdomain.ChargeResult
	calls   int
}

// NewCompleted builds a stub that approves every charge.
func NewCompleted() *Stub {
	return &Stub{}
}

// NewDeclined builds a stub that declines every charge with reason.
func NewDeclined(reason string) *Stub {
	return &Stub{outcome: []paymentdomain.ChargeResult{{
		Status:        paymentdomain.ChargeDeclined,
		DeclineReason: reason,
	}}}
}

// Script sets the outcomes for successive calls; the last entry repeats.
func (s *Stub) Script(results ...paymentdomain.ChargeResult) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = results
	return s
}

func (s *Stub) Charge(_ context.Context, req paymentdomain.ChargeRequest) (paymentdomain.ChargeResult, error) {
	if req.AmountCents <= 0 {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrInvalidAmount
	}
	if req.SourceToken == "" {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrInvalidSourceToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if len(s.outcome) == 0 {
		return paymentdomain.ChargeResult{
			Status:        paymentdomain.ChargeCompleted,
			TransactionID: fmt.Sprintf("txn_test_%d", s.calls),
		}, nil
	}

	idx := s.calls - 1
	if idx >= len(s.outcome) {
		idx = len(s.outcome) - 1
	}
	result := s.outcome[idx]
	if result.Completed() && result.TransactionID == "" {
		result.TransactionID = fmt.Sprintf("txn_test_%d", s.calls)
	}
	return result, nil
}

// Calls reports how many times Charge was invoked.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
