package domain

import (
	"context"
	"errors"
)

// ChargeStatus is a gateway outcome. Declines are ordinary results, not
// errors; the error return of Charge is reserved for malformed input and
// infrastructure faults.
type ChargeStatus string

const (
	ChargeCompleted ChargeStatus = "completed"
	ChargeDeclined  ChargeStatus = "declined"
)

// DeclineReasonTimeout is reported when the gateway could not resolve the
// charge before the deadline. The charge still resolves exactly once.
const DeclineReasonTimeout = "timeout"

type ChargeRequest struct {
	AmountCents int64
	Currency    string
	SourceToken string
}

type ChargeResult struct {
	Status        ChargeStatus
	TransactionID string
	DeclineReason string
}

func (r ChargeResult) Completed() bool { return r.Status == ChargeCompleted }

// Gateway is the sole external-service boundary. Implementations must return
// exactly one result per call and must not be invoked twice for the same
// logical charge; callers own that guarantee.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidAccount     = errors.New("invalid_account")
	ErrInvalidTarget      = errors.New("invalid_target")
	ErrInvalidSourceToken = errors.New("invalid_source_token")

	// ErrPaymentDeclined is the business outcome surfaced to callers of the
	// payment service when the gateway declines. Wrapped with the decline
	// reason; safe for the presentation layer to show, never auto-retried.
	ErrPaymentDeclined = errors.New("payment_declined")
)
