package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ChargeParams struct {
	AccountID   snowflake.ID
	AmountCents int64
	Currency    string
	SourceToken string
	TargetType  TargetType
	TargetID    snowflake.ID
}

// Service charges through the gateway and persists every outcome to the audit
// trail. A declined charge is returned as an Attempt with
// AttemptStatusDeclined and a nil error; callers decide how a decline affects
// their own state.
type Service interface {
	Charge(ctx context.Context, params ChargeParams) (Attempt, error)
	ListByAccount(ctx context.Context, accountID string) ([]Attempt, error)
	// ListByTarget returns the charge history of one membership or message,
	// oldest first.
	ListByTarget(ctx context.Context, targetType TargetType, targetID string) ([]Attempt, error)
}
