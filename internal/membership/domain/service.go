package domain

import (
	"context"
	"errors"
	"time"
)

type SubscribeRequest struct {
	AccountID   string `json:"account_id"`
	PlanID      string `json:"plan_id"`
	SourceToken string `json:"source_token"`
}

type RenewRequest struct {
	MembershipID string
	SourceToken  string
}

type UpgradeRequest struct {
	MembershipID string
	NewPlanID    string `json:"new_plan_id"`
	SourceToken  string `json:"source_token"`
}

type ReactivateRequest struct {
	MembershipID string
	SourceToken  string `json:"source_token"`
}

type Service interface {
	Subscribe(context.Context, SubscribeRequest) (Membership, error)
	Renew(context.Context, RenewRequest) (Membership, error)
	Pause(ctx context.Context, membershipID string) (Membership, error)
	Resume(ctx context.Context, membershipID string) (Membership, error)
	Cancel(ctx context.Context, membershipID string) (Membership, error)
	Upgrade(context.Context, UpgradeRequest) (Membership, error)
	Reactivate(context.Context, ReactivateRequest) (Membership, error)
	Get(ctx context.Context, membershipID string) (Membership, error)
	ListByAccount(ctx context.Context, accountID string) ([]Membership, error)
	DueForRenewal(ctx context.Context, now time.Time, limit int) ([]Membership, error)
}

var (
	ErrInvalidAccount     = errors.New("invalid_account")
	ErrInvalidPlan        = errors.New("invalid_plan")
	ErrInvalidMembership  = errors.New("invalid_membership")
	ErrInvalidSourceToken = errors.New("invalid_source_token")
	ErrMembershipNotFound = errors.New("membership_not_found")
	ErrAlreadySubscribed  = errors.New("already_subscribed")
	ErrSamePlan           = errors.New("same_plan")
	ErrInvalidTransition  = errors.New("invalid_transition")

	// ErrChargeInFlight rejects a mutation while another charge for the same
	// membership is pending. Safe to retry after backoff.
	ErrChargeInFlight = errors.New("charge_in_flight")
)
