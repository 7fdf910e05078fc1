// Package domain contains the membership ledger models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents lifecycle states for a membership.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusPastDue  Status = "PAST_DUE"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether no further billing can occur from this status.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

// BillingPeriod is the fixed gap between charges for an active membership.
const BillingPeriod = 30 * 24 * time.Hour

// Membership is an account's paid relationship to a plan. AmountCents
// snapshots the plan price at subscribe time so later plan price changes
// never touch existing members. PaymentPending marks a charge in flight;
// conflicting mutations of a pending membership are rejected rather than
// queued, which is what keeps one billing cycle to at most one charge.
type Membership struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID      snowflake.ID `json:"account_id" gorm:"not null;index"`
	PlanID         snowflake.ID `json:"plan_id" gorm:"not null;index"`
	Status         Status       `json:"status" gorm:"type:text;not null;index"`
	AmountCents    int64        `json:"amount_cents" gorm:"not null"`
	Currency       string       `json:"currency" gorm:"type:text;not null"`
	// BillingToken is the opaque vaulted source reference used for
	// driver-initiated renewals. Never raw card data.
	BillingToken   string       `json:"-" gorm:"type:text;not null"`
	SubscribedAt   time.Time    `json:"subscribed_at" gorm:"not null"`
	NextBillingAt  time.Time    `json:"next_billing_at" gorm:"not null;index"`
	GraceAttempts  int          `json:"grace_attempts" gorm:"not null;default:0"`
	PaymentPending bool         `json:"payment_pending" gorm:"not null;default:false"`
	PausedAt       *time.Time   `json:"paused_at,omitempty"`
	CanceledAt     *time.Time   `json:"canceled_at,omitempty"`
	ExpiredAt      *time.Time   `json:"expired_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }
