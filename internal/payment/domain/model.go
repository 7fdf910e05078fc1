// Package domain defines the payment gateway boundary and the charge audit
// trail shared by the membership and message services.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AttemptStatus is the recorded outcome of one logical charge.
type AttemptStatus string

const (
	AttemptStatusCompleted AttemptStatus = "COMPLETED"
	AttemptStatusDeclined  AttemptStatus = "DECLINED"
	AttemptStatusError     AttemptStatus = "ERROR"
)

// TargetType identifies what a charge paid for.
type TargetType string

const (
	TargetTypeMembership TargetType = "membership"
	TargetTypeMessage    TargetType = "message"
)

// Attempt is one row of the append-only charge audit trail. Rows are never
// updated or deleted. SourceRef carries only a masked token reference; raw
// card data never enters the system.
type Attempt struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	AccountID     snowflake.ID  `json:"account_id" gorm:"not null;index"`
	AmountCents   int64         `json:"amount_cents" gorm:"not null"`
	Currency      string        `json:"currency" gorm:"type:text;not null"`
	SourceRef     string        `json:"source_ref" gorm:"type:text;not null"`
	Status        AttemptStatus `json:"status" gorm:"type:text;not null"`
	DeclineReason string        `json:"decline_reason,omitempty" gorm:"type:text"`
	TransactionID string        `json:"transaction_id,omitempty" gorm:"type:text"`
	TargetType    TargetType    `json:"target_type" gorm:"type:text;not null;index:idx_payment_attempts_target"`
	TargetID      snowflake.ID  `json:"target_id" gorm:"not null;index:idx_payment_attempts_target"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Attempt) TableName() string { return "payment_attempts" }
