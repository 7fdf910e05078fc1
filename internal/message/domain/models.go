// Package domain contains the pay-per-view message models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Message is a direct message between two accounts. A message with a
// PPVPriceCents is born locked for everyone but its sender; unlocking is
// recorded per payer and never re-locks. Price and content are immutable.
type Message struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	SenderID      snowflake.ID `json:"sender_id" gorm:"not null;index:idx_messages_thread"`
	RecipientID   snowflake.ID `json:"recipient_id" gorm:"not null;index:idx_messages_thread"`
	Body          *string      `json:"body,omitempty" gorm:"type:text"`
	MediaRef      *string      `json:"media_ref,omitempty" gorm:"type:text"`
	PPVPriceCents *int64       `json:"ppv_price_cents,omitempty"`
	Currency      string       `json:"currency" gorm:"type:text;not null"`
	IsRead        bool         `json:"is_read" gorm:"not null;default:false"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Message) TableName() string { return "messages" }

// Priced reports whether the message carries a pay-per-view price.
func (m Message) Priced() bool { return m.PPVPriceCents != nil }

// UnlockStatus tracks an unlock through its charge window.
type UnlockStatus string

const (
	UnlockStatusPending   UnlockStatus = "PENDING"
	UnlockStatusCompleted UnlockStatus = "COMPLETED"
)

// Unlock is one payer's access to one priced message. The unique index over
// (message_id, payer_id) arbitrates racing unlock attempts: whoever inserts
// the PENDING row owns the charge, everyone else conflicts.
type Unlock struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	MessageID   snowflake.ID  `json:"message_id" gorm:"not null;uniqueIndex:ux_message_unlocks,priority:1"`
	PayerID     snowflake.ID  `json:"payer_id" gorm:"not null;uniqueIndex:ux_message_unlocks,priority:2"`
	AttemptID   *snowflake.ID `json:"attempt_id,omitempty"`
	Status      UnlockStatus  `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// TableName sets the database table name.
func (Unlock) TableName() string { return "message_unlocks" }

// View is a message as one viewer sees it: locked content is blanked, the
// price stays visible so the viewer knows what unlocking costs.
type View struct {
	Message
	IsLocked bool `json:"is_locked"`
}

// Resolve renders the message for viewer given whether a completed unlock
// exists. The sender always sees their own content.
func Resolve(m Message, viewerID snowflake.ID, unlocked bool) View {
	view := View{Message: m}
	if !m.Priced() || viewerID == m.SenderID || unlocked {
		return view
	}
	view.IsLocked = true
	view.Body = nil
	view.MediaRef = nil
	return view
}
