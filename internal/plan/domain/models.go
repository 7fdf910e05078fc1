// Package domain contains persistence models for the creator plan catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Plan is a creator-published subscription tier. Plans are never deleted;
// deactivation is a soft state change so historical memberships keep a valid
// reference.
type Plan struct {
	ID          snowflake.ID               `json:"id" gorm:"primaryKey"`
	CreatorID   snowflake.ID               `json:"creator_id" gorm:"not null;index"`
	Name        string                     `json:"name" gorm:"type:text;not null"`
	Description string                     `json:"description" gorm:"type:text"`
	PriceCents  int64                      `json:"price_cents" gorm:"not null"`
	Currency    string                     `json:"currency" gorm:"type:text;not null"`
	Features    datatypes.JSONSlice[string] `json:"features" gorm:"type:jsonb"`
	Active      bool                       `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time                  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time                  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }
