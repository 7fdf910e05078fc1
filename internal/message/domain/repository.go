package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertMessage(ctx context.Context, db *gorm.DB, message *Message) error
	FindMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Message, error)
	MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindThread(ctx context.Context, db *gorm.DB, accountA, accountB snowflake.ID) ([]Message, error)

	InsertUnlock(ctx context.Context, db *gorm.DB, unlock *Unlock) error
	FindUnlock(ctx context.Context, db *gorm.DB, messageID, payerID snowflake.ID) (*Unlock, error)
	CompleteUnlock(ctx context.Context, db *gorm.DB, id snowflake.ID, attemptID snowflake.ID, at time.Time) error
	DeleteUnlock(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindCompletedUnlocks(ctx context.Context, db *gorm.DB, payerID snowflake.ID, messageIDs []snowflake.ID) (map[snowflake.ID]bool, error)
}
