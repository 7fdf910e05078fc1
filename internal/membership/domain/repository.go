package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, membership *Membership) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Membership, error)
	// FindByIDForUpdate takes a row lock inside the caller's transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Membership, error)
	FindByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Membership, error)
	FindOpenByAccountAndPlan(ctx context.Context, db *gorm.DB, accountID, planID snowflake.ID) (*Membership, error)
	// ClaimPending atomically flips PaymentPending from false to true when the
	// membership is in one of the given statuses. Returns false when the row
	// was already pending or not in an eligible status.
	ClaimPending(ctx context.Context, db *gorm.DB, id snowflake.ID, statuses []Status, now time.Time) (bool, error)
	// ReleasePending clears the pending flag without touching lifecycle state.
	ReleasePending(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	Update(ctx context.Context, db *gorm.DB, membership *Membership) error
	FindDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Membership, error)
}
