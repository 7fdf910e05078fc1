package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() membershipdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, membership *membershipdomain.Membership) error {
	return db.WithContext(ctx).Create(membership).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*membershipdomain.Membership, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*membershipdomain.Membership, error) {
	return r.findByID(ctx, db, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, lock bool) (*membershipdomain.Membership, error) {
	stmt := db.WithContext(ctx)
	// sqlite serializes writers on its own and rejects FOR UPDATE.
	if lock && db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var membership membershipdomain.Membership
	err := stmt.First(&membership, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *repo) FindByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]membershipdomain.Membership, error) {
	var memberships []membershipdomain.Membership
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *repo) FindOpenByAccountAndPlan(ctx context.Context, db *gorm.DB, accountID, planID snowflake.ID) (*membershipdomain.Membership, error) {
	var membership membershipdomain.Membership
	err := db.WithContext(ctx).
		Where("account_id = ? AND plan_id = ? AND status IN ?", accountID, planID, []membershipdomain.Status{
			membershipdomain.StatusActive,
			membershipdomain.StatusPaused,
			membershipdomain.StatusPastDue,
		}).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *repo) ClaimPending(ctx context.Context, db *gorm.DB, id snowflake.ID, statuses []membershipdomain.Status, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Model(&membershipdomain.Membership{}).
		Where("id = ? AND payment_pending = ? AND status IN ?", id, false, statuses).
		Updates(map[string]any{
			"payment_pending": true,
			"updated_at":      now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReleasePending(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Model(&membershipdomain.Membership{}).
		Where("id = ? AND payment_pending = ?", id, true).
		Updates(map[string]any{
			"payment_pending": false,
			"updated_at":      now,
		}).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, membership *membershipdomain.Membership) error {
	return db.WithContext(ctx).Model(&membershipdomain.Membership{}).
		Where("id = ?", membership.ID).
		Updates(map[string]any{
			"plan_id":         membership.PlanID,
			"status":          membership.Status,
			"amount_cents":    membership.AmountCents,
			"currency":        membership.Currency,
			"billing_token":   membership.BillingToken,
			"next_billing_at": membership.NextBillingAt,
			"grace_attempts":  membership.GraceAttempts,
			"payment_pending": membership.PaymentPending,
			"paused_at":       membership.PausedAt,
			"canceled_at":     membership.CanceledAt,
			"expired_at":      membership.ExpiredAt,
			"updated_at":      membership.UpdatedAt,
		}).Error
}

func (r *repo) FindDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]membershipdomain.Membership, error) {
	var memberships []membershipdomain.Membership
	stmt := db.WithContext(ctx).
		Where("status IN ? AND next_billing_at <= ? AND payment_pending = ?", []membershipdomain.Status{
			membershipdomain.StatusActive,
			membershipdomain.StatusPastDue,
		}, now, false).
		Order("next_billing_at ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}
