package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, attempt *paymentdomain.Attempt) error {
	return db.WithContext(ctx).Create(attempt).Error
}

func (r *repo) FindByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]paymentdomain.Attempt, error) {
	var attempts []paymentdomain.Attempt
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *repo) FindByTarget(ctx context.Context, db *gorm.DB, targetType paymentdomain.TargetType, targetID snowflake.ID) ([]paymentdomain.Attempt, error) {
	var attempts []paymentdomain.Attempt
	err := db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}
