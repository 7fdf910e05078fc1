package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).First(&plan, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repo) FindByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, activeOnly bool) ([]plandomain.Plan, error) {
	stmt := db.WithContext(ctx).Where("creator_id = ?", creatorID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}

	var plans []plandomain.Plan
	if err := stmt.Order("created_at DESC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) UpdateActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Model(&plandomain.Plan{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")}).Error
}
