package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, activeOnly bool) ([]Plan, error)
	UpdateActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}
