package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, attempt *Attempt) error
	FindByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Attempt, error)
	FindByTarget(ctx context.Context, db *gorm.DB, targetType TargetType, targetID snowflake.ID) ([]Attempt, error)
}
