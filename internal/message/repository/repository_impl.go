package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	messagedomain "github.com/smallbiznis/fanvault/internal/message/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() messagedomain.Repository {
	return &repo{}
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, message *messagedomain.Message) error {
	return db.WithContext(ctx).Create(message).Error
}

func (r *repo) FindMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*messagedomain.Message, error) {
	var message messagedomain.Message
	err := db.WithContext(ctx).First(&message, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Model(&messagedomain.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true).Error
}

func (r *repo) FindThread(ctx context.Context, db *gorm.DB, accountA, accountB snowflake.ID) ([]messagedomain.Message, error) {
	var messages []messagedomain.Message
	err := db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			accountA, accountB, accountB, accountA).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repo) InsertUnlock(ctx context.Context, db *gorm.DB, unlock *messagedomain.Unlock) error {
	return db.WithContext(ctx).Create(unlock).Error
}

func (r *repo) FindUnlock(ctx context.Context, db *gorm.DB, messageID, payerID snowflake.ID) (*messagedomain.Unlock, error) {
	var unlock messagedomain.Unlock
	err := db.WithContext(ctx).
		Where("message_id = ? AND payer_id = ?", messageID, payerID).
		First(&unlock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &unlock, nil
}

func (r *repo) CompleteUnlock(ctx context.Context, db *gorm.DB, id snowflake.ID, attemptID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Model(&messagedomain.Unlock{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       messagedomain.UnlockStatusCompleted,
			"attempt_id":   attemptID,
			"completed_at": at,
		}).Error
}

func (r *repo) DeleteUnlock(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&messagedomain.Unlock{}, "id = ?", id).Error
}

func (r *repo) FindCompletedUnlocks(ctx context.Context, db *gorm.DB, payerID snowflake.ID, messageIDs []snowflake.ID) (map[snowflake.ID]bool, error) {
	unlocked := make(map[snowflake.ID]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return unlocked, nil
	}

	var unlocks []messagedomain.Unlock
	err := db.WithContext(ctx).
		Where("payer_id = ? AND status = ? AND message_id IN ?",
			payerID, messagedomain.UnlockStatusCompleted, messageIDs).
		Find(&unlocks).Error
	if err != nil {
		return nil, err
	}
	for _, unlock := range unlocks {
		unlocked[unlock.MessageID] = true
	}
	return unlocked, nil
}
