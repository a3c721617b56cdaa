package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"Atlas/internal/model"
)

// UserStore 只读昵称，账号由外部维护
type UserStore interface {
	// GetNicknames 不存在的用户不出现在结果里
	GetNicknames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	UpsertUser(ctx context.Context, u *model.User) error
}

func (s *gormStore) GetNicknames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	result := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []model.User
	if err := s.reader(ctx).Select("id", "nickname").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("get nicknames: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u.Nickname
	}
	return result, nil
}

func (s *gormStore) UpsertUser(ctx context.Context, u *model.User) error {
	err := s.writer(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"nickname", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
