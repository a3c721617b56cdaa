package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Atlas/internal/model"
	"Atlas/pkg/logger"
)

// Migrate 运行数据库迁移，创建所有表
func Migrate() error {
	db := DB()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.User{},
		&model.POI{},
		&model.Itinerary{},
		&model.ItineraryItem{},
		&model.Snapshot{},
		&model.ItineraryFork{},
		&model.DiffAction{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	// 外部匹配 POI 的 upsert 依据：名称小写 + 坐标
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_pois_lower_name ON pois (lower(name))`).Error; err != nil {
		logger.Logger.Error("Failed to create poi name index", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
