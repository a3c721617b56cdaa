package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"Atlas/config"
	dbotel "Atlas/pkg/database"
	"Atlas/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

func Init() error {
	dbOnce.Do(func() {
		gormCfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			PrepareStmt:                              true,
			SkipDefaultTransaction:                   true,
			// 唯一约束冲突翻译为 gorm.ErrDuplicatedKey
			TranslateError: true,
		}

		var gormDB *gorm.DB
		gormDB, dbErr = gorm.Open(postgres.Open(config.Cfg.GetDSN()), gormCfg)
		if dbErr != nil {
			logger.Logger.Error("Failed to open database", zap.String("host", config.Cfg.PostgreSQLHost), zap.Error(dbErr))
			return
		}

		if err := registerReplicas(gormDB); err != nil {
			dbErr = err
			logger.Logger.Error("Failed to register read replicas", zap.Error(err))
			return
		}

		if config.Cfg.OTelEnabled {
			if err := dbotel.InitDatabaseMetrics(otel.Meter("atlas.gorm")); err != nil {
				logger.Logger.Warn("Failed to init database metrics", zap.Error(err))
			}
			if err := gormDB.Use(dbotel.NewOTELPlugin(dbotel.PluginConfig{
				ServiceName: config.Cfg.ServiceName,
				DBName:      config.Cfg.PostgreSQLDatabase,
			})); err != nil {
				logger.Logger.Warn("Failed to register gorm otel plugin", zap.Error(err))
			}
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			dbErr = err
			logger.Logger.Error("Failed to get sql.DB from gorm", zap.Error(err))
			return
		}

		configureConnectionPool(sqlDB)

		if err := sqlDB.Ping(); err != nil {
			dbErr = err
			logger.Logger.Error("Failed to ping database", zap.Error(err))
			return
		}

		db = gormDB
		if config.Cfg.DBAutoMigrate {
			if err := Migrate(); err != nil {
				dbErr = err
				return
			}
		}
		logger.Logger.Info("Database initialized successfully",
			zap.Int("replicas", len(config.Cfg.PostgreSQLReplicaDSNs)),
		)
	})

	return dbErr
}

// registerReplicas 配置了只读副本时，读请求走副本，写和事务走主库
func registerReplicas(gormDB *gorm.DB) error {
	if len(config.Cfg.PostgreSQLReplicaDSNs) == 0 {
		return nil
	}

	replicas := make([]gorm.Dialector, 0, len(config.Cfg.PostgreSQLReplicaDSNs))
	for _, dsn := range config.Cfg.PostgreSQLReplicaDSNs {
		replicas = append(replicas, postgres.Open(dsn))
	}

	return gormDB.Use(
		dbresolver.Register(dbresolver.Config{
			Replicas:          replicas,
			Policy:            dbresolver.RandomPolicy{},
			TraceResolverMode: config.Cfg.IsDevelopment(),
		}).
			SetMaxIdleConns(config.Cfg.PostgreSQLMaxIdle).
			SetMaxOpenConns(config.Cfg.PostgreSQLMaxOpen).
			SetConnMaxIdleTime(10 * time.Minute).
			SetConnMaxLifetime(2 * time.Hour),
	)
}

func DB() *gorm.DB {
	return db
}

// Ping 就绪探针使用
func Ping(ctx context.Context) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- sqlDB.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func configureConnectionPool(sqlDB *sql.DB) {
	cfg := config.Cfg

	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)
}
