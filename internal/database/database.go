package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"talentbridge/internal/config"
)

// 连接池参数。API 与 worker 共用同一套上限，
// 避免导出高峰时 worker 把连接耗尽。
const (
	maxIdleConns    = 5
	maxOpenConns    = 25
	connMaxLifetime = 30 * time.Minute
)

// InitDatabase 打开 PostgreSQL 连接并校验连通性。
// TranslateError 让唯一索引冲突以 gorm.ErrDuplicatedKey 暴露。
func InitDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap db: %w", err)
	}

	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
