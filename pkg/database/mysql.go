// Package database 负责创建 MySQL 与 Redis 连接。
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"docrag/internal/model"
	"docrag/pkg/log"
)

// NewMySQL 打开 MySQL 连接并迁移文档台账表。
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.IndexedDocument{}); err != nil {
		return nil, fmt.Errorf("failed to migrate indexed_documents: %w", err)
	}

	log.Info("MySQL database connected successfully")
	return db, nil
}
