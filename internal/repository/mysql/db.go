package mysql

import (
	"time"

	"Niche_Community/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB 连接 MySQL 并设置连接池
func InitDB(dsn string) error {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	DB = db
	return nil
}

// AutoMigrate 建表（documents + community_outbox）
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Document{}, &model.CommunityOutbox{})
}
