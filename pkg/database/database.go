package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/ndrop/config"
	"github.com/d60-Lab/ndrop/internal/model"
)

// InitDB 按配置打开主数据库连接并自动建表
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// InitPrivilegedDB 打开特权连接（通知写入绕过行级策略用）；未配置时返回 nil
func InitPrivilegedDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.PrivilegedDSN == "" {
		return nil, nil
	}
	return open(cfg.Database.Driver, cfg.Database.PrivilegedDSN)
}

func open(driver, dsn string) (*gorm.DB, error) {
	// TranslateError: 唯一索引冲突统一映射为 gorm.ErrDuplicatedKey
	gcfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), gcfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// AutoMigrate 建表（生产 postgres 亦由此管理 schema）
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Event{},
		&model.EventParticipant{},
		&model.TimeSlot{},
		&model.Meeting{},
		&model.MeetingMessage{},
		&model.Notification{},
		&model.MatchRecommendation{},
	)
}
