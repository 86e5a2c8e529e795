package database

import (
	"time"

	"copilot-chat-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接，并对传入的模型执行自动迁移。
func InitMySQL(dsn string, models ...interface{}) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		// 让唯一键冲突以 gorm.ErrDuplicatedKey 的形式返回
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	if len(models) > 0 {
		if err := DB.AutoMigrate(models...); err != nil {
			log.Fatal("failed to migrate database", err)
		}
	}

	log.Info("MySQL database connected successfully")
}
