package database

import (
	"fmt"
	"log"

	"learnpath_backend/internal/config"
	"learnpath_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.Course{},
		&model.Chapter{},
		&model.Tag{},
		&model.Content{},
		&model.AssessmentItem{},
		&model.Section{},
		&model.Stage{},
		&model.StageContent{},
		&model.UserProgressData{},
		&model.ProgressLogItem{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认内容标签（为空时插入常用标签）
	var tagCount int64
	db.Model(&model.Tag{}).Count(&tagCount)
	if tagCount == 0 {
		defaultTags := []model.Tag{
			{Name: "grammar"},
			{Name: "vocabulary"},
			{Name: "listening"},
			{Name: "reading"},
			{Name: "exam-prep"},
		}
		for _, t := range defaultTags {
			db.Create(&t)
		}
	}

	return db, nil
}
