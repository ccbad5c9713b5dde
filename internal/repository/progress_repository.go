package repository

import (
	"errors"

	"learnpath_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// FindByUserAndContent 返回 (user, content) 的进度档案，日志按时间倒序预加载。
// 没有记录时返回 (nil, nil)：缺失的进度不是错误，按"未学会"处理。
func (r *ProgressRepository) FindByUserAndContent(userID, contentID uint) (*model.UserProgressData, error) {
	var data model.UserProgressData
	err := r.DB.Preload("Log", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp desc")
	}).Where("user_id = ? AND content_id = ?", userID, contentID).First(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// FindByUserAndContents 按内容 id 批量返回用户的进度档案，日志按时间倒序。
func (r *ProgressRepository) FindByUserAndContents(userID uint, contentIDs []uint) (map[uint]*model.UserProgressData, error) {
	result := make(map[uint]*model.UserProgressData, len(contentIDs))
	if len(contentIDs) == 0 {
		return result, nil
	}

	var records []model.UserProgressData
	err := r.DB.Preload("Log", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp desc")
	}).Where("user_id = ? AND content_id IN ?", userID, contentIDs).Find(&records).Error
	if err != nil {
		return nil, err
	}

	for i := range records {
		result[records[i].ContentID] = &records[i]
	}
	return result, nil
}
