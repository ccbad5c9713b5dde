package repository

import (
	"learnpath_backend/internal/model"

	"gorm.io/gorm"
)

type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

func (r *ContentRepository) FindByID(id uint) (*model.Content, error) {
	var content model.Content
	err := r.DB.Preload("Tags").Preload("Items").First(&content, id).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// CountByIDs 统计给定 id 中真实存在的内容数，用于校验引用有效性
func (r *ContentRepository) CountByIDs(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.Model(&model.Content{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

func (r *ContentRepository) ListByChapter(chapterID uint) ([]model.Content, error) {
	var contents []model.Content
	err := r.DB.Preload("Tags").Where("chapter_id = ?", chapterID).Find(&contents).Error
	return contents, err
}

func (r *ContentRepository) FindTagsByNames(names []string) ([]model.Tag, error) {
	var tags []model.Tag
	if len(names) == 0 {
		return tags, nil
	}
	err := r.DB.Where("name IN ?", names).Find(&tags).Error
	return tags, err
}

func (r *ContentRepository) ListTags() ([]model.Tag, error) {
	var tags []model.Tag
	err := r.DB.Order("name asc").Find(&tags).Error
	return tags, err
}
