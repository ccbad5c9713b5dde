package repository

import (
	"learnpath_backend/internal/model"

	"gorm.io/gorm"
)

type SectionRepository struct {
	DB *gorm.DB
}

func NewSectionRepository(db *gorm.DB) *SectionRepository {
	return &SectionRepository{DB: db}
}

func (r *SectionRepository) FindByID(id uint) (*model.Section, error) {
	var section model.Section
	err := r.DB.First(&section, id).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// FindByChapter 返回章节下按位置升序的全部小节
func (r *SectionRepository) FindByChapter(chapterID uint) ([]model.Section, error) {
	var sections []model.Section
	err := r.DB.Where("chapter_id = ?", chapterID).Order("position asc").Find(&sections).Error
	return sections, err
}
