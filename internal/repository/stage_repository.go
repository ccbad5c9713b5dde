package repository

import (
	"learnpath_backend/internal/model"

	"gorm.io/gorm"
)

type StageRepository struct {
	DB *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{DB: db}
}

func (r *StageRepository) FindByID(id uint) (*model.Stage, error) {
	var stage model.Stage
	err := r.DB.First(&stage, id).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *StageRepository) FindBySection(sectionID uint) ([]model.Stage, error) {
	var stages []model.Stage
	err := r.DB.Where("section_id = ?", sectionID).Order("position asc").Find(&stages).Error
	return stages, err
}

// FindContents 返回 Stage 的全部内容引用
func (r *StageRepository) FindContents(stageID uint) ([]model.StageContent, error) {
	var contents []model.StageContent
	err := r.DB.Where("stage_id = ?", stageID).Find(&contents).Error
	return contents, err
}

// FindContentIDs 按必修/选修拆分返回内容 id 集合
func (r *StageRepository) FindContentIDs(stageID uint) (required []uint, optional []uint, err error) {
	contents, err := r.FindContents(stageID)
	if err != nil {
		return nil, nil, err
	}
	for _, sc := range contents {
		if sc.Required {
			required = append(required, sc.ContentID)
		} else {
			optional = append(optional, sc.ContentID)
		}
	}
	return required, optional, nil
}
