package service

import (
	"errors"
	"fmt"

	"learnpath_backend/internal/model"
	"learnpath_backend/internal/repository"
	"learnpath_backend/internal/util"
	"learnpath_backend/pkg/events"
	"learnpath_backend/pkg/monitoring"

	"gorm.io/gorm"
)

// SectionService 小节的增删改与章节内全量重排。
// 同一章节的变更在进程内互斥，位置连续性由 listOrderer 维护。
type SectionService struct {
	SectionRepo *repository.SectionRepository
	CourseRepo  *repository.CourseRepository
	DB          *gorm.DB
	Notifier    events.Notifier

	// 装配时注入，可为 nil（缓存关闭）
	Cache StageCacheInvalidator

	orderer listOrderer
	locks   *parentLocks
}

func NewSectionService(
	sectionRepo *repository.SectionRepository,
	courseRepo *repository.CourseRepository,
	db *gorm.DB,
	notifier events.Notifier,
) *SectionService {
	return &SectionService{
		SectionRepo: sectionRepo,
		CourseRepo:  courseRepo,
		DB:          db,
		Notifier:    notifier,
		orderer:     listOrderer{model: &model.Section{}, parentCol: "chapter_id"},
		locks:       newParentLocks(),
	}
}

type SectionCreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateSection 新小节追加到章节末尾（position = 当前小节数）
func (s *SectionService) CreateSection(chapterID uint, req SectionCreateRequest) (*model.Section, error) {
	chapter, err := s.CourseRepo.FindChapterByID(chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chapter %d", util.ErrNotFound, chapterID)
		}
		return nil, err
	}

	lock := s.locks.lock(fmt.Sprintf("chapter:%d", chapterID))
	defer lock.Unlock()

	var section *model.Section
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		position, err := s.orderer.nextPosition(tx, chapterID)
		if err != nil {
			return err
		}
		section = &model.Section{
			ChapterID: chapterID,
			CourseID:  chapter.CourseID,
			Name:      req.Name,
			Position:  position,
		}
		return tx.Create(section).Error
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(events.AssociationEvent{
		EventType: "section.created",
		CourseID:  chapter.CourseID,
		ChapterID: chapterID,
		SectionID: section.ID,
	})

	return section, nil
}

func (s *SectionService) UpdateSectionName(sectionID uint, name string) (*model.Section, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: section name must not be empty", util.ErrValidation)
	}

	section, err := s.SectionRepo.FindByID(sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: section %d", util.ErrNotFound, sectionID)
		}
		return nil, err
	}

	section.Name = name
	if err := s.DB.Model(&model.Section{}).Where("id = ?", sectionID).
		Update("name", name).Error; err != nil {
		return nil, err
	}
	return section, nil
}

// DeleteSection 级联删除所属 Stage 及其内容引用，然后回填兄弟小节的位置。
// 全部变更在一个事务内提交。
func (s *SectionService) DeleteSection(sectionID uint) error {
	section, err := s.SectionRepo.FindByID(sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: section %d", util.ErrNotFound, sectionID)
		}
		return err
	}

	lock := s.locks.lock(fmt.Sprintf("chapter:%d", section.ChapterID))
	defer lock.Unlock()

	var stageIDs []uint
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// 锁外的快照可能已过期，持锁后按当前位置删除回填
		var current model.Section
		if err := tx.First(&current, sectionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: section %d", util.ErrNotFound, sectionID)
			}
			return err
		}
		if err := tx.Model(&model.Stage{}).Where("section_id = ?", sectionID).
			Pluck("id", &stageIDs).Error; err != nil {
			return err
		}
		if len(stageIDs) > 0 {
			if err := tx.Where("stage_id IN ?", stageIDs).Delete(&model.StageContent{}).Error; err != nil {
				return err
			}
			if err := tx.Where("section_id = ?", sectionID).Delete(&model.Stage{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&model.Section{}, sectionID).Error; err != nil {
			return err
		}
		return s.orderer.removeAndRepack(tx, current.ChapterID, current.Position)
	})
	if err != nil {
		return err
	}

	if s.Cache != nil && len(stageIDs) > 0 {
		s.Cache.InvalidateStages(stageIDs...)
	}

	s.Notifier.Publish(events.AssociationEvent{
		EventType: "section.deleted",
		CourseID:  section.CourseID,
		ChapterID: section.ChapterID,
		SectionID: sectionID,
	})

	return nil
}

// ReorderSections 全量重排：orderedIDs 必须恰好是该章节当前小节的置换。
// 校验失败不产生任何变更；并发冲突先以新快照重试一次，仍失败返回 ErrConflict。
func (s *SectionService) ReorderSections(chapterID uint, orderedIDs []uint) ([]model.Section, error) {
	if _, err := s.CourseRepo.FindChapterByID(chapterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chapter %d", util.ErrNotFound, chapterID)
		}
		return nil, err
	}

	lock := s.locks.lock(fmt.Sprintf("chapter:%d", chapterID))
	defer lock.Unlock()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			return s.orderer.reorder(tx, chapterID, orderedIDs)
		})
		if !errors.Is(err, errOrderingConflict) {
			break
		}
	}
	if errors.Is(err, errOrderingConflict) {
		monitoring.ReorderCounter.WithLabelValues("chapter", "conflict").Inc()
		return nil, fmt.Errorf("%w: sections of chapter %d were modified concurrently", util.ErrConflict, chapterID)
	}
	if err != nil {
		monitoring.ReorderCounter.WithLabelValues("chapter", "error").Inc()
		return nil, err
	}
	monitoring.ReorderCounter.WithLabelValues("chapter", "ok").Inc()

	s.Notifier.Publish(events.AssociationEvent{
		EventType: "section.reordered",
		ChapterID: chapterID,
	})

	return s.SectionRepo.FindByChapter(chapterID)
}
