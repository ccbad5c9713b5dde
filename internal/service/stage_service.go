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

// StageCacheInvalidator 进度快照缓存的失效入口。内容集合变更后
// 必须丢弃受影响 Stage 的快照，否则可学性判定会读到过期比例。
type StageCacheInvalidator interface {
	InvalidateStages(stageIDs ...uint)
}

// StageService Stage 的增删改、小节内移动与全量重排。
type StageService struct {
	StageRepo   *repository.StageRepository
	SectionRepo *repository.SectionRepository
	ContentRepo *repository.ContentRepository
	DB          *gorm.DB
	Notifier    events.Notifier

	// 装配时注入，可为 nil（缓存关闭）
	Cache StageCacheInvalidator

	orderer listOrderer
	locks   *parentLocks
}

func NewStageService(
	stageRepo *repository.StageRepository,
	sectionRepo *repository.SectionRepository,
	contentRepo *repository.ContentRepository,
	db *gorm.DB,
	notifier events.Notifier,
) *StageService {
	return &StageService{
		StageRepo:   stageRepo,
		SectionRepo: sectionRepo,
		ContentRepo: contentRepo,
		DB:          db,
		Notifier:    notifier,
		orderer:     listOrderer{model: &model.Stage{}, parentCol: "section_id"},
		locks:       newParentLocks(),
	}
}

type StageContentSetsRequest struct {
	RequiredContentIDs []uint `json:"requiredContentIds"`
	OptionalContentIDs []uint `json:"optionalContentIds"`
}

// validateContentSets 必修/选修集合不得重叠，集合内不得有重复，
// 且引用的内容必须全部存在。
func (s *StageService) validateContentSets(req StageContentSetsRequest) error {
	seen := make(map[uint]bool, len(req.RequiredContentIDs)+len(req.OptionalContentIDs))
	for _, id := range req.RequiredContentIDs {
		if seen[id] {
			return fmt.Errorf("%w: duplicate content id %d in required set", util.ErrValidation, id)
		}
		seen[id] = true
	}
	for _, id := range req.OptionalContentIDs {
		if seen[id] {
			return fmt.Errorf("%w: content id %d appears in both required and optional sets", util.ErrValidation, id)
		}
		seen[id] = true
	}

	allIDs := make([]uint, 0, len(seen))
	for id := range seen {
		allIDs = append(allIDs, id)
	}
	count, err := s.ContentRepo.CountByIDs(allIDs)
	if err != nil {
		return err
	}
	if int(count) != len(allIDs) {
		return fmt.Errorf("%w: one or more referenced contents do not exist", util.ErrNotFound)
	}
	return nil
}

// CreateStage 新 Stage 追加到小节末尾
func (s *StageService) CreateStage(sectionID uint, req StageContentSetsRequest) (*model.Stage, error) {
	section, err := s.SectionRepo.FindByID(sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: section %d", util.ErrNotFound, sectionID)
		}
		return nil, err
	}

	if err := s.validateContentSets(req); err != nil {
		return nil, err
	}

	lock := s.locks.lock(fmt.Sprintf("section:%d", sectionID))
	defer lock.Unlock()

	var stage *model.Stage
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		position, err := s.orderer.nextPosition(tx, sectionID)
		if err != nil {
			return err
		}
		stage = &model.Stage{SectionID: sectionID, Position: position}
		if err := tx.Create(stage).Error; err != nil {
			return err
		}
		return s.createContentLinks(tx, stage.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.publishStageEvent("stage.created", section, stage.ID, req)
	return s.findWithContents(stage.ID)
}

// UpdateStage 整体替换必修/选修内容集合
func (s *StageService) UpdateStage(stageID uint, req StageContentSetsRequest) (*model.Stage, error) {
	stage, err := s.StageRepo.FindByID(stageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: stage %d", util.ErrNotFound, stageID)
		}
		return nil, err
	}

	if err := s.validateContentSets(req); err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stage_id = ?", stageID).Delete(&model.StageContent{}).Error; err != nil {
			return err
		}
		return s.createContentLinks(tx, stageID, req)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(stageID)

	section, err := s.SectionRepo.FindByID(stage.SectionID)
	if err == nil {
		s.publishStageEvent("stage.updated", section, stageID, req)
	}
	return s.findWithContents(stageID)
}

// DeleteStage 删除后回填兄弟 Stage 的位置
func (s *StageService) DeleteStage(stageID uint) error {
	stage, err := s.StageRepo.FindByID(stageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: stage %d", util.ErrNotFound, stageID)
		}
		return err
	}

	lock := s.locks.lock(fmt.Sprintf("section:%d", stage.SectionID))
	defer lock.Unlock()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// 锁外的快照可能已过期，持锁后按当前位置删除回填
		var current model.Stage
		if err := tx.First(&current, stageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: stage %d", util.ErrNotFound, stageID)
			}
			return err
		}
		if err := tx.Where("stage_id = ?", stageID).Delete(&model.StageContent{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Stage{}, stageID).Error; err != nil {
			return err
		}
		return s.orderer.removeAndRepack(tx, current.SectionID, current.Position)
	})
	if err != nil {
		return err
	}

	s.invalidateCache(stageID)

	s.Notifier.Publish(events.AssociationEvent{
		EventType: "stage.deleted",
		SectionID: stage.SectionID,
		StageID:   stageID,
	})
	return nil
}

// MoveStage 单项移动，newPosition 收敛到 [0, count-1]
func (s *StageService) MoveStage(stageID uint, newPosition int) (*model.Stage, error) {
	stage, err := s.StageRepo.FindByID(stageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: stage %d", util.ErrNotFound, stageID)
		}
		return nil, err
	}

	lock := s.locks.lock(fmt.Sprintf("section:%d", stage.SectionID))
	defer lock.Unlock()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// 持锁后重读当前位置，锁外的快照可能已被并发移动改写
		var current model.Stage
		if err := tx.First(&current, stageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: stage %d", util.ErrNotFound, stageID)
			}
			return err
		}
		count, err := s.orderer.nextPosition(tx, current.SectionID)
		if err != nil {
			return err
		}
		target := clampPosition(newPosition, count)
		return s.orderer.moveTo(tx, current.SectionID, stageID, current.Position, target)
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(events.AssociationEvent{
		EventType: "stage.moved",
		SectionID: stage.SectionID,
		StageID:   stageID,
	})
	return s.StageRepo.FindByID(stageID)
}

// ReorderStages 全量重排，语义与 SectionService.ReorderSections 一致
func (s *StageService) ReorderStages(sectionID uint, orderedIDs []uint) ([]model.Stage, error) {
	if _, err := s.SectionRepo.FindByID(sectionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: section %d", util.ErrNotFound, sectionID)
		}
		return nil, err
	}

	lock := s.locks.lock(fmt.Sprintf("section:%d", sectionID))
	defer lock.Unlock()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			return s.orderer.reorder(tx, sectionID, orderedIDs)
		})
		if !errors.Is(err, errOrderingConflict) {
			break
		}
	}
	if errors.Is(err, errOrderingConflict) {
		monitoring.ReorderCounter.WithLabelValues("section", "conflict").Inc()
		return nil, fmt.Errorf("%w: stages of section %d were modified concurrently", util.ErrConflict, sectionID)
	}
	if err != nil {
		monitoring.ReorderCounter.WithLabelValues("section", "error").Inc()
		return nil, err
	}
	monitoring.ReorderCounter.WithLabelValues("section", "ok").Inc()

	s.Notifier.Publish(events.AssociationEvent{
		EventType: "stage.reordered",
		SectionID: sectionID,
	})

	return s.StageRepo.FindBySection(sectionID)
}

func (s *StageService) invalidateCache(stageIDs ...uint) {
	if s.Cache != nil {
		s.Cache.InvalidateStages(stageIDs...)
	}
}

func (s *StageService) createContentLinks(tx *gorm.DB, stageID uint, req StageContentSetsRequest) error {
	var links []model.StageContent
	for _, id := range req.RequiredContentIDs {
		links = append(links, model.StageContent{StageID: stageID, ContentID: id, Required: true})
	}
	for _, id := range req.OptionalContentIDs {
		links = append(links, model.StageContent{StageID: stageID, ContentID: id, Required: false})
	}
	if len(links) == 0 {
		return nil
	}
	return tx.Create(&links).Error
}

func (s *StageService) findWithContents(stageID uint) (*model.Stage, error) {
	var stage model.Stage
	err := s.DB.Preload("Contents").First(&stage, stageID).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (s *StageService) publishStageEvent(eventType string, section *model.Section, stageID uint, req StageContentSetsRequest) {
	contentIDs := append(append([]uint{}, req.RequiredContentIDs...), req.OptionalContentIDs...)
	s.Notifier.Publish(events.AssociationEvent{
		EventType:  eventType,
		CourseID:   section.CourseID,
		ChapterID:  section.ChapterID,
		SectionID:  section.ID,
		StageID:    stageID,
		ContentIDs: contentIDs,
	})
}
