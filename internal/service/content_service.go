package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"learnpath_backend/internal/model"
	"learnpath_backend/internal/repository"
	"learnpath_backend/internal/util"
	"learnpath_backend/pkg/events"
	"learnpath_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentService 原子学习单元的管理：创建、标签、媒体上传、删除。
type ContentService struct {
	ContentRepo *repository.ContentRepository
	CourseRepo  *repository.CourseRepository
	Storage     *StorageService
	DB          *gorm.DB
	Notifier    events.Notifier
}

func NewContentService(
	contentRepo *repository.ContentRepository,
	courseRepo *repository.CourseRepository,
	storage *StorageService,
	db *gorm.DB,
	notifier events.Notifier,
) *ContentService {
	return &ContentService{
		ContentRepo: contentRepo,
		CourseRepo:  courseRepo,
		Storage:     storage,
		DB:          db,
		Notifier:    notifier,
	}
}

type AssessmentItemRequest struct {
	Prompt      string   `json:"prompt"`
	Skills      []string `json:"skills"`
	BloomLevels []string `json:"bloomLevels"`
}

type ContentCreateRequest struct {
	Kind          model.ContentKind       `json:"kind" binding:"required"`
	Title         string                  `json:"title" binding:"required"`
	RewardPoints  int                     `json:"rewardPoints"`
	SuggestedDate *time.Time              `json:"suggestedDate"`
	TagNames      []string                `json:"tagNames"`
	MediaURL      string                  `json:"mediaUrl"`
	MediaType     string                  `json:"mediaType"`
	Items         []AssessmentItemRequest `json:"items"`
}

// CreateContent 创建内容。标签按名称解析，不存在的标签自动建档；
// 同一请求内重复的标签名视为校验错误。
func (s *ContentService) CreateContent(chapterID uint, req ContentCreateRequest) (*model.Content, error) {
	chapter, err := s.CourseRepo.FindChapterByID(chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chapter %d", util.ErrNotFound, chapterID)
		}
		return nil, err
	}

	if req.Kind != model.MediaContent && req.Kind != model.AssessmentContent {
		return nil, fmt.Errorf("%w: unknown content kind %q", util.ErrValidation, req.Kind)
	}
	if req.Kind == model.MediaContent && len(req.Items) > 0 {
		return nil, fmt.Errorf("%w: media content cannot carry assessment items", util.ErrValidation)
	}

	seenTags := make(map[string]bool, len(req.TagNames))
	for _, name := range req.TagNames {
		if name == "" {
			return nil, fmt.Errorf("%w: tag name must not be empty", util.ErrValidation)
		}
		if seenTags[name] {
			return nil, fmt.Errorf("%w: duplicate tag name %q", util.ErrValidation, name)
		}
		seenTags[name] = true
	}

	var content *model.Content
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		tags, err := s.resolveTags(tx, req.TagNames)
		if err != nil {
			return err
		}

		content = &model.Content{
			Kind:          req.Kind,
			ChapterID:     chapterID,
			CourseID:      chapter.CourseID,
			Title:         req.Title,
			RewardPoints:  req.RewardPoints,
			SuggestedDate: req.SuggestedDate,
			MediaURL:      req.MediaURL,
			MediaType:     req.MediaType,
			Tags:          tags,
		}
		if err := tx.Create(content).Error; err != nil {
			return err
		}

		for _, item := range req.Items {
			skills, _ := json.Marshal(item.Skills)
			blooms, _ := json.Marshal(item.BloomLevels)
			assessmentItem := &model.AssessmentItem{
				ContentID:   content.ID,
				Prompt:      item.Prompt,
				Skills:      string(skills),
				BloomLevels: string(blooms),
			}
			if err := tx.Create(assessmentItem).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(events.AssociationEvent{
		EventType:  "content.created",
		CourseID:   chapter.CourseID,
		ChapterID:  chapterID,
		ContentIDs: []uint{content.ID},
	})

	return s.ContentRepo.FindByID(content.ID)
}

// resolveTags 名称转标签实体，缺失的即时创建
func (s *ContentService) resolveTags(tx *gorm.DB, names []string) ([]model.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var existing []model.Tag
	if err := tx.Where("name IN ?", names).Find(&existing).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]model.Tag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	tags := make([]model.Tag, 0, len(names))
	for _, name := range names {
		tag, ok := byName[name]
		if !ok {
			tag = model.Tag{Name: name}
			if err := tx.Create(&tag).Error; err != nil {
				return nil, err
			}
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *ContentService) GetContent(id uint) (*model.Content, error) {
	content, err := s.ContentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: content %d", util.ErrNotFound, id)
		}
		return nil, err
	}
	return content, nil
}

// DeleteContent 内容独立于结构删除；Stage 持有的是弱引用，
// 这里一并清掉引用行并通知下游失效。
func (s *ContentService) DeleteContent(id uint) error {
	content, err := s.GetContent(id)
	if err != nil {
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("content_id = ?", id).Delete(&model.StageContent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("content_id = ?", id).Delete(&model.AssessmentItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Content{}, id).Error
	})
	if err != nil {
		return err
	}

	s.Notifier.Publish(events.AssociationEvent{
		EventType:  "content.deleted",
		CourseID:   content.CourseID,
		ChapterID:  content.ChapterID,
		ContentIDs: []uint{id},
	})
	return nil
}

func (s *ContentService) ListTags() ([]model.Tag, error) {
	return s.ContentRepo.ListTags()
}

// UploadMedia 上传媒体文件并回填内容的媒体载荷。
// 先落临时文件用 ffmpeg 探测时长，再交给存储实现。
func (s *ContentService) UploadMedia(ctx context.Context, contentID uint, file *multipart.FileHeader) (*model.Content, error) {
	content, err := s.GetContent(contentID)
	if err != nil {
		return nil, err
	}
	if content.Kind != model.MediaContent {
		return nil, fmt.Errorf("%w: content %d is not a media content", util.ErrValidation, contentID)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "media-*"+filepath.Ext(file.Filename))
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.ReadFrom(src); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	var duration *float64
	mediaType := file.Header.Get("Content-Type")
	if info, err := util.ProbeMedia(tmp.Name()); err != nil {
		// 探测失败不阻塞上传，时长留空
		logger.Log.Warn("media probe failed", zap.Uint("content_id", contentID), zap.Error(err))
	} else {
		duration = &info.Duration
		if mediaType == "" {
			mediaType = info.Format
		}
	}

	reopened, err := os.Open(tmp.Name())
	if err != nil {
		return nil, err
	}
	defer reopened.Close()

	objectKey := fmt.Sprintf("media/%d/%s%s", contentID, uuid.New().String(), filepath.Ext(file.Filename))
	url, err := s.Storage.Provider.Upload(ctx, objectKey, reopened, file.Size, mediaType)
	if err != nil {
		return nil, err
	}

	err = s.DB.Model(&model.Content{}).Where("id = ?", contentID).Updates(map[string]interface{}{
		"media_url":        url,
		"media_type":       mediaType,
		"duration_seconds": duration,
	}).Error
	if err != nil {
		return nil, err
	}

	return s.ContentRepo.FindByID(contentID)
}
