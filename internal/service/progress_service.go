package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnpath_backend/internal/model"
	"learnpath_backend/internal/repository"
	"learnpath_backend/internal/util"
	"learnpath_backend/pkg/logger"
	"learnpath_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressService 进度日志的追加、(user, content) 学习状态查询、
// Stage 完成比例聚合与可学性判定。
type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	StageRepo    *repository.StageRepository
	ContentRepo  *repository.ContentRepository
	Review       *ReviewService
	DB           *gorm.DB

	rdb      *redis.Client
	cacheTTL time.Duration

	// 同一 (user, content) 的追加串行化，避免丢失更新；不同键互不影响
	appendLocks *parentLocks
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	stageRepo *repository.StageRepository,
	contentRepo *repository.ContentRepository,
	review *ReviewService,
	db *gorm.DB,
	rdb *redis.Client,
	cacheTTLSeconds int,
) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		StageRepo:    stageRepo,
		ContentRepo:  contentRepo,
		Review:       review,
		DB:           db,
		rdb:          rdb,
		cacheTTL:     time.Duration(cacheTTLSeconds) * time.Second,
		appendLocks:  newParentLocks(),
	}
}

type AppendLogRequest struct {
	Timestamp       *time.Time `json:"timestamp"`
	Success         bool       `json:"success"`
	Score           float64    `json:"score"`
	HintsUsed       int        `json:"hintsUsed"`
	DurationSeconds *int       `json:"durationSeconds"`
}

// AppendLogItem 由评分服务回调：追加一条不可变日志并更新学习间隔。
// 已有日志永不修改。
func (s *ProgressService) AppendLogItem(userID, contentID uint, req AppendLogRequest) (*model.UserProgressData, error) {
	if _, err := s.ContentRepo.FindByID(contentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: content %d", util.ErrNotFound, contentID)
		}
		return nil, err
	}

	timestamp := time.Now()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	lock := s.appendLocks.lock(fmt.Sprintf("progress:%d:%d", userID, contentID))
	defer lock.Unlock()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var data model.UserProgressData
		err := tx.Where("user_id = ? AND content_id = ?", userID, contentID).First(&data).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			data = model.UserProgressData{UserID: userID, ContentID: contentID}
			if err := tx.Create(&data).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		item := model.ProgressLogItem{
			ProgressDataID:  data.ID,
			Timestamp:       timestamp,
			Success:         req.Success,
			Score:           req.Score,
			HintsUsed:       req.HintsUsed,
			DurationSeconds: req.DurationSeconds,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		// 学习间隔只跟随时间上最新的那条记录变化
		latest, err := s.isLatest(tx, data.ID, timestamp)
		if err != nil {
			return err
		}
		if latest {
			data.LearningInterval = s.Review.NextInterval(data.LearningInterval, req.Success)
			if err := tx.Model(&model.UserProgressData{}).Where("id = ?", data.ID).
				Update("learning_interval", data.LearningInterval).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStageCaches(userID, contentID)

	return s.ProgressRepo.FindByUserAndContent(userID, contentID)
}

// isLatest 判断 timestamp 是否不早于档案中已有的全部日志
func (s *ProgressService) isLatest(tx *gorm.DB, progressDataID uint, timestamp time.Time) (bool, error) {
	var newer int64
	err := tx.Model(&model.ProgressLogItem{}).
		Where("progress_data_id = ? AND timestamp > ?", progressDataID, timestamp).
		Count(&newer).Error
	return newer == 0, err
}

// GetUserProgressData 返回 (user, content) 的完整学习状态与日志。
// 没有进度记录不算错误，返回"未学会"的零值状态。
func (s *ProgressService) GetUserProgressData(userID, contentID uint) (*UserProgressResponse, error) {
	if _, err := s.ContentRepo.FindByID(contentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: content %d", util.ErrNotFound, contentID)
		}
		return nil, err
	}

	data, err := s.ProgressRepo.FindByUserAndContent(userID, contentID)
	if err != nil {
		return nil, err
	}

	status := s.Review.Evaluate(data, time.Now())
	resp := &UserProgressResponse{ProgressStatus: status}
	if data != nil {
		resp.Log = data.Log
	}
	return resp, nil
}

type UserProgressResponse struct {
	model.ProgressStatus
	Log []model.ProgressLogItem `json:"log"`
}

// StageProgress 必修与选修集合各自的完成比例，取值 [0, 1]
type StageProgress struct {
	Required float64 `json:"requiredProgress"`
	Optional float64 `json:"optionalProgress"`
}

// StageProgressFor 聚合某 Stage 对某用户的完成比例。
// 空集合视为全部完成（比例 1.0）。
func (s *ProgressService) StageProgressFor(stageID, userID uint) (*StageProgress, error) {
	if cached := s.cachedStageProgress(stageID, userID); cached != nil {
		return cached, nil
	}

	start := time.Now()

	if _, err := s.StageRepo.FindByID(stageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: stage %d", util.ErrNotFound, stageID)
		}
		return nil, err
	}

	required, optional, err := s.StageRepo.FindContentIDs(stageID)
	if err != nil {
		return nil, err
	}

	allIDs := append(append([]uint{}, required...), optional...)
	records, err := s.ProgressRepo.FindByUserAndContents(userID, allIDs)
	if err != nil {
		return nil, err
	}

	progress := &StageProgress{
		Required: s.completionRatio(required, records),
		Optional: s.completionRatio(optional, records),
	}

	monitoring.ProgressComputeDuration.Observe(time.Since(start).Seconds())
	s.storeStageProgress(stageID, userID, progress)

	return progress, nil
}

// completionRatio learnedCount / totalCount；空集合按约定返回 1.0
func (s *ProgressService) completionRatio(contentIDs []uint, records map[uint]*model.UserProgressData) float64 {
	if len(contentIDs) == 0 {
		return 1.0
	}
	learned := 0
	for _, id := range contentIDs {
		if s.Review.IsLearned(records[id]) {
			learned++
		}
	}
	return float64(learned) / float64(len(contentIDs))
}

// IsAvailable 位置0的 Stage 永远可学；k>0 时要求位置 k-1 的前驱
// 必修内容全部学会。选修内容不参与门控。
func (s *ProgressService) IsAvailable(stageID, userID uint) (bool, error) {
	stage, err := s.StageRepo.FindByID(stageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: stage %d", util.ErrNotFound, stageID)
		}
		return false, err
	}

	if stage.Position == 0 {
		return true, nil
	}

	var predecessor model.Stage
	err = s.DB.Where("section_id = ? AND position = ?", stage.SectionID, stage.Position-1).
		First(&predecessor).Error
	if err != nil {
		return false, err
	}

	progress, err := s.StageProgressFor(predecessor.ID, userID)
	if err != nil {
		return false, err
	}
	return progress.Required >= 1.0, nil
}

// --- redis 进度快照缓存。缓存不可用必须无感降级 ---
//
// 快照键内嵌每个 Stage 的版本号。内容集合变更时版本自增，
// 旧版本的快照不再被读到，随 TTL 自行过期。

func (s *ProgressService) stageVersionKey(stageID uint) string {
	return fmt.Sprintf("progress:stage:%d:ver", stageID)
}

func (s *ProgressService) stageVersion(stageID uint) int64 {
	v, err := s.rdb.Get(context.Background(), s.stageVersionKey(stageID)).Int64()
	if err != nil {
		return 0
	}
	return v
}

func (s *ProgressService) cacheKey(stageID, userID uint) string {
	return fmt.Sprintf("progress:stage:%d:v%d:user:%d", stageID, s.stageVersion(stageID), userID)
}

// InvalidateStages 内容集合变更后丢弃这些 Stage 的全部用户快照
func (s *ProgressService) InvalidateStages(stageIDs ...uint) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return
	}
	for _, stageID := range stageIDs {
		if err := s.rdb.Incr(context.Background(), s.stageVersionKey(stageID)).Err(); err != nil {
			logger.Log.Warn("failed to bump stage progress cache version",
				zap.Uint("stage_id", stageID), zap.Error(err))
		}
	}
}

func (s *ProgressService) cachedStageProgress(stageID, userID uint) *StageProgress {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.rdb.Get(context.Background(), s.cacheKey(stageID, userID)).Result()
	if err != nil {
		return nil
	}
	var progress StageProgress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		return nil
	}
	return &progress
}

func (s *ProgressService) storeStageProgress(stageID, userID uint, progress *StageProgress) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := s.rdb.Set(context.Background(), s.cacheKey(stageID, userID), raw, s.cacheTTL).Err(); err != nil {
		logger.Log.Warn("failed to cache stage progress", zap.Error(err))
	}
}

// invalidateStageCaches 追加日志后丢弃引用该内容的全部 Stage 的快照
func (s *ProgressService) invalidateStageCaches(userID, contentID uint) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return
	}
	var stageIDs []uint
	err := s.DB.Model(&model.StageContent{}).
		Where("content_id = ?", contentID).
		Pluck("stage_id", &stageIDs).Error
	if err != nil {
		logger.Log.Warn("failed to resolve stages for cache invalidation", zap.Error(err))
		return
	}
	for _, stageID := range stageIDs {
		if err := s.rdb.Del(context.Background(), s.cacheKey(stageID, userID)).Err(); err != nil {
			logger.Log.Warn("failed to invalidate stage progress cache",
				zap.Uint("stage_id", stageID), zap.Error(err))
		}
	}
}
