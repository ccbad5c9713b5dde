package service

import (
	"sync"
	"time"

	"learnpath_backend/internal/config"
	"learnpath_backend/internal/model"
)

// ReviewService 从进度日志和学习间隔推导学习状态。
// 配置可在运行中通过 Reload 热替换，读写都经由内部锁，
// 可对不同用户/内容并发调用。
type ReviewService struct {
	mu  sync.RWMutex
	cfg config.ReviewConfig
}

func NewReviewService(cfg config.ReviewConfig) *ReviewService {
	return &ReviewService{cfg: cfg}
}

// Reload 配置热更新入口，对进行中的请求即时生效
func (s *ReviewService) Reload(cfg config.ReviewConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Evaluate 在 now 时刻对一条进度档案求值。
// data 为 nil（从未学习）时返回零值状态：未学会、无日期、不需复习。
// 规则：
//   - isLearned 当且仅当最近一条日志 success 为真；
//   - lastLearnDate 学会时取最近一条日志时间，否则缺失；
//   - nextLearnDate = lastLearnDate + learningInterval 天，二者任一缺失则缺失；
//   - isDueForReview 当且仅当 nextLearnDate 存在且不晚于 now。
func (s *ReviewService) Evaluate(data *model.UserProgressData, now time.Time) model.ProgressStatus {
	status := model.ProgressStatus{}
	if data == nil {
		return status
	}

	status.LearningInterval = data.LearningInterval

	latest := latestLogItem(data.Log)
	if latest == nil || !latest.Success {
		return status
	}

	status.IsLearned = true
	last := latest.Timestamp
	status.LastLearnDate = &last

	if data.LearningInterval == nil {
		return status
	}

	next := last.AddDate(0, 0, *data.LearningInterval)
	status.NextLearnDate = &next
	status.IsDueForReview = !next.After(now)

	return status
}

// IsLearned Evaluate 的捷径，聚合完成比例只需要这一位
func (s *ReviewService) IsLearned(data *model.UserProgressData) bool {
	if data == nil {
		return false
	}
	latest := latestLogItem(data.Log)
	return latest != nil && latest.Success
}

// NextInterval 追加一条日志后的新学习间隔：
// 成功时从初始间隔起倍增并封顶，失败时重置为缺失（需重新学会）。
func (s *ReviewService) NextInterval(current *int, success bool) *int {
	if !success {
		return nil
	}
	s.mu.RLock()
	initial, max := s.cfg.InitialIntervalDays, s.cfg.MaxIntervalDays
	s.mu.RUnlock()

	next := initial
	if current != nil {
		next = *current * 2
		if next > max {
			next = max
		}
	}
	return &next
}

// latestLogItem 返回时间最近的一条日志。日志读取时已按时间倒序，
// 但求值不依赖存储顺序，仍按时间比较。
func latestLogItem(log []model.ProgressLogItem) *model.ProgressLogItem {
	var latest *model.ProgressLogItem
	for i := range log {
		if latest == nil || log[i].Timestamp.After(latest.Timestamp) {
			latest = &log[i]
		}
	}
	return latest
}
