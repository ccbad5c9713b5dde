package model

import "time"

// UserProgressData 某用户对某内容的学习档案：
// 完整的尝试日志（读取时按时间倒序）加上复习算法维护的学习间隔（天）。
type UserProgressData struct {
	BaseModel
	UserID           uint `gorm:"index:idx_user_content,unique;not null" json:"userId"`
	ContentID        uint `gorm:"index:idx_user_content,unique;not null" json:"contentId"`
	LearningInterval *int `json:"learningInterval"`

	Log []ProgressLogItem `gorm:"foreignKey:ProgressDataID" json:"log,omitempty"`
}

func (UserProgressData) TableName() string {
	return "user_progress_data"
}

// ProgressLogItem 一次学习尝试。写入后不可变，只允许追加新记录。
type ProgressLogItem struct {
	BaseModel
	ProgressDataID  uint      `gorm:"index;not null" json:"-"`
	Timestamp       time.Time `gorm:"index;not null" json:"timestamp"`
	Success         bool      `gorm:"not null" json:"success"`
	Score           float64   `gorm:"default:0" json:"score"`
	HintsUsed       int       `gorm:"default:0" json:"hintsUsed"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
}

func (ProgressLogItem) TableName() string {
	return "progress_log_items"
}

// ProgressStatus ReviewScheduler 的只读输出。
type ProgressStatus struct {
	IsLearned        bool       `json:"isLearned"`
	LastLearnDate    *time.Time `json:"lastLearnDate,omitempty"`
	NextLearnDate    *time.Time `json:"nextLearnDate,omitempty"`
	IsDueForReview   bool       `json:"isDueForReview"`
	LearningInterval *int       `json:"learningInterval"`
}
