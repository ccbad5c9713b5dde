package model

import "time"

type ContentKind string

const (
	MediaContent      ContentKind = "media"
	AssessmentContent ContentKind = "assessment"
)

// Content 原子学习单元。Kind 决定携带哪部分载荷：
// media 行使用 MediaURL/MediaType/DurationSeconds，
// assessment 行拥有 Items 子表。
type Content struct {
	BaseModel
	Kind          ContentKind `gorm:"size:32;not null;index" json:"kind"`
	ChapterID     uint        `gorm:"index;not null" json:"chapterId"`
	CourseID      uint        `gorm:"index;not null" json:"courseId"`
	Title         string      `gorm:"size:255;not null" json:"title"`
	RewardPoints  int         `gorm:"default:0" json:"rewardPoints"`
	SuggestedDate *time.Time  `json:"suggestedDate,omitempty"`

	MediaURL        string   `gorm:"size:512" json:"mediaUrl,omitempty"`
	MediaType       string   `gorm:"size:64" json:"mediaType,omitempty"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`

	Tags  []Tag            `gorm:"many2many:content_tags" json:"tags,omitempty"`
	Items []AssessmentItem `gorm:"foreignKey:ContentID" json:"items,omitempty"`
}

func (Content) TableName() string {
	return "contents"
}

// AssessmentItem 测评内容的单个题目。Skills 和 BloomLevels 为JSON数组。
type AssessmentItem struct {
	BaseModel
	ContentID   uint   `gorm:"index;not null" json:"contentId"`
	Prompt      string `gorm:"type:text" json:"prompt"`
	Skills      string `gorm:"type:json" json:"skills"`
	BloomLevels string `gorm:"type:json" json:"bloomLevels"`
}

func (AssessmentItem) TableName() string {
	return "assessment_items"
}
