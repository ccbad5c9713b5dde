package model

// Section 章节内的有序 Stage 容器。
// 同一章节下所有 Section 的 Position 必须是 0..n-1 的连续序列。
type Section struct {
	BaseModel
	ChapterID uint   `gorm:"index:idx_chapter_position;not null" json:"chapterId"`
	CourseID  uint   `gorm:"index;not null" json:"courseId"`
	Name      string `gorm:"size:255;not null" json:"name"`
	Position  int    `gorm:"index:idx_chapter_position;not null" json:"position"`

	Stages []Stage `gorm:"foreignKey:SectionID" json:"stages,omitempty"`
}

func (Section) TableName() string {
	return "sections"
}
