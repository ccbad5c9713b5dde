package model

import "time"

// Stage 小节内的有序学习单元，Position 约束与 Section 相同（作用域为所属 Section）。
// 内容集合通过 StageContent 以 id 引用持有，Stage 不拥有 Content。
type Stage struct {
	BaseModel
	SectionID uint `gorm:"index:idx_section_position;not null" json:"sectionId"`
	Position  int  `gorm:"index:idx_section_position;not null" json:"position"`

	Contents []StageContent `gorm:"foreignKey:StageID" json:"contents,omitempty"`
}

func (Stage) TableName() string {
	return "stages"
}

// StageContent 一个内容引用。唯一索引保证同一内容不会同时出现在
// 必修和选修集合中。引用是弱关系，不使用软删除，移除即物理删除。
type StageContent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	StageID   uint      `gorm:"index;uniqueIndex:idx_stage_content;not null" json:"stageId"`
	ContentID uint      `gorm:"uniqueIndex:idx_stage_content;not null" json:"contentId"`
	Required  bool      `gorm:"not null" json:"required"`
}

func (StageContent) TableName() string {
	return "stage_contents"
}
