package model

type Tag struct {
	BaseModel
	Name string `gorm:"size:128;not null;uniqueIndex" json:"name"`
}

func (Tag) TableName() string {
	return "tags"
}
