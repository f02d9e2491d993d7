package model

import "time"

// Document 文档存储的一行：collection 为斜杠路径，data 为 JSON 文本
type Document struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"size:255;not null;uniqueIndex:uk_collection_doc,priority:1"`
	DocID      string `gorm:"size:64;not null;uniqueIndex:uk_collection_doc,priority:2"`
	Data       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Document) TableName() string {
	return "documents"
}
