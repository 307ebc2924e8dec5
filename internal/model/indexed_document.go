package model

import "time"

// 文档台账中的状态。
const (
	StatusIndexing = "indexing"
	StatusIndexed  = "indexed"
	StatusFailed   = "failed"
)

// IndexedDocument 对应 indexed_documents 表，记录每个文档的导入情况。
// 写入中断的文档停留在 indexing 或 failed 状态，便于人工排查。
type IndexedDocument struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Format     string    `gorm:"type:varchar(16)" json:"format"`
	Source     string    `gorm:"type:varchar(512)" json:"source"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunkCount"`
	Status     string    `gorm:"type:varchar(16);not null;index" json:"status"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  LocalTime `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  LocalTime `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (IndexedDocument) TableName() string {
	return "indexed_documents"
}

// NewIndexedDocument 构造一条台账记录。
func NewIndexedDocument(doc Document, status string) *IndexedDocument {
	now := LocalTime(time.Now())
	return &IndexedDocument{
		Name:      doc.Name,
		Format:    doc.Format,
		Source:    doc.Path,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
