package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docrag/internal/model"
)

// DocumentRepository 定义了对 indexed_documents 表的数据操作接口。
type DocumentRepository interface {
	MarkIndexing(ctx context.Context, doc *model.IndexedDocument) error
	MarkIndexed(ctx context.Context, name string, chunkCount int) error
	MarkFailed(ctx context.Context, name string, reason string) error
	FindByName(ctx context.Context, name string) (*model.IndexedDocument, error)
	List(ctx context.Context, status string) ([]model.IndexedDocument, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// MarkIndexing 插入或重置一条台账记录为 indexing 状态。
func (r *documentRepository) MarkIndexing(ctx context.Context, doc *model.IndexedDocument) error {
	doc.Status = model.StatusIndexing
	doc.ChunkCount = 0
	doc.Error = ""
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"format", "source", "status", "chunk_count", "error", "updated_at"}),
	}).Create(doc).Error
}

func (r *documentRepository) MarkIndexed(ctx context.Context, name string, chunkCount int) error {
	return r.db.WithContext(ctx).Model(&model.IndexedDocument{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{"status": model.StatusIndexed, "chunk_count": chunkCount, "error": ""}).Error
}

func (r *documentRepository) MarkFailed(ctx context.Context, name string, reason string) error {
	return r.db.WithContext(ctx).Model(&model.IndexedDocument{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{"status": model.StatusFailed, "error": reason}).Error
}

// FindByName 未找到时返回 nil, nil。
func (r *documentRepository) FindByName(ctx context.Context, name string) (*model.IndexedDocument, error) {
	var doc model.IndexedDocument
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List 按更新时间倒序返回台账，status 为空时不过滤。
func (r *documentRepository) List(ctx context.Context, status string) ([]model.IndexedDocument, error) {
	var docs []model.IndexedDocument
	q := r.db.WithContext(ctx).Order("updated_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&docs).Error
	return docs, err
}
