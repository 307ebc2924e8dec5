package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"docrag/internal/model"
	"docrag/internal/repository"
	"docrag/internal/vectorstore"
	"docrag/pkg/log"
)

var (
	// ErrLedgerDisabled 表示未配置 MySQL 台账。
	ErrLedgerDisabled = errors.New("document ledger is not configured")
	// ErrUploadDisabled 表示未配置对象存储。
	ErrUploadDisabled = errors.New("object storage is not configured")
	// ErrUnsupportedFile 表示上传的文件类型无法提取文本。
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// ObjectUploader 把一个对象写入对象存储。
type ObjectUploader func(ctx context.Context, key string, r io.Reader, size int64) (int64, error)

// RecordLister 列出向量存储中的记录。
type RecordLister interface {
	List(ctx context.Context, filter vectorstore.Filter) ([]model.Record, error)
}

// UploadResult 描述一次上传。
type UploadResult struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	ListRecords(ctx context.Context, filter vectorstore.Filter) ([]model.Record, error)
	ListIndexed(ctx context.Context, status string) ([]model.IndexedDocument, error)
	Upload(ctx context.Context, fileName string, r io.Reader, size int64) (*UploadResult, error)
}

type documentService struct {
	records  RecordLister
	ledger   repository.DocumentRepository // 可为 nil
	upload   ObjectUploader                // 可为 nil
	prefix   string
	supports func(name string) bool
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(records RecordLister, ledger repository.DocumentRepository, upload ObjectUploader, prefix string, supports func(name string) bool) DocumentService {
	return &documentService{
		records:  records,
		ledger:   ledger,
		upload:   upload,
		prefix:   prefix,
		supports: supports,
	}
}

func (s *documentService) ListRecords(ctx context.Context, filter vectorstore.Filter) ([]model.Record, error) {
	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (s *documentService) ListIndexed(ctx context.Context, status string) ([]model.IndexedDocument, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	switch status {
	case "", model.StatusIndexing, model.StatusIndexed, model.StatusFailed:
	default:
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return s.ledger.List(ctx, status)
}

// Upload 把文件写入对象存储的导入前缀下，之后由 minio 来源的导入任务处理。
func (s *documentService) Upload(ctx context.Context, fileName string, r io.Reader, size int64) (*UploadResult, error) {
	if s.upload == nil {
		return nil, ErrUploadDisabled
	}
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrUnsupportedFile)
	}
	if s.supports != nil && !s.supports(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}

	key := name
	if s.prefix != "" {
		key = strings.TrimRight(s.prefix, "/") + "/" + name
	}
	written, err := s.upload(ctx, key, r, size)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}
	log.Infof("[DocumentService] 文件上传成功: %s, 大小: %d", key, written)
	return &UploadResult{Name: name, Key: key, Size: written}, nil
}
