package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

// MinIO 枚举存储桶中某个前缀下的对象。
type MinIO struct {
	client  *minio.Client
	bucket  string
	prefix  string
	matcher *Matcher
}

// NewMinIO 创建 MinIO 来源。
func NewMinIO(client *minio.Client, bucket, prefix string, matcher *Matcher) *MinIO {
	if matcher == nil {
		matcher = NewMatcher(nil, nil)
	}
	return &MinIO{client: client, bucket: bucket, prefix: prefix, matcher: matcher}
}

func (s *MinIO) Location() string {
	return fmt.Sprintf("minio://%s/%s", s.bucket, s.prefix)
}

func (s *MinIO) Walk(ctx context.Context, fn func(Item) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.prefix), "/")
		if !s.matcher.Match(rel) {
			continue
		}
		key := obj.Key
		item := NewItem(path.Base(key), key, obj.Size, func(ctx context.Context) ([]byte, error) {
			o, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
			if err != nil {
				return nil, err
			}
			defer o.Close()
			return io.ReadAll(o)
		})
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}
