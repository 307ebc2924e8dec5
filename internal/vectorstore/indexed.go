package vectorstore

import (
	"context"

	"github.com/go-redis/redis/v8"

	"docrag/internal/model"
	"docrag/pkg/log"
)

// NameIndex 记录已导入的文档名。
type NameIndex interface {
	Contains(ctx context.Context, name string) (bool, error)
	Add(ctx context.Context, names ...string) error
}

// RedisNameIndex 使用 Redis Set 保存文档名，多个进程可以共享。
type RedisNameIndex struct {
	rdb *redis.Client
	key string
}

// NewRedisNameIndex 创建基于 Redis Set 的索引。
func NewRedisNameIndex(rdb *redis.Client, key string) *RedisNameIndex {
	return &RedisNameIndex{rdb: rdb, key: key}
}

func (r *RedisNameIndex) Contains(ctx context.Context, name string) (bool, error) {
	return r.rdb.SIsMember(ctx, r.key, name).Result()
}

func (r *RedisNameIndex) Add(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	members := make([]interface{}, len(names))
	for i, n := range names {
		members[i] = n
	}
	return r.rdb.SAdd(ctx, r.key, members...).Err()
}

// IndexedStore 在 Store 之前加一层文档名索引。索引只作加速：
// 未命中或出错时回退到底层存储，写入成功后才登记文档名。
type IndexedStore struct {
	Store
	index NameIndex
}

// WithNameIndex 用 index 包装 store。
func WithNameIndex(store Store, index NameIndex) *IndexedStore {
	return &IndexedStore{Store: store, index: index}
}

func (s *IndexedStore) Exists(ctx context.Context, name string) (bool, error) {
	hit, err := s.index.Contains(ctx, name)
	if err != nil {
		log.Warnf("[VectorStore] 查询文档名索引失败, 回退到存储: %v", err)
	} else if hit {
		return true, nil
	}

	found, err := s.Store.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if found {
		if err := s.index.Add(ctx, name); err != nil {
			log.Warnf("[VectorStore] 回填文档名索引失败: %v", err)
		}
	}
	return found, nil
}

func (s *IndexedStore) AddBatch(ctx context.Context, chunks []model.Chunk) error {
	if err := s.Store.AddBatch(ctx, chunks); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	var names []string
	for _, c := range chunks {
		if _, ok := seen[c.Name]; !ok {
			seen[c.Name] = struct{}{}
			names = append(names, c.Name)
		}
	}
	if err := s.index.Add(ctx, names...); err != nil {
		log.Warnf("[VectorStore] 登记文档名索引失败: %v", err)
	}
	return nil
}
