package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"docrag/internal/model"
	"docrag/pkg/embedding"
	"docrag/pkg/log"
)

var (
	bucketRecords = []byte("records")
	bucketNames   = []byte("names")
	bucketMeta    = []byte("meta")
	keyDimension  = []byte("dimension")
)

// BoltFileName 是持久化目录下的数据库文件名。
const BoltFileName = "index.db"

// BoltStore 使用 BoltDB 持久化记录，检索时在内存中暴力计算余弦相似度。
// names 桶维护 文档名 -> 分块数 的索引，Exists 不需要扫描记录。
type BoltStore struct {
	db       *bbolt.DB
	embedder embedding.Client

	mu        sync.RWMutex
	dimension int
	entries   []boltEntry // 按写入顺序
}

type boltEntry struct {
	id       string
	text     string
	vector   []float32
	metadata map[string]string
}

type storedRecord struct {
	ID       string            `json:"id"`
	Text     string            `json:"t"`
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// OpenBoltStore 打开（或创建）dir 下的存储。
func OpenBoltStore(dir string, embedder embedding.Client) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persist directory: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(dir, BoltFileName), 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, unavailable("open bolt store", err)
		}
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketNames, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	s := &BoltStore{db: db, embedder: embedder}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	log.Infof("[VectorStore] BoltDB 存储已打开: %s, 记录数: %d", dir, len(s.entries))
	return s, nil
}

func (s *BoltStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyDimension); len(v) == 8 {
			s.dimension = int(binary.BigEndian.Uint64(v))
		}
		return tx.Bucket(bucketRecords).ForEach(func(_, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				log.Warnf("[VectorStore] 跳过损坏的记录: %v", err)
				return nil
			}
			s.entries = append(s.entries, boltEntry{
				id:       rec.ID,
				text:     rec.Text,
				vector:   rec.Vector,
				metadata: rec.Metadata,
			})
			return nil
		})
	})
}

func (s *BoltStore) Exists(_ context.Context, name string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketNames).Get([]byte(name)) != nil
		return nil
	})
	if err != nil {
		return false, s.wrap("exists", err)
	}
	return found, nil
}

func (s *BoltStore) AddBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedTexts(ctx, s.embedder, texts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector dimension mismatch at chunk %d: expected %d, got %d", i, dim, len(v))
		}
	}

	added := make([]boltEntry, 0, len(chunks))
	err = s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		names := tx.Bucket(bucketNames)
		counts := make(map[string]uint64)

		for i, c := range chunks {
			seq, err := records.NextSequence()
			if err != nil {
				return err
			}
			entry := boltEntry{id: uuid.NewString(), text: c.Text, vector: vectors[i], metadata: c.Metadata()}
			data, err := json.Marshal(storedRecord{ID: entry.id, Text: entry.text, Vector: entry.vector, Metadata: entry.metadata})
			if err != nil {
				return err
			}
			if err := records.Put(itob(seq), data); err != nil {
				return err
			}
			counts[c.Name]++
			added = append(added, entry)
		}

		for name, n := range counts {
			if prev := names.Get([]byte(name)); len(prev) == 8 {
				n += binary.BigEndian.Uint64(prev)
			}
			if err := names.Put([]byte(name), itob(n)); err != nil {
				return err
			}
		}
		if s.dimension == 0 {
			return tx.Bucket(bucketMeta).Put(keyDimension, itob(uint64(dim)))
		}
		return nil
	})
	if err != nil {
		return s.wrap("add batch", err)
	}

	// 事务提交后再更新内存缓存
	s.dimension = dim
	s.entries = append(s.entries, added...)
	return nil
}

func (s *BoltStore) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Record, error) {
	if k <= 0 {
		return []model.Record{}, nil
	}
	s.mu.RLock()
	empty := len(s.entries) == 0
	s.mu.RUnlock()
	if empty {
		return []model.Record{}, nil
	}

	vectors, err := embedTexts(ctx, s.embedder, []string{query})
	if err != nil {
		return nil, err
	}
	q := vectors[0]

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension != 0 && len(q) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(q))
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(s.entries))
	for i, e := range s.entries {
		scores[i] = scored{idx: i, score: cosineSimilarity(q, e.vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]model.Record, k)
	for i := 0; i < k; i++ {
		out[i] = s.entries[scores[i].idx].record(scores[i].score)
	}
	return out, nil
}

func (s *BoltStore) List(_ context.Context, filter Filter) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, 0)
	for _, e := range s.entries {
		if filter.Name != "" && e.metadata[model.MetadataName] != filter.Name {
			continue
		}
		out = append(out, e.record(0))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Count 返回记录总数。
func (s *BoltStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) wrap(op string, err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) || errors.Is(err, bbolt.ErrTimeout) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (e boltEntry) record(score float64) model.Record {
	meta := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		meta[k] = v
	}
	return model.Record{ID: e.id, Text: e.text, Metadata: meta, Score: score}
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
