package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/model"
	"docrag/pkg/embedding"
)

const testDim = 256

// wordEmbedder 把每个单词散列到固定维度上，词重叠越多相似度越高。
type wordEmbedder struct {
	mu      sync.Mutex
	calls   int
	largest int
	err     error
}

func (e *wordEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v, err := e.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (e *wordEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.largest = max(e.largest, len(texts))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%testDim]++
		}
		out[i] = v
	}
	return out, nil
}

func chunksFor(name string, texts ...string) []model.Chunk {
	out := make([]model.Chunk, len(texts))
	for i, t := range texts {
		out[i] = model.Chunk{Text: t, Name: name, Index: i}
	}
	return out
}

func openTestBolt(t *testing.T, dir string, e embedding.Client) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(dir, e)
	require.NoError(t, err)
	return s
}

func TestBoltStoreExistsAndAdd(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t, t.TempDir(), &wordEmbedder{})
	defer s.Close()

	found, err := s.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.AddBatch(ctx, chunksFor("a.txt", "apples are red", "bananas are yellow")))

	found, err = s.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Exists(ctx, "b.txt")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, s.Count())
}

func TestBoltStoreSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t, t.TempDir(), &wordEmbedder{})
	defer s.Close()

	require.NoError(t, s.AddBatch(ctx, chunksFor("fruit.txt", "apples are red", "bananas are yellow")))
	require.NoError(t, s.AddBatch(ctx, chunksFor("sky.txt", "the sky is blue")))

	results, err := s.SimilaritySearch(ctx, "red apples", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "apples are red", results[0].Text)
	assert.Equal(t, "fruit.txt", results[0].Name())
	assert.NotEmpty(t, results[0].ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// k 大于记录数时返回全部
	results, err = s.SimilaritySearch(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = s.SimilaritySearch(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBoltStoreSearchOnEmptyStoreSkipsEmbedding(t *testing.T) {
	e := &wordEmbedder{}
	s := openTestBolt(t, t.TempDir(), e)
	defer s.Close()

	results, err := s.SimilaritySearch(context.Background(), "query", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, e.calls)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestBolt(t, dir, &wordEmbedder{})
	require.NoError(t, s.AddBatch(ctx, chunksFor("a.txt", "one", "two")))
	require.NoError(t, s.Close())

	s = openTestBolt(t, dir, &wordEmbedder{})
	defer s.Close()
	found, err := s.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, found)

	records, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "one", records[0].Text)
	assert.Equal(t, "two", records[1].Text)
}

func TestBoltStoreList(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t, t.TempDir(), &wordEmbedder{})
	defer s.Close()

	require.NoError(t, s.AddBatch(ctx, chunksFor("a.txt", "a1", "a2", "a3")))
	require.NoError(t, s.AddBatch(ctx, chunksFor("b.txt", "b1")))

	records, err := s.List(ctx, Filter{Name: "a.txt", Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "a.txt", r.Name())
	}

	records, err = s.List(ctx, Filter{Name: "missing"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBoltStoreEmbeddingUnavailable(t *testing.T) {
	ctx := context.Background()
	e := &wordEmbedder{err: embedding.ErrUnavailable}
	s := openTestBolt(t, t.TempDir(), e)
	defer s.Close()

	err := s.AddBatch(ctx, chunksFor("a.txt", "text"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	found, err := s.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, found, "failed batch must not register the name")
}

func TestBoltStoreRejectedEmbeddingIsNotUnavailable(t *testing.T) {
	e := &wordEmbedder{err: errors.New("input too long")}
	s := openTestBolt(t, t.TempDir(), e)
	defer s.Close()

	err := s.AddBatch(context.Background(), chunksFor("a.txt", "text"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestBoltStoreClosedIsUnavailable(t *testing.T) {
	s := openTestBolt(t, t.TempDir(), &wordEmbedder{})
	require.NoError(t, s.Close())

	_, err := s.Exists(context.Background(), "a.txt")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestBoltStoreEmbedsLargeBatchInSubBatches(t *testing.T) {
	ctx := context.Background()
	e := &wordEmbedder{}
	s := openTestBolt(t, t.TempDir(), e)
	defer s.Close()

	texts := make([]string, 2*embedBatchSize+10)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}
	texts[137] = "zebra giraffe elephant"
	require.NoError(t, s.AddBatch(ctx, chunksFor("big.txt", texts...)))

	assert.Equal(t, 3, e.calls)
	assert.Equal(t, embedBatchSize, e.largest)

	records, err := s.List(ctx, Filter{Name: "big.txt"})
	require.NoError(t, err)
	assert.Len(t, records, len(texts))

	// 向量与文本一一对应
	found, err := s.SimilaritySearch(ctx, "zebra giraffe elephant", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "zebra giraffe elephant", found[0].Text)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 1}))
}
