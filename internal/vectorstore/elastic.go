package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"docrag/internal/model"
	"docrag/pkg/embedding"
	"docrag/pkg/log"
)

// ElasticStore 将分块存入 Elasticsearch，检索使用 dense_vector kNN。
type ElasticStore struct {
	client   *elasticsearch.Client
	index    string
	embedder embedding.Client
}

// NewElasticStore 创建 ElasticStore。索引需要事先通过 es.EnsureIndex 创建。
func NewElasticStore(client *elasticsearch.Client, index string, embedder embedding.Client) *ElasticStore {
	return &ElasticStore{client: client, index: index, embedder: embedder}
}

func (s *ElasticStore) Exists(ctx context.Context, name string) (bool, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"name": name},
		},
	}
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
		s.client.Count.WithBody(jsonReader(body)),
	)
	if err != nil {
		return false, unavailable("count", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, responseError("count", res)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode count response: %w", err)
	}
	return out.Count > 0, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (s *ElasticStore) AddBatch(ctx context.Context, chunks []model.Chunk) error {
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

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, c := range chunks {
		doc := model.EsChunk{ID: uuid.NewString(), Text: c.Text, Name: c.Name, Index: c.Index, Vector: vectors[i]}
		if err := enc.Encode(map[string]interface{}{"index": map[string]string{"_index": s.index, "_id": doc.ID}}); err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}

	res, err := s.client.Bulk(&buf,
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return unavailable("bulk", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("bulk", res)
	}

	var out bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !out.Errors {
		return nil
	}

	// 部分失败：回滚本批已写入的文档，保持批次原子性
	var written []string
	var firstErr string
	for _, item := range out.Items {
		for _, r := range item {
			if r.Error == nil && r.Status < 300 {
				written = append(written, r.ID)
			} else if firstErr == "" && r.Error != nil {
				firstErr = r.Error.Type + ": " + r.Error.Reason
			}
		}
	}
	if err := s.deleteIDs(ctx, written); err != nil {
		log.Errorf("[VectorStore] 回滚部分写入失败, index: %s, error: %v", s.index, err)
	}
	return fmt.Errorf("bulk: %d of %d chunks rejected: %s", len(chunks)-len(written), len(chunks), firstErr)
}

func (s *ElasticStore) deleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range ids {
		if err := enc.Encode(map[string]interface{}{"delete": map[string]string{"_index": s.index, "_id": id}}); err != nil {
			return err
		}
	}
	res, err := s.client.Bulk(&buf, s.client.Bulk.WithContext(ctx), s.client.Bulk.WithRefresh("true"))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("bulk delete", res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64       `json:"_score"`
			Source model.EsChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticStore) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Record, error) {
	if k <= 0 {
		return []model.Record{}, nil
	}
	vectors, err := embedTexts(ctx, s.embedder, []string{query})
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vectors[0],
			"k":              k,
			"num_candidates": max(k*10, 100),
		},
		"size":    k,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	return s.search(ctx, "knn search", body, k)
}

func (s *ElasticStore) List(ctx context.Context, filter Filter) ([]model.Record, error) {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if filter.Name != "" {
		query = map[string]interface{}{"term": map[string]interface{}{"name": filter.Name}}
	}
	size := filter.Limit
	if size <= 0 {
		size = 10000
	}
	body := map[string]interface{}{
		"query":   query,
		"size":    size,
		"sort":    []interface{}{map[string]string{"name": "asc"}, map[string]string{"chunk_index": "asc"}},
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	return s.search(ctx, "list", body, size)
}

func (s *ElasticStore) search(ctx context.Context, op string, body map[string]interface{}, limit int) ([]model.Record, error) {
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(jsonReader(body)),
	)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return []model.Record{}, nil
	}
	if res.IsError() {
		return nil, responseError(op, res)
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	records := make([]model.Record, 0, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		if len(records) == limit {
			break
		}
		records = append(records, hit.Source.ToRecord(hit.Score))
	}
	return records, nil
}

// Close 无需释放资源，客户端由调用方持有。
func (s *ElasticStore) Close() error { return nil }

func jsonReader(v interface{}) io.Reader {
	data, _ := json.Marshal(v)
	return bytes.NewReader(data)
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= http.StatusInternalServerError {
		return unavailable(op, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}
	return fmt.Errorf("%s: status %d: %s", op, res.StatusCode, strings.TrimSpace(string(body)))
}
