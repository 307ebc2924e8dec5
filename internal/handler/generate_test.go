package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/model"
	"docrag/internal/service"
	"docrag/internal/vectorstore"
	"docrag/pkg/llm"
)

// letterEmbedder 以字母频次作为向量。
type letterEmbedder struct{}

func (letterEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v, err := letterEmbedder{}.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (letterEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 27)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			} else if !unicode.IsSpace(r) {
				v[26]++
			}
		}
		out[i] = v
	}
	return out, nil
}

// newEchoBackend 模拟生成后端：把收到的 prompt 拆成两段流式返回。
func newEchoBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		half := len(req.Prompt) / 2
		for _, part := range []string{req.Prompt[:half], req.Prompt[half:]} {
			b, _ := json.Marshal(map[string]interface{}{"response": part})
			fmt.Fprintln(w, string(b))
		}
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateEndToEndWithStoredChunk(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.OpenBoltStore(t.TempDir(), letterEmbedder{})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.AddBatch(ctx, []model.Chunk{{Text: "the only stored chunk", Name: "a.txt"}}))

	backend := newEchoBackend(t)
	client := llm.NewClient(config.LLMConfig{BaseURL: backend.URL, Timeout: time.Minute})
	router := NewRouter(gin.TestMode, Services{RAG: service.NewRAGService(store, client, "llama3.1:8b", 0)})

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"query":"test"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp model.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test the only stored chunk", resp.Response)
}
