package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/handler"
	"docrag/internal/pipeline"
	"docrag/internal/service"
	"docrag/internal/source"
	"docrag/pkg/tasks"
	"docrag/pkg/token"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.VectorStore.PersistDirectory = filepath.Join(t.TempDir(), "vector_db")
	cfg.Ingest.DocumentDirectory = "/srv/docs"
	return cfg
}

func TestNewWithLocalDefaults(t *testing.T) {
	app, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Store)
	assert.Nil(t, app.Ledger)
	assert.Nil(t, app.Uploader())
	assert.Equal(t, []string{tasks.SourceFS}, app.Sources())
	assert.Equal(t, 1000, app.Splitter.Size())
	assert.Equal(t, 200, app.Splitter.Overlap())
	assert.True(t, app.Registry.Supports("a.docx"))
	assert.True(t, app.Registry.Supports("a.pdf"))
	assert.False(t, app.Registry.Supports("a.doc"), "legacy office formats need tika")
}

func TestResolveSource(t *testing.T) {
	app, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	src, err := app.ResolveSource(tasks.IngestTask{})
	require.NoError(t, err)
	assert.IsType(t, &source.FS{}, src)
	assert.Equal(t, "/srv/docs", src.Location())

	src, err = app.ResolveSource(tasks.IngestTask{Source: tasks.SourceFS, Root: "reports/2024"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/docs/reports/2024", src.Location())

	src, err = app.ResolveLocalSource(tasks.IngestTask{Root: "/other"})
	require.NoError(t, err)
	assert.Equal(t, "/other", src.Location())

	_, err = app.ResolveSource(tasks.IngestTask{Source: tasks.SourceMinIO})
	assert.Error(t, err)
	_, err = app.ResolveSource(tasks.IngestTask{Source: "ftp"})
	assert.Error(t, err)
}

func TestResolveSourceConfinesRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.DocumentDirectory = t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(cfg.Ingest.DocumentDirectory, "escape")))
	require.NoError(t, os.Mkdir(filepath.Join(cfg.Ingest.DocumentDirectory, "inner"), 0o755))

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	for _, root := range []string{
		outside,
		"/etc",
		"..",
		"../" + filepath.Base(outside),
		"inner/../../x",
		"escape",
		"escape/sub",
	} {
		_, err := app.ResolveSource(tasks.IngestTask{Root: root})
		assert.ErrorIs(t, err, ErrRootOutsideDocuments, root)
		assert.ErrorIs(t, app.ValidateTask(tasks.IngestTask{Root: root}), ErrRootOutsideDocuments, root)
	}

	for _, root := range []string{"inner", "./inner", "inner/../inner", "not-yet-created"} {
		assert.NoError(t, app.ValidateTask(tasks.IngestTask{Root: root}), root)
	}
}

func TestAdminIngestCannotReadOutsideDocuments(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Ingest.DocumentDirectory = t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secrets.txt"), []byte("DB_PASSWORD=hunter2"), 0o600))

	app, err := New(ctx, cfg)
	require.NoError(t, err)
	defer app.Close()

	runner := pipeline.NewTaskRunner(app.Processor(), app.ResolveSource)
	dispatched := 0
	dispatch := func(ctx context.Context, task tasks.IngestTask) error {
		dispatched++
		return runner.Process(ctx, task)
	}
	router := func(secret string) http.Handler {
		return handler.NewRouter(gin.TestMode, handler.Services{
			RAG:       service.NewRAGService(app.Store, app.LLM, cfg.LLM.Model, cfg.Retrieval.K),
			Documents: service.NewDocumentService(app.Store, app.Ledger, app.Uploader(), cfg.MinIO.Prefix, app.Registry.Supports),
			Ingest:    service.NewIngestService(dispatch, runner, app.ValidateTask, cfg.Ingest.Source, app.Sources()...),
			JWT:       token.NewJWTManager(secret, 1),
		})
	}
	do := func(h http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	// 默认配置没有 jwt.secret，管理接口关闭
	open := router("")
	assert.Equal(t, http.StatusForbidden, do(open, http.MethodPost, "/api/v1/ingest", `{"root":"`+outside+`"}`, "").Code)
	assert.Equal(t, http.StatusForbidden, do(open, http.MethodGet, "/api/v1/records", "", "").Code)

	secured := router("secret")
	tok, err := token.NewJWTManager("secret", 1).GenerateToken("ops")
	require.NoError(t, err)
	for _, root := range []string{outside, "../" + filepath.Base(outside)} {
		w := do(secured, http.MethodPost, "/api/v1/ingest", `{"root":"`+root+`"}`, tok)
		assert.Equal(t, http.StatusBadRequest, w.Code, root)
	}
	assert.Zero(t, dispatched)

	w := do(secured, http.MethodGet, "/api/v1/records", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorStore.Driver = "chroma"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestTikaEnablesPDF(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tika.ServerURL = "http://localhost:9998"
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()
	assert.True(t, app.Registry.Supports("report.PDF"))
	assert.True(t, app.Registry.Supports("minutes.doc"))
}
