package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/vaultd/internal/conf"
	"github.com/tphakala/vaultd/internal/logger"
	"github.com/tphakala/vaultd/internal/observability"
	"github.com/tphakala/vaultd/internal/securefs"
	"github.com/tphakala/vaultd/internal/vault"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// lockedBuffer is a log sink safe for concurrent handlers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	server *Server
	root   string
	logs   *lockedBuffer
}

// setupTestServer builds a server over a temp vault. mutate may adjust the
// settings before the server is created.
func setupTestServer(t *testing.T, mutate func(*conf.Settings)) *testEnv {
	t.Helper()

	root := t.TempDir()
	settings := &conf.Settings{
		Vault: conf.VaultSettings{Root: root},
		WebServer: conf.WebServerSettings{
			Host:           "127.0.0.1",
			Port:           "0",
			BodyLimit:      "1M",
			AllowedOrigins: []string{"*"},
		},
		Logging:   conf.LoggingSettings{Level: "debug"},
		Metrics:   conf.MetricsSettings{Enabled: true},
		Version:   "test",
		BuildDate: "2024-01-01",
	}
	if mutate != nil {
		mutate(settings)
	}

	logs := &lockedBuffer{}
	cl, err := logger.NewCentralLoggerWithWriter(settings.LoggingConfig(), logs)
	require.NoError(t, err)

	sfs, err := securefs.New(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sfs.Close() })

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	svc := vault.NewService(sfs,
		vault.WithLogger(cl.Module("vault")),
		vault.WithMetrics(m.Vault))

	server, err := New(settings, svc,
		WithLogger(cl.Module("api")),
		WithMetrics(m))
	require.NoError(t, err)

	return &testEnv{server: server, root: root, logs: logs}
}

func (env *testEnv) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(env.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func (env *testEnv) readFile(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(env.root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// do sends a request straight into the Echo instance.
func (env *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) SuccessResponse {
	t.Helper()
	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestReadFileEndpoint(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	env.writeFile(t, "daily/today.md", "Hi {{name}}, {{ mood }}")

	rec := env.do(http.MethodGet, "/api/file?filePath=daily/today.md", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ReadFileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hi {{name}}, {{ mood }}", resp.Content)
	assert.Equal(t, []string{"name", "mood"}, resp.Variables)
}

func TestReadFileWithoutVariablesReturnsEmptyArray(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	env.writeFile(t, "plain.txt", "plain")

	rec := env.do(http.MethodGet, "/api/file?filePath=plain.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":"plain","variables":[]}`, rec.Body.String())
}

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "folder"), 0o755))

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		status  int
		message string
	}{
		{"read without path", http.MethodGet, "/api/file", "", http.StatusBadRequest, vault.MsgFilePathRequired},
		{"read missing", http.MethodGet, "/api/file?filePath=missing.md", "", http.StatusNotFound, vault.MsgReadFailed},
		{"read directory", http.MethodGet, "/api/file?filePath=folder", "", http.StatusInternalServerError, vault.MsgReadFailed},
		{"write without content", http.MethodPost, "/api/file", `{"filePath":"a.md"}`, http.StatusBadRequest, vault.MsgContentRequired},
		{"write missing template", http.MethodPost, "/api/file", `{"filePath":"a.md","templatePath":"t.md"}`, http.StatusNotFound, vault.MsgWriteFailed},
		{"write malformed", http.MethodPost, "/api/file", `{"filePath":`, http.StatusBadRequest, msgInvalidBody},
		{"write bad variable", http.MethodPost, "/api/file", `{"filePath":"a.md","content":"x","variables":{"k":{"n":1}}}`, http.StatusBadRequest, msgInvalidBody},
		{"move missing source", http.MethodPut, "/api/file", `{"sourcePath":"nope.md","destinationPath":"b.md"}`, http.StatusNotFound, vault.MsgMoveFailed},
		{"move without destination", http.MethodPut, "/api/file", `{"sourcePath":"nope.md"}`, http.StatusBadRequest, vault.MsgMovePathRequired},
		{"move malformed", http.MethodPut, "/api/file", `[1,2]`, http.StatusBadRequest, msgInvalidBody},
		{"delete missing", http.MethodDelete, "/api/file", `{"filePath":"ghost.md"}`, http.StatusNotFound, vault.MsgDeleteFailed},
		{"delete directory", http.MethodDelete, "/api/file", `{"filePath":"folder"}`, http.StatusInternalServerError, vault.MsgDeleteFailed},
		{"delete malformed", http.MethodDelete, "/api/file", `{{`, http.StatusBadRequest, msgInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.target, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decodeError(t, rec)
			assert.Equal(t, tt.message, resp.Error)
			assert.Equal(t, tt.status, resp.Code)
			assert.NotEmpty(t, resp.CorrelationID)
			assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), resp.CorrelationID)
		})
	}

	// nothing was created by the failed writes
	_, err := os.Stat(filepath.Join(env.root, "a.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPermissionDeniedMapsTo403(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	env := setupTestServer(t, nil)
	env.writeFile(t, "locked.md", "secret")
	require.NoError(t, os.Chmod(filepath.Join(env.root, "locked.md"), 0o000))

	rec := env.do(http.MethodGet, "/api/file?filePath=locked.md", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, vault.MsgReadFailed, decodeError(t, rec).Error)
}

func TestErrorResponseHidesCause(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodGet, "/api/file?filePath=secret/plan.md", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, env.root)
	assert.NotContains(t, body, "no such file")

	resp := decodeError(t, rec)
	logs := env.logs.String()
	assert.Contains(t, logs, resp.CorrelationID, "log line carries the correlation ID")
	assert.Contains(t, logs, "request rejected")
}

func TestFailureLogsShareCorrelationID(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodDelete, "/api/file", `{"filePath":"gone/note.md"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeError(t, rec)
	require.NotEmpty(t, resp.CorrelationID)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), resp.CorrelationID)

	traced := "trace_id=" + resp.CorrelationID
	var vaultLine, apiLine, accessLine string
	for line := range strings.Lines(env.logs.String()) {
		switch {
		case strings.Contains(line, "file operation rejected"):
			vaultLine = line
		case strings.Contains(line, "request rejected"):
			apiLine = line
		case strings.Contains(line, "module=api.http"):
			accessLine = line
		}
	}

	assert.Contains(t, vaultLine, traced, "vault failure log")
	assert.Contains(t, vaultLine, "no such file", "vault log keeps the cause")
	assert.Contains(t, apiLine, traced, "error response log")
	assert.Contains(t, accessLine, traced, "access log")
}

func TestClientRequestIDIsKept(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/file", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "client-supplied-id")
	rec := httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "client-supplied-id", decodeError(t, rec).CorrelationID)
}

func TestWriteFileEndpoint(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodPost, "/api/file", `{"filePath":"inbox/new.md","content":"first"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, SuccessResponse{Success: true, Message: vault.MsgWritten}, decodeSuccess(t, rec))
	assert.Equal(t, "first", env.readFile(t, "inbox/new.md"))

	rec = env.do(http.MethodPost, "/api/file", `{"filePath":"inbox/new.md","content":"second","append":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first\nsecond", env.readFile(t, "inbox/new.md"))
}

func TestWriteFileFromTemplate(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	env.writeFile(t, "templates/log.md", "day {{day}} of {{ total }}, done={{done}}, {{left}}")

	body := `{
		"filePath": "../../logs/entry.md",
		"templatePath": "/templates/log.md",
		"variables": {"day": 3, "total": "7", "done": false},
		"content": "notes"
	}`
	rec := env.do(http.MethodPost, "/api/file", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "day 3 of 7, done=false, {{left}}notes", env.readFile(t, "logs/entry.md"))
}

func TestMoveFileEndpoint(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	env.writeFile(t, "inbox/idea.md", "idea")

	rec := env.do(http.MethodPut, "/api/file", `{"sourcePath":"inbox/idea.md","destinationPath":"projects/2024/idea.md"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, vault.MsgMoved, decodeSuccess(t, rec).Message)
	assert.Equal(t, "idea", env.readFile(t, "projects/2024/idea.md"))
}

func TestDeleteFileEndpoint(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	env.writeFile(t, "trash/a.md", "a")
	env.writeFile(t, "trash/b.md", "b")

	rec := env.do(http.MethodDelete, "/api/file", `{"filePath":"trash/a.md"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, vault.MsgDeleted, decodeSuccess(t, rec).Message)

	rec = env.do(http.MethodDelete, "/api/file", `{"filePath":"trash/b.md"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vault.MsgDeletedWithFolder, decodeSuccess(t, rec).Message)

	_, err := os.Stat(filepath.Join(env.root, "trash"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "test", resp["version"])
	assert.Contains(t, resp, "uptime_seconds")
	assert.Contains(t, resp, "timestamp")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	env.writeFile(t, "a.md", "a")

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/file?filePath=a.md", "").Code)
	require.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/file?filePath=b.md", "").Code)

	rec := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/file",status_code="200"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/file",status_code="404"} 1`)
	assert.Contains(t, body, `vault_file_operations_total{operation="read",status="success"} 1`)
	assert.Contains(t, body, `vault_file_operation_errors_total{operation="read",reason="not_found"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, func(s *conf.Settings) { s.Metrics.Enabled = false })

	rec := env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenAPIDocument(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodGet, DocsPrefix+"/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "yaml")
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = env.do(http.MethodGet, DocsPrefix+"/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/api/file")
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, func(s *conf.Settings) { s.WebServer.BodyLimit = "1K" })

	big := `{"filePath":"big.md","content":"` + strings.Repeat("x", 4096) + `"}`
	rec := env.do(http.MethodPost, "/api/file", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, decodeError(t, rec).Code)
}

func TestSecureHeaders(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(echo.HeaderXFrameOptions))
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)
	env.server.Echo().GET("/boom", func(echo.Context) error {
		panic("boom")
	})

	rec := env.do(http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, decodeError(t, rec).Code)

	// the server keeps serving
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", "").Code)
}

func TestNewRequiresService(t *testing.T) {
	t.Parallel()
	_, err := New(&conf.Settings{}, nil)
	require.Error(t, err)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	t.Parallel()
	env := setupTestServer(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- env.server.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return env.server.ListenerAddr() != nil
	}, 5*time.Second, 10*time.Millisecond)

	transport := &http.Transport{}
	client := &http.Client{Transport: transport, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + env.server.ListenerAddr().String() + "/health")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	transport.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, env.logs.String(), "Server shutdown complete")
}

func TestRunReportsBindFailure(t *testing.T) {
	t.Parallel()

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	_, port, err := net.SplitHostPort(occupied.Addr().String())
	require.NoError(t, err)

	env := setupTestServer(t, func(s *conf.Settings) { s.WebServer.Port = port })
	err = env.server.Run(t.Context())
	require.Error(t, err)
}
