package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/haven/internal/config"
	"github.com/felixgeelhaar/haven/internal/guard"
	"github.com/felixgeelhaar/haven/internal/observe"
	"github.com/felixgeelhaar/haven/internal/server"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp wires the real application around the stub provider.
func newTestApp(t *testing.T, dataDir string) *App {
	t.Helper()
	t.Setenv("HAVEN_PROVIDER_CHAT", "stub")
	t.Setenv("HAVEN_PROVIDER_EMBED", "stub")
	t.Setenv("HAVEN_DATA_DIR", dataDir)

	cfg, err := config.Load(viper.New(), config.Options{EnvFile: filepath.Join(dataDir, "missing.env")})
	require.NoError(t, err)

	app, err := NewApp(context.Background(), cfg, observe.Discard())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func postChat(t *testing.T, url, body string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Post(url+"/api/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestE2E_ServeChat(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, dir)
	ts := httptest.NewServer(server.New(app.Responder, app.Observer, app.Metrics.Handler()))
	defer ts.Close()

	// Off-topic messages are redirected and not remembered.
	code, out := postChat(t, ts.URL, `{"messages":[{"role":"user","content":"What is the capital of France?"}]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, guard.RedirectMessage, out["response"])
	assert.Equal(t, 1, app.Memory.Len())

	// On-topic messages are answered and remembered.
	code, out = postChat(t, ts.URL, `{"messages":[{"role":"user","content":"I keep having negative thinking about my job"}]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, stubReply, out["response"])
	assert.Equal(t, 2, app.Memory.Len())

	// An empty conversation is rejected.
	code, out = postChat(t, ts.URL, `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, out["detail"])

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "connected", health["status"])
	assert.Equal(t, "stub", health["model"])

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `haven_chat_requests_total{outcome="off_topic"} 1`)
	assert.Contains(t, string(body), `haven_chat_requests_total{outcome="answered"} 1`)
	assert.Contains(t, string(body), `haven_memory_records 2`)

	// A restarted app sees the remembered message.
	app.Close()
	reopened := newTestApp(t, dir)
	assert.Equal(t, 2, reopened.Memory.Len())
	got, err := reopened.Memory.Search(context.Background(), "negative thinking", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"I keep having negative thinking about my job"}, got)
}
