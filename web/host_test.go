package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/injectgen/database"
	"github.com/gocrud/injectgen/planning"
	"github.com/gocrud/injectgen/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appManifest = `apiVersion: v1.0.0
types:
  - id: Db
    constructors: [{}]
  - id: Repo
    constructors:
      - params: [{name: db, type: Db}]
modules:
  - id: App
    container: true
    registrations: [{type: Db, scope: single}, Repo]
    roots: [Repo]
`

func newHost(t *testing.T, store database.Store) *web.Host {
	t.Helper()
	return web.NewHost(web.Options{Mode: gin.TestMode, MaxManifestBytes: 1024}, planning.NewService(nil, store, nil), nil)
}

func sqliteStore(t *testing.T) database.Store {
	t.Helper()
	s, err := database.OpenSQLite("file::memory:", func(o *database.DatabaseOptions) { o.MaxOpenConns = 1 })
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.CloseContext(context.Background()) })
	return s
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, strings.NewReader(body)))
	return w
}

func TestHealth(t *testing.T) {
	w := do(newHost(t, nil).Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPlan(t *testing.T) {
	h := newHost(t, nil).Handler()
	w := do(h, http.MethodPost, "/v1/plans?container=App&name=app.yaml", appManifest)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res planning.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "app.yaml", res.Manifest)
	require.Len(t, res.Containers, 1)
	assert.Equal(t, 0, res.Errors)
	assert.Contains(t, res.Containers[0].Listing, "root Repo")
}

func TestPlan_ErrorStatus(t *testing.T) {
	h := newHost(t, nil).Handler()
	cases := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"invalid yaml", "/v1/plans", "apiVersion: [", http.StatusBadRequest},
		{"future version", "/v1/plans", "apiVersion: v3.0.0\n", http.StatusBadRequest},
		{"unknown container", "/v1/plans?container=Nope", appManifest, http.StatusNotFound},
		{"too large", "/v1/plans", strings.Repeat("#", 2048), http.StatusRequestEntityTooLarge},
		{"no store", "/v1/plans/App/latest", "", http.StatusNotImplemented},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			method := http.MethodPost
			if tc.body == "" {
				method = http.MethodGet
			}
			w := do(h, method, tc.target, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestLatestAndHistory(t *testing.T) {
	h := newHost(t, sqliteStore(t)).Handler()

	w := do(h, http.MethodGet, "/v1/plans/App/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/v1/plans", appManifest).Code)

	w = do(h, http.MethodGet, "/v1/plans/App/latest", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var latest struct {
		Container string `json:"container"`
		Summary   struct {
			Roots []struct {
				Type string `json:"type"`
			} `json:"roots"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, "App", latest.Container)
	require.Len(t, latest.Summary.Roots, 1)
	assert.Equal(t, "Repo", latest.Summary.Roots[0].Type)

	w = do(h, http.MethodGet, "/v1/plans/App/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist []json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Len(t, hist, 1)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/v1/plans/App/history?limit=x", "").Code)
}

func TestStartStop(t *testing.T) {
	host := web.NewHost(web.Options{Addr: "127.0.0.1:0", Mode: gin.TestMode}, planning.NewService(nil, nil, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- host.Start(ctx) }()
	require.Eventually(t, func() bool { return host.Address() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + host.Address() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, host.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
