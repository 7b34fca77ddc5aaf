package web

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/printshelf/internal/config"
	"github.com/JonMunkholm/printshelf/internal/core"
	"github.com/JonMunkholm/printshelf/internal/store"
)

type fakeRepo struct {
	mu     sync.Mutex
	models map[uuid.UUID]store.Model
}

func (r *fakeRepo) Create(_ context.Context, m *store.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	r.models[m.ID] = *m
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (*store.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (r *fakeRepo) List(_ context.Context, _ store.ListOptions) ([]store.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Model
	for _, m := range r.models {
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, id uuid.UUID, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[id]
	if !ok {
		return store.ErrNotFound
	}
	if v, ok := fields["title"].(string); ok {
		m.Title = v
	}
	if v, ok := fields["featured"].(bool); ok {
		m.Featured = v
	}
	r.models[id] = m
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.models, id)
	return nil
}

func (r *fakeRepo) IncrementStat(_ context.Context, id uuid.UUID, stat string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[id]
	if !ok {
		return store.ErrNotFound
	}
	switch stat {
	case "downloads":
		m.Downloads++
	case "views":
		m.Views++
	case "likes":
		m.Likes++
	default:
		return store.ErrUnknownStat
	}
	r.models[id] = m
	return nil
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			Dir:           dir,
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
		},
		Profile: config.ProfileConfig{
			MaxEntrySize:   1 << 20,
			ExtractTimeout: 5 * time.Second,
		},
		Cache: config.CacheConfig{PreviewEntries: 4},
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *fakeRepo) {
	t.Helper()
	cfg := testConfig(t.TempDir())
	if mutate != nil {
		mutate(cfg)
	}
	repo := &fakeRepo{models: map[uuid.UUID]store.Model{}}
	svc, err := core.NewService(repo, cfg)
	require.NoError(t, err)

	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, repo
}

func testPackage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, body string }{
		{"3D/3dmodel.model", `<model xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02">` +
			`<metadata name="Title">Benchy</metadata>` +
			`<resources><object id="1"/></resources></model>`},
		{"Metadata/Slic3r_PE.config", "layer_height = 0.2\nfill_density = 20%\nsupport_material = 1\n"},
		{"Metadata/thumbnail.png", "\x89PNG\r\n\x1a\nthumb"},
		{"[Content_Types].xml", `<Types/>`},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestCreateAndFetchModel(t *testing.T) {
	srv, repo := newTestServer(t, nil)

	rec := serve(srv, uploadRequest(t, "/api/models", "benchy.3mf", testPackage(t), map[string]string{
		"category": "calibration",
		"tags":     "Boat, test,boat",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created store.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Benchy", created.Title)
	assert.Equal(t, []string{"boat", "test"}, created.Tags)
	assert.Equal(t, "/api/models/"+created.ID.String(), rec.Header().Get("Location"))
	assert.Len(t, created.PrintSettings, 3)
	require.NotEmpty(t, created.Thumbnail)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/models/"+created.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"layer_height":0.2`)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/files/thumbnails/"+created.Thumbnail, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG\r\n\x1a\nthumb", rec.Body.String())

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/models/"+created.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Benchy</h1>")
	assert.Contains(t, rec.Body.String(), "<dd>20%</dd>")
	assert.Contains(t, rec.Body.String(), "<dd>Yes</dd>")

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Views)
}

func TestCreateModel_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     int
		code     string
	}{
		{"no file", "", nil, http.StatusBadRequest, "FILE002"},
		{"wrong extension", "model.stl", []byte("solid"), http.StatusUnprocessableEntity, "PKG001"},
		{"not a zip", "model.3mf", []byte("definitely not zip"), http.StatusUnprocessableEntity, "PKG002"},
		{"empty", "model.3mf", []byte{}, http.StatusBadRequest, "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, repo := newTestServer(t, nil)
			rec := serve(srv, uploadRequest(t, "/api/models", tt.filename, tt.data, nil))

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Empty(t, repo.models)
		})
	}
}

func TestCreateModel_TooLarge(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) { c.Upload.MaxFileSize = 64 })

	big := bytes.Repeat([]byte("x"), 2<<20)
	rec := serve(srv, uploadRequest(t, "/api/models", "big.3mf", big, nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestPreview(t *testing.T) {
	srv, repo := newTestServer(t, nil)
	pkg := testPackage(t)

	rec := serve(srv, uploadRequest(t, "/api/preview", "benchy.3mf", pkg, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res core.PreviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Cached)
	assert.Equal(t, "0.2", res.Summary.LayerHeight)
	assert.Equal(t, "Yes", res.Summary.Supports)
	assert.Empty(t, repo.models, "preview stores nothing")

	rec = serve(srv, uploadRequest(t, "/api/preview", "again.3mf", pkg, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Cached)
}

func TestGetModel_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		want int
		code string
	}{
		{"bad id", "/api/models/not-a-uuid", http.StatusNotFound, "VAL001"},
		{"missing", "/api/models/" + uuid.NewString(), http.StatusNotFound, "DB001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestModelPage_NotFoundRendersHTML(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/models/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "DB001")
}

func TestUpdateAndDeleteModel(t *testing.T) {
	srv, repo := newTestServer(t, nil)
	rec := serve(srv, uploadRequest(t, "/api/models", "benchy.3mf", testPackage(t), nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var m store.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))

	patch := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/models/"+m.ID.String(), strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(srv, req)
	}

	rec = patch(`{"title":"Renamed","featured":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"title":"Renamed"`)
	assert.Contains(t, rec.Body.String(), `"featured":true`)

	rec = patch(`{"downloads":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL002", decodeError(t, rec).Code)

	rec = patch(`{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL004", decodeError(t, rec).Code)

	rec = patch(`not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL003", decodeError(t, rec).Code)

	rec = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/models/"+m.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.models)

	rec = serve(srv, httptest.NewRequest(http.MethodDelete, "/api/models/"+m.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownload(t *testing.T) {
	srv, repo := newTestServer(t, nil)
	pkg := testPackage(t)
	rec := serve(srv, uploadRequest(t, "/api/models", "benchy.3mf", pkg, map[string]string{"title": `My "Boat"`}))
	require.Equal(t, http.StatusCreated, rec.Code)
	var m store.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))

	rec = serve(srv, httptest.NewRequest(http.MethodPost, "/api/models/"+m.ID.String()+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pkg, rec.Body.Bytes())
	assert.Equal(t, `attachment; filename="My _Boat_.3mf"`, rec.Header().Get("Content-Disposition"))

	stored, err := repo.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Downloads)
}

func TestWriteRoutesRequireAPIKey(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := serve(srv, uploadRequest(t, "/api/models", "benchy.3mf", testPackage(t), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := uploadRequest(t, "/api/models", "benchy.3mf", testPackage(t), nil)
	req.Header.Set("X-API-Key", "secret")
	rec = serve(srv, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "reads stay public")
}

func TestUploadRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 100
		c.Rate.UploadLimit = 1
	})
	pkg := testPackage(t)

	rec := serve(srv, uploadRequest(t, "/api/preview", "a.3mf", pkg, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, uploadRequest(t, "/api/preview", "a.3mf", pkg, nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestThumbnail_RejectsBadNames(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, name := range []string{".env", "..", "missing.png"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, "/files/thumbnails/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

func TestListOptions(t *testing.T) {
	tests := []struct {
		query   string
		wantErr bool
		check   func(t *testing.T, o store.ListOptions)
	}{
		{"", false, func(t *testing.T, o store.ListOptions) {
			assert.Equal(t, store.DefaultListLimit, o.Limit)
			assert.Nil(t, o.Featured)
		}},
		{"?limit=10&offset=20&category=+tools+&q=hook", false, func(t *testing.T, o store.ListOptions) {
			assert.Equal(t, 10, o.Limit)
			assert.Equal(t, 20, o.Offset)
			assert.Equal(t, "tools", o.Category)
			assert.Equal(t, "hook", o.Query)
		}},
		{"?featured=true", false, func(t *testing.T, o store.ListOptions) {
			require.NotNil(t, o.Featured)
			assert.True(t, *o.Featured)
		}},
		{"?limit=0", true, nil},
		{"?limit=500", true, nil},
		{"?offset=-1", true, nil},
		{"?featured=maybe", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			opts, err := listOptions(httptest.NewRequest(http.MethodGet, "/api/models"+tt.query, nil))
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidField)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(core.ErrTooManyUploads))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(core.ErrExtractTimeout))
	assert.Equal(t, http.StatusInternalServerError, statusFor(os.ErrPermission))
}

func TestDownloadName(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "a_b.3mf", downloadName(&store.Model{Title: "a/b"}))
	assert.Equal(t, id.String()+".3mf", downloadName(&store.Model{ID: id, Title: "  "}))
	assert.Equal(t, "cube.3mf", filepath.Base(downloadName(&store.Model{Title: "cube"})))
}
