package http

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/slidedeck-backend/internal/data/repos"
	"github.com/yungbote/slidedeck-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/slidedeck-backend/internal/http/handlers"
	"github.com/yungbote/slidedeck-backend/internal/observability"
	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
	"github.com/yungbote/slidedeck-backend/internal/realtime/bus"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

func newTestRouter(t *testing.T, maxUpload int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.NewMetrics()

	clock := time.UnixMilli(1_700_000_000_000)
	store, err := filestore.New(t.TempDir(), filestore.WithClock(func() time.Time { return clock }), filestore.WithObserver(metrics))
	require.NoError(t, err)
	urls := filestore.NewURLMapper("")
	assets := services.NewAssetService(db, log, store, urls, repos.NewMaterialRepo(db, log), bus.NewMemoryBus(), metrics, services.AssetServiceOptions{
		AllowedMaterialExtensions: []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg"},
	})

	return NewRouter(RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		MaxUploadBytes:      maxUpload,
		FileHandler:         httpH.NewFileHandler(assets),
		TemplateHandler:     httpH.NewTemplateHandler(assets),
		UserTemplateHandler: httpH.NewUserTemplateHandler(assets),
		PageImageHandler:    httpH.NewPageImageHandler(assets),
		ProjectHandler:      httpH.NewProjectHandler(assets),
		MaterialHandler:     httpH.NewMaterialHandler(assets),
		HealthHandler:       httpH.NewHealthHandler(),
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	dc := gg.NewContext(8, 8)
	dc.SetRGB(0, 0.5, 1)
	dc.Clear()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, dc.Image()))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, method, target, filename string, content []byte, fields map[string]string) *nethttp.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *nethttp.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	code, _ := e["code"].(string)
	return code
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, 0)

	rec := serve(r, httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slidedeck_api_requests_total")
}

func TestTemplateUploadServeDelete(t *testing.T) {
	r := newTestRouter(t, 0)
	img := pngBytes(t)

	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/template", "deck.png", img, nil))
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "/files/p1/template/template.png", body["url"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/files/p1/template/template.png", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, img, rec.Body.Bytes())

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/projects/p1/template", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/projects/p1/template", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["removed"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/projects/p1/template", nil))
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
	assert.Equal(t, "template_not_found", errorCode(t, rec))
}

func TestUploadWithoutFile(t *testing.T) {
	r := newTestRouter(t, 0)
	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/template", "", nil, map[string]string{"x": "y"}))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestInvalidProjectID(t *testing.T) {
	r := newTestRouter(t, 0)
	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/materials/template", "t.png", pngBytes(t), nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
}

func TestServeFileNotFound(t *testing.T) {
	r := newTestRouter(t, 0)
	for _, p := range []string{
		"/files/p1/template/template.png",
		"/files/p1/secret/x.png",
		"/files/materials/none.png",
		"/files/user-templates/t1/template.png",
	} {
		rec := serve(r, httptest.NewRequest(nethttp.MethodGet, p, nil))
		assert.Equal(t, nethttp.StatusNotFound, rec.Code, p)
	}
}

func TestPageImageFlow(t *testing.T) {
	r := newTestRouter(t, 0)
	img := pngBytes(t)

	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/pages/page1/image", "p.png", img, map[string]string{"version": "3"}))
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "p1/pages/page1_v3.png", decode(t, rec)["relative_path"])

	rec = serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/pages/page1/image", "p.png", img, map[string]string{"format": "jpeg"}))
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "p1/pages/page1_1700000000000.jpeg", decode(t, rec)["relative_path"])

	rec = serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/pages/page1/image", "p.png", img, map[string]string{"format": "heic"}))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/pages/page1/image", "p.png", []byte("not an image"), nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/projects/p1/pages/page1/images", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["count"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/files?path=p1/pages/page1_v3.png", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["removed"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/files?path=p1/pages/page1_v3.png", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["removed"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/files?path=../etc/passwd", nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/projects/p1/pages/page1/images", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["deleted"])
}

func TestMaterialFlow(t *testing.T) {
	r := newTestRouter(t, 0)
	img := pngBytes(t)

	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/materials/upload", "chart.png", img, nil))
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	projMat := decode(t, rec)
	assert.Equal(t, "p1", projMat["project_id"])
	assert.Equal(t, "/files/p1/materials/chart_1700000000000.png", projMat["url"])

	rec = serve(r, multipartRequest(t, nethttp.MethodPost, "/api/projects/p1/materials/upload?project_id=none", "logo.png", img, nil))
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	globalMat := decode(t, rec)
	assert.Nil(t, globalMat["project_id"])
	assert.Equal(t, "materials/logo_1700000000000.png", globalMat["relative_path"])

	rec = serve(r, multipartRequest(t, nethttp.MethodPost, "/api/materials/upload", "notes.txt", []byte("x"), nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_file_type", errorCode(t, rec))

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/projects/p1/materials", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/projects/p1/materials?project_id=none", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/materials", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["count"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/files/materials/logo_1700000000000.png", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	id, _ := globalMat["id"].(string)
	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/materials/"+id, nil))
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["file_removed"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/materials/"+id, nil))
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/materials/not-a-uuid", nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/projects/p1/files", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.Equal(t, true, res["files_removed"])
	assert.Equal(t, float64(1), res["materials_deleted"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/materials", nil))
	assert.Equal(t, float64(0), decode(t, rec)["count"])
}

func TestGeneratedMaterialAndGet(t *testing.T) {
	r := newTestRouter(t, 0)

	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/materials/generated?project_id=p2", "render.png", pngBytes(t), nil))
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	m := decode(t, rec)
	assert.Equal(t, "p2", m["project_id"])
	assert.Equal(t, "p2/materials/material_1700000000000.png", m["relative_path"])

	id, _ := m["id"].(string)
	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/materials/"+id, nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, m["url"], decode(t, rec)["url"])

	rec = serve(r, multipartRequest(t, nethttp.MethodPost, "/api/materials/generated", "junk.png", []byte("not an image"), nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = serve(r, multipartRequest(t, nethttp.MethodPost, "/api/materials/generated?project_id=all", "render.png", pngBytes(t), nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/api/materials/00000000-0000-0000-0000-000000000001", nil))
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
	assert.Equal(t, "material_not_found", errorCode(t, rec))
}

func TestUploadTooLarge(t *testing.T) {
	r := newTestRouter(t, 512)
	big := bytes.Repeat([]byte("x"), 4096)
	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/user-templates/t1", "big.png", big, nil))
	assert.Equal(t, nethttp.StatusRequestEntityTooLarge, rec.Code)
}

func TestUserTemplateRoutes(t *testing.T) {
	r := newTestRouter(t, 0)
	rec := serve(r, multipartRequest(t, nethttp.MethodPost, "/api/user-templates/t1", "corp.jpg", []byte("jpg"), nil))
	require.Equal(t, nethttp.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/files/user-templates/t1/template.jpg", decode(t, rec)["url"])

	rec = serve(r, httptest.NewRequest(nethttp.MethodGet, "/files/user-templates/t1/template.jpg", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	got, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "jpg", string(got))

	rec = serve(r, httptest.NewRequest(nethttp.MethodDelete, "/api/user-templates/t1", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["removed"])
}
