package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/rembg-server/config"
	"github.com/chaos-io/rembg-server/middleware"
	"github.com/chaos-io/rembg-server/model"
	"github.com/chaos-io/rembg-server/pipeline"
)

// 测试用小阈值，免得构造大图
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Upload.MaxSize = 1 << 20
	cfg.Upload.MinDimension = 10
	cfg.Upload.MaxDimension = 128
	cfg.Upload.ProcessingBound = 64
	return cfg
}

type stubRemover struct {
	err   error
	calls int
}

func (r *stubRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}

	// 上半透明，下半保留
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if y >= b.Dy()/2 {
				out.SetNRGBA(x, y, color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA))
			}
		}
	}
	return out, nil
}

func setupRouter(cfg *config.Config, remover pipeline.Remover) *gin.Engine {
	gin.SetMode(gin.TestMode)

	pipe := pipeline.New(cfg.Upload.Limits(), remover)
	removeHandler := NewRemoveHandler(cfg, pipe, nil)
	infoHandler := NewInfoHandler(cfg, "test")

	r := gin.New()
	r.Use(middleware.WithRequestID())
	r.GET("/health", infoHandler.Health)
	r.GET("/api-info", infoHandler.APIInfo)
	r.POST("/remove-background", removeHandler.Remove)
	return r
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func encodePNGImage(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func postImage(t *testing.T, r *gin.Engine, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartUpload(t, filename, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/remove-background", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRemove_Success(t *testing.T) {
	remover := &stubRemover{}
	r := setupRouter(testConfig(), remover)

	data := encodePNGImage(t, 16, 16, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	w := postImage(t, r, "photo.png", data, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `removed_bg_photo.png`)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, 1, remover.calls)

	decoded, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 16, decoded.Bounds().Dx())
}

func TestRemove_WithBackgroundColor(t *testing.T) {
	r := setupRouter(testConfig(), &stubRemover{})

	data := encodePNGImage(t, 16, 16, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	w := postImage(t, r, "photo.png", data, map[string]string{"background_color": "#00FF00"})

	require.Equal(t, http.StatusOK, w.Code)

	decoded, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	// 上半被抠掉，合成后应是纯绿
	rr, gg, bb, aa := decoded.At(8, 2).RGBA()
	assert.EqualValues(t, 0, rr>>8)
	assert.EqualValues(t, 255, gg>>8)
	assert.EqualValues(t, 0, bb>>8)
	assert.EqualValues(t, 255, aa>>8)
}

func TestRemove_MissingFile(t *testing.T) {
	r := setupRouter(testConfig(), &stubRemover{})

	w := postImage(t, r, "", nil, map[string]string{"background_color": "#FFFFFF"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no_image", decodeError(t, w).Error)
}

func TestRemove_UnsupportedFormat(t *testing.T) {
	remover := &stubRemover{}
	r := setupRouter(testConfig(), remover)

	data := encodePNGImage(t, 16, 16, color.NRGBA{A: 255})
	w := postImage(t, r, "anim.gif", data, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_format", decodeError(t, w).Error)
	assert.Zero(t, remover.calls)
}

func TestRemove_PayloadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxSize = 64
	r := setupRouter(cfg, &stubRemover{})

	data := encodePNGImage(t, 16, 16, color.NRGBA{A: 255})
	w := postImage(t, r, "photo.png", data, nil)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, w).Error)
}

func TestRemove_InvalidColor(t *testing.T) {
	remover := &stubRemover{}
	r := setupRouter(testConfig(), remover)

	data := encodePNGImage(t, 16, 16, color.NRGBA{A: 255})
	w := postImage(t, r, "photo.png", data, map[string]string{"background_color": "blue"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "invalid_color", resp.Error)
	assert.Zero(t, remover.calls)
}

func TestRemove_SegmentationFailed(t *testing.T) {
	r := setupRouter(testConfig(), &stubRemover{err: errors.New("backend offline")})

	data := encodePNGImage(t, 16, 16, color.NRGBA{A: 255})
	w := postImage(t, r, "photo.png", data, nil)

	require.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "segmentation_failed", resp.Error)
	// 内部错误细节不能出现在响应里
	assert.NotContains(t, resp.Message, "backend offline")
}

func TestHealth(t *testing.T) {
	r := setupRouter(testConfig(), &stubRemover{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "background-removal-api", resp.Service)
}

func TestAPIInfo(t *testing.T) {
	r := setupRouter(testConfig(), &stubRemover{})

	req := httptest.NewRequest(http.MethodGet, "/api-info", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.APIInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.SupportedFormats, "png")
	assert.Contains(t, resp.Endpoints, "POST /remove-background")
}
