package handler

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg-server/cache"
	"github.com/chaos-io/rembg-server/config"
	"github.com/chaos-io/rembg-server/middleware"
	"github.com/chaos-io/rembg-server/model"
	"github.com/chaos-io/rembg-server/pipeline"
	"github.com/chaos-io/rembg-server/util"
)

type RemoveHandler struct {
	cfg   *config.Config
	pipe  *pipeline.Pipeline
	cache *cache.ResultCache // nil 表示缓存关闭
}

func NewRemoveHandler(cfg *config.Config, pipe *pipeline.Pipeline, resultCache *cache.ResultCache) *RemoveHandler {
	return &RemoveHandler{
		cfg:   cfg,
		pipe:  pipe,
		cache: resultCache,
	}
}

// Remove 处理 POST /remove-background
func (h *RemoveHandler) Remove(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "no_image",
			Message: "please upload an image file",
		})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "no_image",
			Message: "please select an image file",
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "no_image",
			Message: "failed to read uploaded file",
		})
		return
	}
	defer func() {
		_ = src.Close()
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "no_image",
			Message: "failed to read uploaded file",
		})
		return
	}

	colorSpec := c.PostForm("background_color")

	util.Logger.Info("processing image",
		zap.String("request_id", middleware.RequestID(c)),
		zap.String("filename", file.Filename),
		zap.Int64("size", file.Size),
		zap.String("background_color", colorSpec))

	ctx := c.Request.Context()
	if h.cfg.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Server.RequestTimeout)
		defer cancel()
	}

	cacheKey := util.BytesMD5(data) + ":" + strings.ToLower(colorSpec)
	if cached := h.cacheGet(ctx, cacheKey); cached != nil {
		util.Logger.Info("cache hit", zap.String("key", cacheKey))
		h.serveImage(c, file.Filename, "image/png", cached)
		return
	}

	up := pipeline.Upload{
		Filename: file.Filename,
		Size:     file.Size,
		Data:     data,
	}
	result, err := h.pipe.Process(ctx, up, colorSpec)
	if err != nil {
		kind := pipeline.KindOf(err)
		// 完整错误只进日志，响应里不带内部细节
		util.Logger.Error("failed to process image",
			zap.String("request_id", middleware.RequestID(c)),
			zap.String("kind", string(kind)),
			zap.Error(err))
		c.JSON(statusFor(kind), model.ErrorResponse{
			Error:   string(kind),
			Message: pipeline.MessageOf(err),
		})
		return
	}

	h.cacheSet(ctx, cacheKey, result.Data)
	h.serveImage(c, file.Filename, result.ContentType, result.Data)
}

func (h *RemoveHandler) serveImage(c *gin.Context, filename, contentType string, data []byte) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	c.Header("Content-Disposition", `attachment; filename="removed_bg_`+name+`.png"`)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, contentType, data)
}

func (h *RemoveHandler) cacheGet(ctx context.Context, key string) []byte {
	if h.cache == nil {
		return nil
	}
	data, err := h.cache.Get(ctx, key)
	if err != nil {
		util.Logger.Warn("failed to get cache", zap.Error(err))
		return nil
	}
	return data
}

func (h *RemoveHandler) cacheSet(ctx context.Context, key string, data []byte) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, data); err != nil {
		util.Logger.Warn("failed to set cache", zap.Error(err))
	}
}

// statusFor 错误分类到 HTTP 状态码
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case pipeline.KindUnsupportedFormat,
		pipeline.KindCorruptImage,
		pipeline.KindDimensionOutOfRange,
		pipeline.KindInvalidColor:
		return http.StatusBadRequest
	case pipeline.KindSegmentationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
