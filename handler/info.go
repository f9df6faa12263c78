package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/rembg-server/config"
	"github.com/chaos-io/rembg-server/model"
)

const serviceName = "background-removal-api"

type InfoHandler struct {
	cfg     *config.Config
	version string
}

func NewInfoHandler(cfg *config.Config, version string) *InfoHandler {
	return &InfoHandler{cfg: cfg, version: version}
}

func (h *InfoHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Service: serviceName,
	})
}

func (h *InfoHandler) APIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, model.APIInfoResponse{
		Service: "Background Removal API",
		Version: h.version,
		Endpoints: map[string]model.EndpointInfo{
			"POST /remove-background": {
				Description: "Remove background from uploaded image",
				Parameters: map[string]string{
					"image":            "Image file (required)",
					"background_color": "Hex color like #FF0000 (optional)",
				},
			},
		},
		SupportedFormats: h.cfg.Upload.AllowedFormats,
	})
}
