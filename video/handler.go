package video

import (
	"errors"
	"net/http"
	"strings"

	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Module struct {
	service *Service
	log     *zap.SugaredLogger
}

type downloadRequest struct {
	VideoURL string `json:"video_url"`
}

// RegisterRoutes mounts the generation and download endpoints under /api.
func RegisterRoutes(router gin.IRouter, service *Service, log *zap.SugaredLogger) *Module {
	module := &Module{service: service, log: logger.OrNop(log)}

	api := router.Group("/api")
	api.POST("/generate-videos", module.handleGenerateVideos)
	api.POST("/download-video", module.handleDownloadVideo)

	return module
}

func (m *Module) handleGenerateVideos(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenerationResult{Error: "invalid request payload"})
		return
	}

	m.log.Infow("starting video generation",
		"page_url", req.PageURL,
		"character_image_url", req.CharacterImageURL,
		"custom_prompt", strings.TrimSpace(req.Prompt) != "",
		"product_info", req.ProductInfo != nil)

	result, err := m.service.Generate(c.Request.Context(), req)
	if err != nil {
		m.log.Errorw("video generation failed", "page_url", req.PageURL, "error", err)
		var policy *ContentPolicyError
		switch {
		case errors.Is(err, ErrMissingInput), errors.Is(err, ErrNoCharacterImage):
			c.JSON(http.StatusBadRequest, GenerationResult{Error: err.Error()})
		case errors.As(err, &policy):
			c.JSON(http.StatusBadRequest, GenerationResult{
				Error:       policy.Error(),
				ErrorType:   "content_policy_violation",
				Suggestions: ContentPolicySuggestions,
			})
		case errors.Is(err, ErrDisabled):
			c.JSON(http.StatusServiceUnavailable, GenerationResult{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, GenerationResult{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (m *Module) handleDownloadVideo(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.VideoURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_url is required"})
		return
	}

	body, length, err := m.service.OpenVideo(c.Request.Context(), strings.TrimSpace(req.VideoURL))
	if err != nil {
		m.log.Errorw("video download failed", "video_url", req.VideoURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, length, "video/mp4", body, map[string]string{
		"Content-Disposition": `attachment; filename="` + DownloadFilename + `"`,
	})
}
