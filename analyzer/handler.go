package analyzer

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

type pageRequest struct {
	PageURL string `json:"page_url"`
}

// RegisterRoutes mounts the page analysis endpoints under /api.
func RegisterRoutes(router gin.IRouter, service *Service, log *zap.SugaredLogger) *Module {
	module := &Module{service: service, log: logger.OrNop(log)}

	api := router.Group("/api")
	api.POST("/analyze-page", module.handleAnalyzePage)
	api.POST("/extract-images", module.handleExtractImages)

	return module
}

func bindPageURL(c *gin.Context) (string, bool) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return "", false
	}
	pageURL := strings.TrimSpace(req.PageURL)
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_url is required"})
		return "", false
	}
	return pageURL, true
}

func (m *Module) handleAnalyzePage(c *gin.Context) {
	pageURL, ok := bindPageURL(c)
	if !ok {
		return
	}

	result, err := m.service.Analyze(c.Request.Context(), pageURL)
	if err != nil {
		m.log.Errorw("page analysis failed", "page_url", pageURL, "error", err)
		if errors.Is(err, ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Page analysis failed: " + err.Error()})
		return
	}

	m.log.Infow("page analysis complete", "page_url", pageURL, "prompt_length", len([]rune(result.GeneratedPrompt)))
	c.JSON(http.StatusOK, result)
}

func (m *Module) handleExtractImages(c *gin.Context) {
	pageURL, ok := bindPageURL(c)
	if !ok {
		return
	}

	images, err := m.service.ExtractImages(c.Request.Context(), pageURL)
	if err != nil {
		m.log.Errorw("image extraction failed", "page_url", pageURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if images.LogoURL == "" && images.CharacterURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No images found with specified selectors"})
		return
	}

	c.JSON(http.StatusOK, images)
}
