package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Module struct {
	store *Store
}

// RegisterRoutes mounts the read-only history endpoints.
func RegisterRoutes(router gin.IRouter, store *Store) *Module {
	module := &Module{store: store}

	group := router.Group("/api/generations")
	group.GET("", module.handleList)
	group.GET("/:id", module.handleGet)

	return module
}

func (m *Module) handleList(c *gin.Context) {
	if !m.store.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation history is not configured"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	items, err := m.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list generations"})
		return
	}
	if items == nil {
		items = []Generation{}
	}
	c.JSON(http.StatusOK, gin.H{"generations": items})
}

func (m *Module) handleGet(c *gin.Context) {
	gen, err := m.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load generation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generation": gen})
}
