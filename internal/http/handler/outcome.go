package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskbridge.app/bridge/internal/store"
)

const defaultOutcomeLimit = 50

type OutcomeHandler struct {
	outcomes store.OutcomeStore
}

func NewOutcomeHandler(outcomes store.OutcomeStore) *OutcomeHandler {
	return &OutcomeHandler{outcomes: outcomes}
}

// ListByProject returns the most recent workflow outcomes for a project,
// newest first.
func (h *OutcomeHandler) ListByProject(c *gin.Context) {
	projectID := c.Param("project_id")

	limit := int64(defaultOutcomeLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	outcomes, err := h.outcomes.ListByProject(c.Request.Context(), projectID, int32(limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list outcomes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}
