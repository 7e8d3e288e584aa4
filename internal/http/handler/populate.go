package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbridge.app/bridge/internal/brain"
	"taskbridge.app/bridge/internal/model"
)

// PopulateHandler turns a project manifest into a full epic/story/task tree
// on the tracker. Planning is synchronous; callers should expect the request
// to take as long as the LLM plus the tracker round-trips do.
type PopulateHandler struct {
	planner  *brain.Planner
	executor *brain.Executor
}

func NewPopulateHandler(planner *brain.Planner, executor *brain.Executor) *PopulateHandler {
	return &PopulateHandler{planner: planner, executor: executor}
}

type populateRequest struct {
	Manifest string         `json:"manifest" binding:"required"`
	Members  []model.Member `json:"members"`
}

func (h *PopulateHandler) Populate(c *gin.Context) {
	ctx := c.Request.Context()
	projectKey := c.Param("project_id")

	var req populateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.planner.Plan(ctx, req.Manifest)
	if err != nil {
		slog.ErrorContext(ctx, "manifest planning failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "planning failed"})
		return
	}

	if len(req.Members) > 0 {
		for i := range plan.Epics {
			for j := range plan.Epics[i].Stories {
				brain.MatchAssignees(plan.Epics[i].Stories[j].Tasks, req.Members)
			}
		}
	}

	if err := h.executor.Populate(ctx, projectKey, plan); err != nil {
		slog.ErrorContext(ctx, "project population failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "population failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"project_key": projectKey,
		"epics":       len(plan.Epics),
		"dry_run":     h.executor.DryRun(),
	})
}
