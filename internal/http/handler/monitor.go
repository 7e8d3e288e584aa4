package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbridge.app/bridge/internal/model"
	"taskbridge.app/bridge/internal/store"
	"taskbridge.app/bridge/internal/watcher"
)

// MonitorHandler exposes the watcher's monitor registry: which projects are
// being watched, and start/stop controls. Starting a monitor also persists
// the project-to-tracker link so it survives restarts.
type MonitorHandler struct {
	registry *watcher.Registry
	projects store.ProjectStore
}

func NewMonitorHandler(registry *watcher.Registry, projects store.ProjectStore) *MonitorHandler {
	return &MonitorHandler{registry: registry, projects: projects}
}

type startMonitorRequest struct {
	ProjectID  string `json:"project_id" binding:"required"`
	TrackerKey string `json:"tracker_key" binding:"required"`
}

func (h *MonitorHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"monitors": h.registry.List()})
}

func (h *MonitorHandler) Get(c *gin.Context) {
	projectID := c.Param("project_id")
	state, ok := h.registry.Active(projectID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not monitored"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *MonitorHandler) Start(c *gin.Context) {
	var req startMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link := &model.ProjectLink{
		ProjectID:  req.ProjectID,
		TrackerKey: req.TrackerKey,
	}
	if err := h.projects.Link(c.Request.Context(), link); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist project link"})
		return
	}

	state := h.registry.Start(req.ProjectID, req.TrackerKey)
	c.JSON(http.StatusCreated, state)
}

func (h *MonitorHandler) Stop(c *gin.Context) {
	projectID := c.Param("project_id")
	if !h.registry.Stop(projectID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not monitored"})
		return
	}

	if err := h.projects.Unlink(c.Request.Context(), projectID); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "monitor stopped but unlink failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stopped": projectID})
}
