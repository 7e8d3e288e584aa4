package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"taskbridge.app/bridge/internal/http/handler"
	"taskbridge.app/bridge/internal/model"
	"taskbridge.app/bridge/internal/watcher"
)

var _ = Describe("MonitorHandler", func() {
	var (
		router   *gin.Engine
		registry *watcher.Registry
		projects *mockProjectStore
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		registry = watcher.NewRegistry()
		projects = &mockProjectStore{}
		h := handler.NewMonitorHandler(registry, projects)

		router = gin.New()
		router.GET("/monitors", h.List)
		router.GET("/monitors/:project_id", h.Get)
		router.POST("/monitors", h.Start)
		router.DELETE("/monitors/:project_id", h.Stop)
	})

	Describe("Start", func() {
		It("persists the link and registers the monitor", func() {
			var linked *model.ProjectLink
			projects.linkFn = func(ctx context.Context, link *model.ProjectLink) error {
				linked = link
				return nil
			}

			body, _ := json.Marshal(map[string]string{
				"project_id":  "proj-1",
				"tracker_key": "PROJ",
			})
			rec := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/monitors", bytes.NewReader(body))
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(linked).NotTo(BeNil())
			Expect(linked.TrackerKey).To(Equal("PROJ"))
			_, active := registry.Active("proj-1")
			Expect(active).To(BeTrue())
		})

		It("rejects a request missing the tracker key", func() {
			body, _ := json.Marshal(map[string]string{"project_id": "proj-1"})
			rec := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/monitors", bytes.NewReader(body))
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("does not register the monitor when persistence fails", func() {
			projects.linkFn = func(ctx context.Context, link *model.ProjectLink) error {
				return errors.New("db down")
			}

			body, _ := json.Marshal(map[string]string{
				"project_id":  "proj-1",
				"tracker_key": "PROJ",
			})
			rec := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/monitors", bytes.NewReader(body))
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			_, active := registry.Active("proj-1")
			Expect(active).To(BeFalse())
		})
	})

	Describe("Stop", func() {
		It("removes an active monitor", func() {
			registry.Start("proj-1", "PROJ")

			rec := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodDelete, "/monitors/proj-1", nil)
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			_, active := registry.Active("proj-1")
			Expect(active).To(BeFalse())
		})

		It("404s for an unmonitored project", func() {
			rec := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodDelete, "/monitors/ghost", nil)
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Get", func() {
		It("returns monitor state for an active project", func() {
			registry.Start("proj-1", "PROJ")

			rec := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/monitors/proj-1", nil)
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var state watcher.MonitorState
			Expect(json.Unmarshal(rec.Body.Bytes(), &state)).To(Succeed())
			Expect(state.TrackerKey).To(Equal("PROJ"))
		})
	})

	Describe("List", func() {
		It("lists all active monitors", func() {
			registry.Start("proj-1", "PROJ")
			registry.Start("proj-2", "OTHER")

			rec := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/monitors", nil)
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Monitors []watcher.MonitorState `json:"monitors"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Monitors).To(HaveLen(2))
		})
	})
})

var _ = Describe("OutcomeHandler", func() {
	var (
		router   *gin.Engine
		outcomes *mockOutcomeStore
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		outcomes = &mockOutcomeStore{}
		h := handler.NewOutcomeHandler(outcomes)

		router = gin.New()
		router.GET("/projects/:project_id/outcomes", h.ListByProject)
	})

	It("returns outcomes newest first with the default limit", func() {
		outcomes.listByProjectFn = func(ctx context.Context, projectID string, limit int32) ([]model.Outcome, error) {
			Expect(projectID).To(Equal("proj-1"))
			Expect(limit).To(Equal(int32(50)))
			return []model.Outcome{{ActionType: "update_status", Status: model.OutcomeSuccess}}, nil
		}

		rec := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/projects/proj-1/outcomes", nil)
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("update_status"))
	})

	It("honors an explicit limit", func() {
		outcomes.listByProjectFn = func(ctx context.Context, projectID string, limit int32) ([]model.Outcome, error) {
			Expect(limit).To(Equal(int32(5)))
			return nil, nil
		}

		rec := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/projects/proj-1/outcomes?limit=5", nil)
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("rejects a non-numeric limit", func() {
		rec := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/projects/proj-1/outcomes?limit=lots", nil)
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
