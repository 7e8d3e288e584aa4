package brain_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"taskbridge.app/bridge/internal/brain"
	"taskbridge.app/bridge/internal/model"
	"taskbridge.app/bridge/internal/tracker"
)

var _ = Describe("MatchAssignees", func() {
	It("assigns each task to the member with the largest skill overlap", func() {
		tasks := []model.Task{
			{Title: "API endpoint", RequiredSkills: []string{"go", "postgres"}},
			{Title: "Landing page", RequiredSkills: []string{"react", "css"}},
		}
		members := []model.Member{
			{AccountID: "m1", Skills: []string{"React", "CSS", "Design"}},
			{AccountID: "m2", Skills: []string{"Go", "Postgres", "Redis"}},
		}

		brain.MatchAssignees(tasks, members)

		Expect(tasks[0].Assignee).To(Equal("m2"))
		Expect(tasks[1].Assignee).To(Equal("m1"))
	})

	It("leaves tasks unassigned when nobody overlaps", func() {
		tasks := []model.Task{{Title: "ML pipeline", RequiredSkills: []string{"pytorch"}}}
		members := []model.Member{{AccountID: "m1", Skills: []string{"go"}}}

		brain.MatchAssignees(tasks, members)

		Expect(tasks[0].Assignee).To(BeEmpty())
	})
})

var _ = Describe("Populate", func() {
	It("creates the epic, story and task tree through one id cache", func() {
		trk := &mockTracker{}
		var created []tracker.CreatePayload
		trk.createIssueFn = func(ctx context.Context, payload tracker.CreatePayload) (string, error) {
			created = append(created, payload)
			switch payload.Fields["issuetype"].(map[string]string)["name"] {
			case "Epic":
				return "PROJ-1", nil
			case "Story":
				return "PROJ-2", nil
			default:
				return "PROJ-3", nil
			}
		}

		e := brain.NewExecutor(trk, "")
		plan := &brain.PlanResponse{Epics: []model.Epic{{
			Title: "Auth",
			Stories: []model.Story{{
				Title: "Login",
				Tasks: []model.Task{{Title: "Form validation", Assignee: "m1"}},
			}},
		}}}

		Expect(e.Populate(context.Background(), "PROJ", plan)).To(Succeed())
		Expect(created).To(HaveLen(3))
	})

	It("creates nothing in dry-run mode without failing", func() {
		e := brain.NewExecutor(nil, "")
		plan := &brain.PlanResponse{Epics: []model.Epic{{
			Title:   "Auth",
			Stories: []model.Story{{Title: "Login"}},
		}}}

		Expect(e.Populate(context.Background(), "PROJ", plan)).To(Succeed())
	})
})
