package brain_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"taskbridge.app/bridge/internal/brain"
	"taskbridge.app/bridge/internal/model"
	"taskbridge.app/bridge/internal/tracker"
)

var _ = Describe("ProgressStatus", func() {
	DescribeTable("maps progress language to a target status",
		func(text, want string) {
			Expect(brain.ProgressStatus(text)).To(Equal(want))
		},
		Entry("done cue", "I'm done with the login fix", model.StatusDone),
		Entry("finished cue", "finished it yesterday", model.StatusDone),
		Entry("completed cue", "that task is Completed", model.StatusDone),
		Entry("implemented cue", "implemented the retry logic", model.StatusDone),
		Entry("started work", "started working on the search bug", model.StatusInProgress),
		Entry("no cue at all", "looking into it", model.StatusInProgress),
		Entry("cue inside another word is ignored", "the abandonede case", model.StatusInProgress),
	)
})

var _ = Describe("Executor", func() {
	var (
		ctx context.Context
		trk *mockTracker
		e   *brain.Executor
	)

	BeforeEach(func() {
		ctx = context.Background()
		trk = &mockTracker{}
		e = brain.NewExecutor(trk, "")
	})

	Describe("Transition", func() {
		BeforeEach(func() {
			trk.getTransitionsFn = func(ctx context.Context, issueKey string) ([]model.Transition, error) {
				return []model.Transition{
					{ID: "11", Name: "To Do"},
					{ID: "21", Name: "In Progress"},
					{ID: "31", Name: "Done"},
				}, nil
			}
		})

		It("matches the target status case-insensitively", func() {
			var appliedID string
			trk.applyTransitionFn = func(ctx context.Context, issueKey, transitionID string) error {
				appliedID = transitionID
				return nil
			}

			result := e.Transition(ctx, "PROJ-1", "done")
			Expect(result.Status).To(Equal(model.OutcomeSuccess))
			Expect(appliedID).To(Equal("31"))
		})

		It("fails without mutating when no transition reaches the target", func() {
			result := e.Transition(ctx, "PROJ-1", "Blocked")
			Expect(result.Status).To(Equal(model.OutcomeError))
			Expect(result.Data).To(HaveKey("available_transitions"))
			Expect(trk.applyCalls).To(BeZero())
		})

		It("reports apply failures as error results", func() {
			trk.applyTransitionFn = func(ctx context.Context, issueKey, transitionID string) error {
				return errors.New("permission denied")
			}

			result := e.Transition(ctx, "PROJ-1", "Done")
			Expect(result.Status).To(Equal(model.OutcomeError))
		})
	})

	Describe("CreateLinkedIssue", func() {
		fields := map[string]any{"summary": "a story"}

		It("retries once by internal id when the linkage shape is rejected", func() {
			var payloads []tracker.CreatePayload
			trk.createIssueFn = func(ctx context.Context, payload tracker.CreatePayload) (string, error) {
				payloads = append(payloads, payload)
				if len(payloads) == 1 {
					return "", &tracker.APIError{StatusCode: 400, Body: `{"errors":{"parent":"cannot be set"}}`}
				}
				return "PROJ-20", nil
			}
			trk.getInternalIDFn = func(ctx context.Context, issueKey string) (string, error) {
				return "10042", nil
			}

			key, err := e.CreateLinkedIssue(ctx, fields, "PROJ-10", brain.IDCache{})
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("PROJ-20"))
			Expect(payloads).To(HaveLen(2))
			Expect(payloads[0].Parent.Key).To(Equal("PROJ-10"))
			Expect(payloads[1].Parent.ID).To(Equal("10042"))
		})

		It("does not retry errors that are not schema rejections", func() {
			trk.createIssueFn = func(ctx context.Context, payload tracker.CreatePayload) (string, error) {
				return "", &tracker.APIError{StatusCode: 403, Body: "forbidden"}
			}

			_, err := e.CreateLinkedIssue(ctx, fields, "PROJ-10", brain.IDCache{})
			Expect(err).To(HaveOccurred())
			Expect(trk.createCalls).To(Equal(1))
			Expect(trk.internalIDCalls).To(BeZero())
		})

		It("caches internal id lookups across a batch", func() {
			trk.createIssueFn = func(ctx context.Context, payload tracker.CreatePayload) (string, error) {
				if payload.Parent != nil && payload.Parent.Key != "" {
					return "", &tracker.APIError{StatusCode: 400, Body: "parent cannot be set"}
				}
				return "PROJ-21", nil
			}
			trk.getInternalIDFn = func(ctx context.Context, issueKey string) (string, error) {
				return "10042", nil
			}

			cache := brain.IDCache{}
			_, err := e.CreateLinkedIssue(ctx, fields, "PROJ-10", cache)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.CreateLinkedIssue(ctx, fields, "PROJ-10", cache)
			Expect(err).NotTo(HaveOccurred())
			Expect(trk.internalIDCalls).To(Equal(1))
		})

		It("routes the parent through the epic link field when configured", func() {
			e = brain.NewExecutor(trk, "customfield_10011")
			var payload tracker.CreatePayload
			trk.createIssueFn = func(ctx context.Context, p tracker.CreatePayload) (string, error) {
				payload = p
				return "PROJ-22", nil
			}

			_, err := e.CreateLinkedIssue(ctx, fields, "PROJ-10", brain.IDCache{})
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Parent).To(BeNil())
			Expect(payload.Fields).To(HaveKeyWithValue("customfield_10011", "PROJ-10"))
		})
	})

	Describe("dry-run mode", func() {
		BeforeEach(func() {
			e = brain.NewExecutor(nil, "")
		})

		It("reports success without touching the tracker", func() {
			result := e.Transition(ctx, "PROJ-1", "Done")
			Expect(result.Status).To(Equal(model.OutcomeSuccess))
			Expect(result.Data).To(HaveKeyWithValue("dry_run", true))
		})

		It("returns a synthetic key for created issues", func() {
			key, err := e.CreateIssue(ctx, "PROJ", brain.CreateIssueParams{Title: "a task"})
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("PROJ-DRY"))
		})
	})

	Describe("UpdateIssue", func() {
		It("skips the call entirely when no fields changed", func() {
			called := false
			trk.updateIssueFn = func(ctx context.Context, issueKey string, fields map[string]any) error {
				called = true
				return nil
			}

			Expect(e.UpdateIssue(ctx, brain.UpdateIssueParams{IssueKey: "PROJ-1"})).To(Succeed())
			Expect(called).To(BeFalse())
		})

		It("sends only the populated fields", func() {
			var sent map[string]any
			trk.updateIssueFn = func(ctx context.Context, issueKey string, fields map[string]any) error {
				sent = fields
				return nil
			}

			err := e.UpdateIssue(ctx, brain.UpdateIssueParams{IssueKey: "PROJ-1", Summary: "new summary"})
			Expect(err).NotTo(HaveOccurred())
			Expect(sent).To(HaveKeyWithValue("summary", "new summary"))
			Expect(sent).NotTo(HaveKey("description"))
		})
	})
})
