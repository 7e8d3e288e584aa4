package brain_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"taskbridge.app/bridge/common/llm"
	"taskbridge.app/bridge/internal/brain"
	"taskbridge.app/bridge/internal/model"
)

func userMessage(content string) []model.ConversationEvent {
	return []model.ConversationEvent{{
		ConversationID: "conv-1",
		ProjectID:      "proj-1",
		Role:           "user",
		Content:        content,
		Timestamp:      time.Now(),
	}}
}

var _ = Describe("DecodeAction", func() {
	DescribeTable("decodes model replies into the action grammar",
		func(raw string, want brain.ActionType) {
			Expect(brain.DecodeAction(raw).Type).To(Equal(want))
		},
		Entry("plain action object", `{"action":"find_issue","params":{"user_text":"login bug"}}`, brain.ActionTypeFindIssue),
		Entry("code-fenced reply", "```json\n{\"action\":\"update_status\",\"params\":{\"new_status\":\"Done\"}}\n```", brain.ActionTypeUpdateStatus),
		Entry("leading prose before the object", `Sure! Here is the action: {"action":"create_issue","params":{"title":"fix login"}}`, brain.ActionTypeCreateIssue),
		Entry("none action", `{"action":"none"}`, brain.ActionTypeNone),
		Entry("unknown action type", `{"action":"delete_everything"}`, brain.ActionTypeNone),
		Entry("malformed json", `{"action": find_issue}`, brain.ActionTypeNone),
		Entry("no json at all", `I could not decide.`, brain.ActionTypeNone),
		Entry("empty reply", ``, brain.ActionTypeNone),
		Entry("unbalanced braces", `{"action":"find_issue"`, brain.ActionTypeNone),
		Entry("braces inside string values", `{"action":"create_issue","params":{"title":"use {} literals"}}`, brain.ActionTypeCreateIssue),
	)

	It("carries params through for typed parsing", func() {
		action := brain.DecodeAction(`{"action":"update_status","params":{"issue_key":"PROJ-7","new_status":"Done"}}`)
		params, err := brain.ParseActionData[brain.UpdateStatusParams](action)
		Expect(err).NotTo(HaveOccurred())
		Expect(params.IssueKey).To(Equal("PROJ-7"))
		Expect(params.NewStatus).To(Equal("Done"))
	})
})

var _ = Describe("Classifier", func() {
	var (
		ctx    context.Context
		client *mockLLM
		c      *brain.Classifier
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockLLM{}
		c = brain.NewClassifier(client)
	})

	It("returns None for an empty window without calling the model", func() {
		action, err := c.Classify(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(action).To(Equal(brain.None))
		Expect(client.completeCalls).To(BeZero())
	})

	It("returns None for assistant messages without calling the model", func() {
		window := userMessage("please move it")
		window[0].Role = "assistant"

		action, err := c.Classify(ctx, window)
		Expect(err).NotTo(HaveOccurred())
		Expect(action).To(Equal(brain.None))
		Expect(client.completeCalls).To(BeZero())
	})

	It("classifies the last user message through the model", func() {
		client.completeFn = func(ctx context.Context, req llm.Request) (string, *llm.Response, error) {
			return `{"action":"update_status","params":{"new_status":"In Progress","user_text":"started the login fix"}}`, nil, nil
		}

		action, err := c.Classify(ctx, userMessage("started the login fix"))
		Expect(err).NotTo(HaveOccurred())
		Expect(action.Type).To(Equal(brain.ActionTypeUpdateStatus))
		Expect(client.completeCalls).To(Equal(1))
	})

	It("degrades an out-of-grammar reply to None instead of failing", func() {
		client.completeFn = func(ctx context.Context, req llm.Request) (string, *llm.Response, error) {
			return "I think you should take a break.", nil, nil
		}

		action, err := c.Classify(ctx, userMessage("hello there"))
		Expect(err).NotTo(HaveOccurred())
		Expect(action).To(Equal(brain.None))
	})
})
