package brain_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"taskbridge.app/bridge/internal/brain"
	"taskbridge.app/bridge/internal/model"
)

var _ = Describe("Resolver", func() {
	var (
		ctx      context.Context
		trk      *mockTracker
		embedder *mockEmbedder
		r        *brain.Resolver
	)

	BeforeEach(func() {
		ctx = context.Background()
		trk = &mockTracker{}
		embedder = &mockEmbedder{}
		r = brain.NewResolver(trk, embedder)
	})

	Describe("keyword path", func() {
		It("returns the highest-scoring keyword hit without embedding", func() {
			trk.searchFn = func(ctx context.Context, jql string, fields []string, limit int) ([]model.IssueCandidate, error) {
				Expect(jql).To(ContainSubstring(`project = "PROJ"`))
				return []model.IssueCandidate{
					{Key: "PROJ-1", Summary: "Unrelated cleanup"},
					{Key: "PROJ-2", Summary: "Fix login page", Description: "login error on submit"},
				}, nil
			}

			key, err := r.Resolve(ctx, "PROJ", "the login error")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("PROJ-2"))
			Expect(embedder.calls).To(BeZero())
			Expect(trk.searchCalls).To(Equal(1))
		})

		It("short-circuits on any keyword hit, even a weak one", func() {
			trk.searchFn = func(ctx context.Context, jql string, fields []string, limit int) ([]model.IssueCandidate, error) {
				return []model.IssueCandidate{{Key: "PROJ-9", Summary: "something else"}}, nil
			}

			key, err := r.Resolve(ctx, "PROJ", "the login error")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("PROJ-9"))
			Expect(embedder.calls).To(BeZero())
		})

		It("propagates search failures instead of treating them as no match", func() {
			trk.searchFn = func(ctx context.Context, jql string, fields []string, limit int) ([]model.IssueCandidate, error) {
				return nil, errors.New("tracker down")
			}

			_, err := r.Resolve(ctx, "PROJ", "the login error")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, brain.ErrNoMatch)).To(BeFalse())
		})
	})

	Describe("semantic fallback", func() {
		// Keyword search returns nothing; the second search feeds the
		// embedding comparison.
		semanticSetup := func(candidates []model.IssueCandidate) {
			trk.searchFn = func(ctx context.Context, jql string, fields []string, limit int) ([]model.IssueCandidate, error) {
				if strings.Contains(jql, "ORDER BY updated") {
					return candidates, nil
				}
				return nil, nil
			}
		}

		It("accepts the best candidate above the similarity threshold", func() {
			semanticSetup([]model.IssueCandidate{
				{Key: "PROJ-3", Summary: "Payment flow rework"},
				{Key: "PROJ-4", Summary: "Checkout bug"},
			})
			embedder.embedFn = func(ctx context.Context, text string) ([]float64, error) {
				switch {
				case strings.Contains(text, "Checkout"):
					return []float64{0.9, 0.1}, nil
				case strings.Contains(text, "Payment"):
					return []float64{0.1, 0.9}, nil
				default: // the query
					return []float64{1, 0}, nil
				}
			}

			key, err := r.Resolve(ctx, "PROJ", "did the checkout thing")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("PROJ-4"))
		})

		It("returns ErrNoMatch when the best similarity is below threshold", func() {
			semanticSetup([]model.IssueCandidate{{Key: "PROJ-5", Summary: "Database migration"}})
			embedder.embedFn = func(ctx context.Context, text string) ([]float64, error) {
				if strings.Contains(text, "Database") {
					return []float64{0, 1}, nil
				}
				return []float64{1, 0.2}, nil
			}

			_, err := r.Resolve(ctx, "PROJ", "something entirely different")
			Expect(errors.Is(err, brain.ErrNoMatch)).To(BeTrue())
		})

		It("returns ErrNoMatch for a project with no issues", func() {
			semanticSetup(nil)

			_, err := r.Resolve(ctx, "PROJ", "anything")
			Expect(errors.Is(err, brain.ErrNoMatch)).To(BeTrue())
			Expect(embedder.calls).To(BeZero())
		})
	})

	It("returns ErrNoMatch with no tracker configured", func() {
		r = brain.NewResolver(nil, embedder)
		_, err := r.Resolve(ctx, "PROJ", "anything")
		Expect(errors.Is(err, brain.ErrNoMatch)).To(BeTrue())
	})
})
