package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskbridge.app/bridge/common/llm"
	"taskbridge.app/bridge/common/logger"
	"taskbridge.app/bridge/internal/tracker"
)

// ErrNoMatch is a normal terminal outcome: no issue fits the reference well
// enough. Callers must treat it differently from a failed search.
var ErrNoMatch = errors.New("no matching issue")

const (
	keywordSearchLimit     = 10
	semanticCandidateLimit = 50

	// semanticThreshold is the minimum cosine similarity for a semantic
	// match to be trusted. A policy constant, not a derived value.
	semanticThreshold = 0.55
)

var candidateFields = []string{"key", "summary", "description"}

// Resolver maps free-text issue references to a concrete issue key. Keyword
// search runs first in full; the embedding path only runs when keyword search
// returns nothing at all, because a keyword match is trusted over a semantic
// one whenever it exists.
type Resolver struct {
	tracker  tracker.Client
	embedder llm.Embedder
	synonyms SynonymTable
}

func NewResolver(trackerClient tracker.Client, embedder llm.Embedder) *Resolver {
	return &Resolver{
		tracker:  trackerClient,
		embedder: embedder,
		synonyms: DefaultSynonyms,
	}
}

// Resolve returns the best-matching issue key in the project for queryText.
// ErrNoMatch means resolution ran and found nothing adequate; any other error
// means the search itself failed.
func (r *Resolver) Resolve(ctx context.Context, projectKey, queryText string) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "bridge.brain.resolver",
	})

	if r.tracker == nil {
		return "", fmt.Errorf("%w: no tracker configured", ErrNoMatch)
	}

	tokens := r.synonyms.Expand(Tokenize(queryText))
	slog.DebugContext(ctx, "query tokenized", "tokens", tokens)

	if len(tokens) > 0 {
		key, found, err := r.resolveLexical(ctx, projectKey, tokens)
		if err != nil {
			return "", err
		}
		if found {
			return key, nil
		}
	}

	return r.resolveSemantic(ctx, projectKey, queryText)
}

func (r *Resolver) resolveLexical(ctx context.Context, projectKey string, tokens []string) (string, bool, error) {
	predicates := make([]string, len(tokens))
	for i, tok := range tokens {
		predicates[i] = fmt.Sprintf("text ~ %q", tok)
	}
	jql := fmt.Sprintf("project = %q AND (%s)", projectKey, strings.Join(predicates, " OR "))

	candidates, err := r.tracker.Search(ctx, jql, candidateFields, keywordSearchLimit)
	if err != nil {
		return "", false, fmt.Errorf("keyword search: %w", err)
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	// Max lexical score wins; first-seen order breaks ties. Any keyword hit
	// short-circuits resolution - no semantic fallthrough even on a low score.
	best := candidates[0]
	bestScore := LexicalScore(tokens, best.SearchText())
	for _, c := range candidates[1:] {
		if score := LexicalScore(tokens, c.SearchText()); score > bestScore {
			best = c
			bestScore = score
		}
	}

	slog.InfoContext(ctx, "keyword match",
		"issue_key", best.Key,
		"score", bestScore,
		"candidates", len(candidates))

	return best.Key, true, nil
}

func (r *Resolver) resolveSemantic(ctx context.Context, projectKey, queryText string) (string, error) {
	jql := fmt.Sprintf("project = %q ORDER BY updated DESC", projectKey)
	candidates, err := r.tracker.Search(ctx, jql, candidateFields, semanticCandidateLimit)
	if err != nil {
		return "", fmt.Errorf("semantic candidate fetch: %w", err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: project %s has no issues", ErrNoMatch, projectKey)
	}

	start := time.Now()
	queryVec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	// Candidate embeddings are recomputed per call. Freshness matters more
	// than cost at this scale; summaries change under us.
	var bestKey string
	var bestSim float64
	for _, c := range candidates {
		vec, err := r.embedder.Embed(ctx, c.SearchText())
		if err != nil {
			return "", fmt.Errorf("embedding candidate %s: %w", c.Key, err)
		}
		if sim := CosineSimilarity(queryVec, vec); sim > bestSim {
			bestSim = sim
			bestKey = c.Key
		}
	}

	slog.InfoContext(ctx, "semantic search completed",
		"best_key", bestKey,
		"best_similarity", bestSim,
		"candidates", len(candidates),
		"latency_ms", time.Since(start).Milliseconds())

	if bestSim < semanticThreshold {
		return "", fmt.Errorf("%w: best similarity %.2f below threshold", ErrNoMatch, bestSim)
	}
	return bestKey, nil
}

var _ IssueResolver = (*Resolver)(nil)

// IssueResolver is what the dispatcher needs from resolution.
type IssueResolver interface {
	Resolve(ctx context.Context, projectKey, queryText string) (string, error)
}
