package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskbridge.app/bridge/common/llm"
	"taskbridge.app/bridge/common/logger"
	"taskbridge.app/bridge/internal/model"
)

// PlanResponse is the structured decomposition of a project manifest.
type PlanResponse struct {
	Epics []model.Epic `json:"epics" jsonschema_description:"Epics broken out of the manifest, each with stories and tasks"`
}

var planSchema = llm.GenerateSchema[PlanResponse]()

// Planner turns a free-text project manifest into an epic/story/task plan.
type Planner struct {
	llm llm.Client
}

func NewPlanner(client llm.Client) *Planner {
	return &Planner{llm: client}
}

// Plan decomposes the manifest. Retries with exponential backoff (1s, 2s, 4s)
// to ride out transient rate limits; planning is preparatory work and should
// fail after 3 attempts rather than block indefinitely.
func (p *Planner) Plan(ctx context.Context, manifest string) (*PlanResponse, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "bridge.brain.planner",
	})

	if strings.TrimSpace(manifest) == "" {
		return &PlanResponse{}, nil
	}

	var response PlanResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = p.llm.Chat(ctx, llm.Request{
			SystemPrompt: planSystemPrompt,
			UserPrompt:   "Project Manifest:\n\n" + manifest,
			SchemaName:   "plan_response",
			Schema:       planSchema,
			MaxTokens:    4096,
			Temperature:  llm.Temp(0.5),
		}, &response)

		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return nil, fmt.Errorf("plan generation: %w", err)
		}
		slog.WarnContext(ctx, "plan generation retry",
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("plan generation after 3 attempts: %w", err)
	}

	var stories, tasks int
	for _, e := range response.Epics {
		stories += len(e.Stories)
		for _, s := range e.Stories {
			tasks += len(s.Tasks)
		}
	}
	slog.InfoContext(ctx, "plan generated",
		"epics", len(response.Epics),
		"stories", stories,
		"tasks", tasks)

	return &response, nil
}

const planSystemPrompt = `You are a project management assistant.

Break the given project manifest into EPICS, STORIES, and TASKS. Each epic is a major area of work, each story a clear user goal, each task an actionable item for developers with the skills it requires.`

// MatchAssignees greedily assigns each task to the member with the largest
// case-insensitive skill overlap. Tasks with no overlapping member stay
// unassigned.
func MatchAssignees(tasks []model.Task, members []model.Member) {
	for i := range tasks {
		best := -1
		bestOverlap := 0
		for j, m := range members {
			overlap := skillOverlap(tasks[i].RequiredSkills, m.Skills)
			if overlap > bestOverlap {
				bestOverlap = overlap
				best = j
			}
		}
		if best >= 0 {
			tasks[i].Assignee = members[best].AccountID
		}
	}
}

func skillOverlap(required, offered []string) int {
	have := make(map[string]bool, len(offered))
	for _, s := range offered {
		have[strings.ToLower(s)] = true
	}
	count := 0
	for _, s := range required {
		if have[strings.ToLower(s)] {
			count++
		}
	}
	return count
}

// Populate creates a plan's epics, stories and sub-tasks in the tracker in
// dependency order. One IDCache spans the whole run: internal ids fetched for
// the fallback shape are reused within the batch and discarded with it.
func (e *Executor) Populate(ctx context.Context, projectKey string, plan *PlanResponse) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "bridge.brain.populate",
	})

	cache := make(IDCache)
	start := time.Now()
	var created int

	for _, epic := range plan.Epics {
		epicFields := issueFields(projectKey, epic.Title, epic.Description, "Epic", "")
		epicKey, err := e.createStandalone(ctx, projectKey, epicFields)
		if err != nil {
			return fmt.Errorf("creating epic %q: %w", epic.Title, err)
		}
		created++

		for _, story := range epic.Stories {
			storyFields := issueFields(projectKey, story.Title, story.Description, "Story", "")
			storyKey, err := e.CreateLinkedIssue(ctx, storyFields, epicKey, cache)
			if err != nil {
				return fmt.Errorf("creating story %q under %s: %w", story.Title, epicKey, err)
			}
			created++

			for _, task := range story.Tasks {
				taskFields := issueFields(projectKey, task.Title, task.Description, "Sub-task", task.Assignee)
				if _, err := e.CreateLinkedIssue(ctx, taskFields, storyKey, cache); err != nil {
					return fmt.Errorf("creating task %q under %s: %w", task.Title, storyKey, err)
				}
				created++
			}
		}
	}

	slog.InfoContext(ctx, "project populated",
		"project_key", projectKey,
		"issues_created", created,
		"latency_ms", time.Since(start).Milliseconds())

	return nil
}

func issueFields(projectKey, summary, description, issueType, assignee string) map[string]any {
	fields := map[string]any{
		"project":     map[string]string{"key": projectKey},
		"summary":     summary,
		"description": description,
		"issuetype":   map[string]string{"name": issueType},
	}
	if assignee != "" {
		fields["assignee"] = map[string]string{"id": assignee}
	}
	return fields
}
