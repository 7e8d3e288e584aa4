package model

// Plan types for project populate: an LLM breaks a project manifest into
// epics, stories and sub-tasks which are then created in the tracker.

type Epic struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Stories     []Story `json:"stories"`
}

type Story struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tasks       []Task `json:"tasks"`
}

type Task struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	RequiredSkills []string `json:"required_skills"`

	// Filled in by assignee matching, empty when nobody fits.
	Assignee string `json:"assignee,omitempty"`
}

// Member is a project member considered during assignee matching.
type Member struct {
	AccountID string   `json:"account_id"`
	Email     string   `json:"email"`
	Skills    []string `json:"skills"`
}
