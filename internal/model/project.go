package model

import "time"

// ProjectLink ties a conversation-side project to the tracker project its
// issues live under. Events for unlinked projects are skipped.
type ProjectLink struct {
	ProjectID  string    `json:"project_id"`
	TrackerKey string    `json:"tracker_key"`
	CreatedAt  time.Time `json:"created_at"`
}
