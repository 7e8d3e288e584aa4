package watcher

import (
	"sync"
	"time"
)

// MonitorState is what the ops surface reports for one watched project.
type MonitorState struct {
	ProjectID  string    `json:"project_id"`
	TrackerKey string    `json:"tracker_key"`
	StartedAt  time.Time `json:"started_at"`
	EventCount int64     `json:"event_count"`
	LastEvent  time.Time `json:"last_event,omitempty"`
}

// Registry tracks which projects the watcher is actively handling. Projects
// not in the registry have their events skipped even when a tracker link
// exists, so stopping a monitor is an immediate mute.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*MonitorState
}

func NewRegistry() *Registry {
	return &Registry{monitors: make(map[string]*MonitorState)}
}

// Start registers a project. Restarting an active monitor resets its
// counters.
func (r *Registry) Start(projectID, trackerKey string) MonitorState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := &MonitorState{
		ProjectID:  projectID,
		TrackerKey: trackerKey,
		StartedAt:  time.Now().UTC(),
	}
	r.monitors[projectID] = state
	return *state
}

// Stop removes a project. Returns false if it was not being monitored.
func (r *Registry) Stop(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.monitors[projectID]; !ok {
		return false
	}
	delete(r.monitors, projectID)
	return true
}

// Active returns the monitor for a project, or false when the project is not
// being watched.
func (r *Registry) Active(projectID string) (MonitorState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.monitors[projectID]
	if !ok {
		return MonitorState{}, false
	}
	return *state, true
}

// Touch bumps the event counter for a project if it is monitored.
func (r *Registry) Touch(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.monitors[projectID]; ok {
		state.EventCount++
		state.LastEvent = time.Now().UTC()
	}
}

// List snapshots all active monitors.
func (r *Registry) List() []MonitorState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]MonitorState, 0, len(r.monitors))
	for _, state := range r.monitors {
		states = append(states, *state)
	}
	return states
}
