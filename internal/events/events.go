package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventPoolStarted is emitted once a pool's workers are running
	EventPoolStarted EventType = "pool_started"
	// EventPoolDraining is emitted when a pool stops accepting tasks and begins draining
	EventPoolDraining EventType = "pool_draining"
	// EventPoolStopped is emitted after every worker of a pool has exited
	EventPoolStopped EventType = "pool_stopped"
	// EventTaskFailed is emitted when a task panics
	EventTaskFailed EventType = "task_failed"
	// EventRunStarted is emitted when a scenario run begins pushing tasks
	EventRunStarted EventType = "run_started"
	// EventRunCompleted is emitted when a scenario run has drained
	EventRunCompleted EventType = "run_completed"
)

// Event represents a pool lifecycle or scenario run event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	PoolID    string    `json:"pool_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Workers     int    `json:"workers,omitempty"`
	Outstanding int    `json:"outstanding,omitempty"`
	Worker      int    `json:"worker,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	Scenario    string `json:"scenario,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewPoolStartedEvent creates a pool started event
func NewPoolStartedEvent(poolID string, workers int) Event {
	return Event{
		Type:      EventPoolStarted,
		Timestamp: time.Now(),
		PoolID:    poolID,
		Data: EventData{
			Workers: workers,
		},
	}
}

// NewPoolDrainingEvent creates a pool draining event carrying the number of
// tasks still outstanding when teardown began
func NewPoolDrainingEvent(poolID string, outstanding int) Event {
	return Event{
		Type:      EventPoolDraining,
		Timestamp: time.Now(),
		PoolID:    poolID,
		Data: EventData{
			Outstanding: outstanding,
		},
	}
}

// NewPoolStoppedEvent creates a pool stopped event
func NewPoolStoppedEvent(poolID string) Event {
	return Event{
		Type:      EventPoolStopped,
		Timestamp: time.Now(),
		PoolID:    poolID,
	}
}

// NewTaskFailedEvent creates a task failed event
func NewTaskFailedEvent(poolID string, worker int, err error) Event {
	return Event{
		Type:      EventTaskFailed,
		Timestamp: time.Now(),
		PoolID:    poolID,
		Data: EventData{
			Worker: worker,
			Error:  errorString(err),
		},
	}
}

// NewRunStartedEvent creates a scenario run started event
func NewRunStartedEvent(poolID, runID, scenario string) Event {
	return Event{
		Type:      EventRunStarted,
		Timestamp: time.Now(),
		PoolID:    poolID,
		Data: EventData{
			RunID:    runID,
			Scenario: scenario,
		},
	}
}

// NewRunCompletedEvent creates a scenario run completed event
func NewRunCompletedEvent(poolID, runID, scenario string, err error) Event {
	return Event{
		Type:      EventRunCompleted,
		Timestamp: time.Now(),
		PoolID:    poolID,
		Data: EventData{
			RunID:    runID,
			Scenario: scenario,
			Error:    errorString(err),
		},
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
