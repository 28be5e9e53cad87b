package schema

import "time"

// CellEventType describes cell collection changes.
type CellEventType string

const (
	// CellEventLoaded indicates the collection was replaced by a snapshot.
	CellEventLoaded CellEventType = "loaded"
	// CellEventAdded indicates a cell was inserted.
	CellEventAdded CellEventType = "added"
	// CellEventRemoved indicates a cell was deleted.
	CellEventRemoved CellEventType = "removed"
	// CellEventMoved indicates a cell changed position.
	CellEventMoved CellEventType = "moved"
	// CellEventUpdated indicates a cell's source changed.
	CellEventUpdated CellEventType = "updated"
	// CellEventOutputs indicates a cell's output list or count changed.
	CellEventOutputs CellEventType = "outputs"
)

// CellEvent represents a change to a cell or the cell order.
type CellEvent struct {
	Type   CellEventType
	CellID CellID
	Index  int
	Cell   *Cell
}

// ExecutionEventType describes execution lifecycle signals for the UI.
type ExecutionEventType string

const (
	// ExecutionEventQueued indicates a run request was queued behind the
	// kernel's current execution.
	ExecutionEventQueued ExecutionEventType = "queued"
	// ExecutionEventStarted indicates an execution began.
	ExecutionEventStarted ExecutionEventType = "started"
	// ExecutionEventCompleted indicates an execution finished, ok or error.
	ExecutionEventCompleted ExecutionEventType = "completed"
	// ExecutionEventInterrupted indicates a kernel-wide interrupt landed.
	ExecutionEventInterrupted ExecutionEventType = "interrupted"
)

// ExecutionEvent represents an execution state change. Duration is only set
// on completion events.
type ExecutionEvent struct {
	Type           ExecutionEventType
	CellID         CellID
	State          ExecutionState
	ExecutionCount *int
	Duration       time.Duration
	Failed         bool
}

// ConnEvent represents a gateway connection state change.
type ConnEvent struct {
	State   ConnState
	Attempt int
	Err     string
}

// SaveEvent reports the outcome of a save_notebook request.
type SaveEvent struct {
	Path string
	Err  string
}
