package notebook

import (
	"context"
	"time"

	"github.com/DannyMang/more-compute-sub000/internal/logx"
	"github.com/DannyMang/more-compute-sub000/schema"
	"pkt.systems/pslog"
)

// ExecutionRecord tracks one in-flight execution.
type ExecutionRecord struct {
	CellID      schema.CellID
	ExecutionID schema.ExecutionID
	StartedAt   time.Time
	State       schema.ExecutionState
}

// Coordinator drives per-cell execution state: run, stream, complete,
// interrupt. The remote kernel executes one cell at a time, so the
// coordinator keeps a single active execution and an explicit FIFO queue for
// runs requested while the kernel is busy.
type Coordinator struct {
	store *Store
	conn  Conn
	sink  EventSink
	log   pslog.Logger
	now   func() time.Time

	records map[schema.CellID]*ExecutionRecord
	queue   []schema.CellID
	active  schema.CellID
	acc     *accumulator
	// draining marks a kernel still chewing on a deleted cell; its remaining
	// events are dropped and the queue resumes on its completion event.
	draining bool
}

// NewCoordinator constructs a coordinator bound to a store and connection.
func NewCoordinator(store *Store, conn Conn, sink EventSink, logger pslog.Logger) *Coordinator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	coord := &Coordinator{
		store:   store,
		conn:    conn,
		sink:    sink,
		log:     logger,
		now:     time.Now,
		records: make(map[schema.CellID]*ExecutionRecord),
	}
	store.SetObserver(coord)
	return coord
}

// Run submits a cell for execution. Run and stop are one toggle: calling Run
// on a cell that is already Running issues a kernel-wide interrupt instead.
func (c *Coordinator) Run(ctx context.Context, id schema.CellID) error {
	cell, ok := c.store.Get(id)
	if !ok {
		return schema.ErrCellNotFound
	}
	if cell.Type != schema.CellTypeCode {
		return schema.ErrNotExecutable
	}
	if record := c.records[id]; record != nil {
		if record.State == schema.ExecStateRunning {
			return c.Interrupt(ctx)
		}
		return schema.ErrCellBusy
	}
	if c.active != "" || c.draining {
		c.records[id] = &ExecutionRecord{CellID: id, StartedAt: c.now(), State: schema.ExecStateQueued}
		c.queue = append(c.queue, id)
		c.log.Debug("execution queued", "cell", id, "depth", len(c.queue))
		c.emit(schema.ExecutionEvent{Type: schema.ExecutionEventQueued, CellID: id, State: schema.ExecStateQueued})
		return nil
	}
	return c.dispatch(ctx, id)
}

// Interrupt requests a kernel-wide interrupt. The kernel has no per-cell
// cancellation; whatever is running is halted.
func (c *Coordinator) Interrupt(ctx context.Context) error {
	return c.conn.Send(ctx, schema.MsgInterruptKernel, nil)
}

func (c *Coordinator) dispatch(ctx context.Context, id schema.CellID) error {
	index, ok := c.store.IndexOf(id)
	if !ok {
		return schema.ErrCellNotFound
	}
	cell, _ := c.store.Get(id)
	if err := c.conn.Send(ctx, schema.MsgExecuteCell, schema.ExecuteCellPayload{CellIndex: index, Source: cell.Source}); err != nil {
		delete(c.records, id)
		return err
	}
	if err := c.store.ClearOutputs(id); err != nil {
		return err
	}
	record := c.records[id]
	if record == nil {
		record = &ExecutionRecord{CellID: id}
		c.records[id] = record
	}
	record.StartedAt = c.now()
	record.State = schema.ExecStateRunning
	c.active = id
	c.acc = newAccumulator(c.store, id)
	logx.WithCell(c.log, id).Info("execution started", "index", index)
	c.emit(schema.ExecutionEvent{Type: schema.ExecutionEventStarted, CellID: id, State: schema.ExecStateRunning})
	return nil
}

func (c *Coordinator) dispatchNext(ctx context.Context) {
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		if c.records[next] == nil {
			continue
		}
		if err := c.dispatch(ctx, next); err != nil {
			c.log.Warn("queued execution dispatch failed", "cell", next, "err", err)
			delete(c.records, next)
			continue
		}
		return
	}
}

// HandleExecutionStart confirms the kernel picked up the active execution.
func (c *Coordinator) HandleExecutionStart(payload schema.ExecutionStartPayload) {
	record := c.activeRecord()
	if record == nil {
		c.log.Debug("execution_start with no active record dropped")
		return
	}
	record.State = schema.ExecStateRunning
	if payload.ExecutionID != "" {
		record.ExecutionID = schema.ExecutionID(payload.ExecutionID)
	}
}

// HandleStreamOutput forwards a chunk to the accumulator. State is unchanged.
func (c *Coordinator) HandleStreamOutput(payload schema.StreamOutputPayload) {
	if c.acc == nil {
		c.log.Debug("stream_output with no active execution dropped")
		return
	}
	if err := c.acc.AddStream(payload.Stream, payload.Text); err != nil {
		c.log.Warn("stream output apply failed", "cell", c.active, "err", err)
	}
}

// HandleExecuteResult forwards a mime result to the accumulator.
func (c *Coordinator) HandleExecuteResult(payload schema.ExecuteResultPayload) {
	if c.acc == nil {
		c.log.Debug("execute_result with no active execution dropped")
		return
	}
	if err := c.acc.AddResult(payload.Data); err != nil {
		c.log.Warn("result apply failed", "cell", c.active, "err", err)
	}
}

// HandleExecutionError appends a structured error output for the active
// execution. The kernel still emits a completion event afterwards.
func (c *Coordinator) HandleExecutionError(payload schema.ExecutionErrorPayload) {
	if c.acc == nil {
		c.log.Debug("execution_error with no active execution dropped")
		return
	}
	if err := c.acc.AddError(wireErrorToOutput(payload.Error)); err != nil {
		c.log.Warn("error apply failed", "cell", c.active, "err", err)
	}
}

// HandleExecutionComplete closes out the active execution: the execution
// count is set from the kernel's acknowledgement, outputs are finalized, the
// cell returns to Idle, and the next queued run is dispatched.
func (c *Coordinator) HandleExecutionComplete(ctx context.Context, payload schema.ExecutionCompletePayload) {
	if c.active == "" {
		if c.draining {
			c.draining = false
			c.dispatchNext(ctx)
			return
		}
		c.log.Debug("execution_complete with no active record dropped")
		return
	}
	id := c.active
	record := c.records[id]
	record.State = schema.ExecStateCompleting

	failed := payload.Status == schema.StatusError
	if failed && c.acc != nil && !c.acc.Errored() && payload.Error != nil {
		if err := c.acc.AddError(wireErrorToOutput(*payload.Error)); err != nil {
			c.log.Warn("trailing error apply failed", "cell", id, "err", err)
		}
	}

	var countPtr *int
	if payload.ExecutionCount > 0 {
		applied, err := c.store.SetExecutionCount(id, payload.ExecutionCount)
		if err != nil {
			c.log.Warn("execution count apply failed", "cell", id, "err", err)
		} else if applied {
			count := payload.ExecutionCount
			countPtr = &count
		}
	}

	duration := c.now().Sub(record.StartedAt)
	if payload.ExecutionTime > 0 {
		duration = time.Duration(payload.ExecutionTime * float64(time.Second))
	}

	execID := record.ExecutionID
	delete(c.records, id)
	c.active = ""
	c.acc = nil
	logx.WithExecution(logx.WithCell(c.log, id), execID).Info("execution complete",
		"status", payload.Status, "count", payload.ExecutionCount, "duration_ms", duration.Milliseconds())
	c.emit(schema.ExecutionEvent{
		Type:           schema.ExecutionEventCompleted,
		CellID:         id,
		State:          schema.ExecStateIdle,
		ExecutionCount: countPtr,
		Duration:       duration,
		Failed:         failed,
	})
	c.dispatchNext(ctx)
}

// HandleExecutionInterrupted applies a kernel-wide interrupt: every Running
// cell gets one synthetic interrupt error output and returns to Idle with its
// execution count untouched. Queued runs are dropped without an error.
func (c *Coordinator) HandleExecutionInterrupted() {
	for id, record := range c.records {
		if record.State == schema.ExecStateRunning {
			errOut := schema.ErrorOutput{
				Name:           "KeyboardInterrupt",
				Message:        "execution interrupted by user",
				Classification: schema.ClassInterrupt,
			}
			if err := c.store.AppendOutput(id, schema.NewErrorOutput(errOut)); err != nil {
				c.log.Warn("interrupt output apply failed", "cell", id, "err", err)
			}
		}
		delete(c.records, id)
		c.emit(schema.ExecutionEvent{Type: schema.ExecutionEventInterrupted, CellID: id, State: schema.ExecStateIdle})
	}
	c.queue = nil
	c.active = ""
	c.acc = nil
	c.draining = false
	c.log.Info("kernel interrupt applied")
}

// HandleKernelReset discards all in-flight records and the queue. Outputs and
// execution counts are left as they were.
func (c *Coordinator) HandleKernelReset() {
	for id := range c.records {
		delete(c.records, id)
		c.emit(schema.ExecutionEvent{Type: schema.ExecutionEventInterrupted, CellID: id, State: schema.ExecStateIdle})
	}
	c.queue = nil
	c.active = ""
	c.acc = nil
	c.draining = false
	c.log.Info("kernel reset applied")
}

// HandleConnTerminal applies the give-up policy: when the connection manager
// exhausts its retries, every in-flight execution is failed with a
// connection-lost error instead of staying "executing" forever. While retries
// remain, records stay Running and a completion arriving after reconnect
// still lands.
func (c *Coordinator) HandleConnTerminal() {
	for id, record := range c.records {
		if record.State == schema.ExecStateRunning {
			errOut := schema.ErrorOutput{
				Name:           "ConnectionError",
				Message:        "connection to kernel lost",
				Classification: schema.ClassConnection,
				Suggestions:    []string{"reconnect and re-run the cell"},
			}
			if err := c.store.AppendOutput(id, schema.NewErrorOutput(errOut)); err != nil {
				c.log.Warn("connection-lost output apply failed", "cell", id, "err", err)
			}
		}
		delete(c.records, id)
		c.emit(schema.ExecutionEvent{Type: schema.ExecutionEventInterrupted, CellID: id, State: schema.ExecStateIdle, Failed: true})
	}
	c.queue = nil
	c.active = ""
	c.acc = nil
	c.draining = false
	c.log.Warn("in-flight executions failed after disconnect")
}

// CellRemoved implements StoreObserver: a deleted cell's record is discarded
// so no further event for that id is applied.
func (c *Coordinator) CellRemoved(id schema.CellID) {
	record := c.records[id]
	if record == nil {
		return
	}
	delete(c.records, id)
	for i, queued := range c.queue {
		if queued == id {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	if c.active == id {
		// The kernel is still executing the deleted cell; drop its remaining
		// events and resume the queue when its completion arrives.
		c.active = ""
		c.acc = nil
		c.draining = true
	}
	c.log.Debug("execution record discarded", "cell", id)
}

// CellMoved implements StoreObserver. Records are keyed by id, so reorder
// needs no bookkeeping.
func (c *Coordinator) CellMoved(id schema.CellID, from, to int) {}

// Executing returns the ids of cells currently Running, for gating global
// interrupt shortcuts and run/stop toggles.
func (c *Coordinator) Executing() []schema.CellID {
	ids := make([]schema.CellID, 0, 1)
	for id, record := range c.records {
		if record.State == schema.ExecStateRunning {
			ids = append(ids, id)
		}
	}
	return ids
}

// StateOf returns a cell's execution state.
func (c *Coordinator) StateOf(id schema.CellID) schema.ExecutionState {
	record := c.records[id]
	if record == nil {
		return schema.ExecStateIdle
	}
	return record.State
}

func (c *Coordinator) activeRecord() *ExecutionRecord {
	if c.active == "" {
		return nil
	}
	return c.records[c.active]
}

func (c *Coordinator) emit(event schema.ExecutionEvent) {
	if c.sink != nil {
		c.sink.OnExecutionEvent(event)
	}
}

func wireErrorToOutput(wire schema.WireError) schema.ErrorOutput {
	return schema.ErrorOutput{
		Name:      wire.Name,
		Message:   wire.Message,
		Traceback: wire.Traceback,
	}
}
