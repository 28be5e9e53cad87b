package notebook

import (
	"context"
	"errors"
	"sync"

	"github.com/DannyMang/more-compute-sub000/internal/logx"
	"github.com/DannyMang/more-compute-sub000/internal/persist"
	"github.com/DannyMang/more-compute-sub000/schema"
	"pkt.systems/pslog"
)

// engine implements Engine. One mutex serializes caller operations and
// inbound gateway messages; the store and coordinator are plain types that
// rely on this serialization.
type engine struct {
	mu        sync.Mutex
	transport Transport
	persist   *persist.Store
	sink      EventSink
	url       string
	log       pslog.Logger

	store  *Store
	coord  *Coordinator
	sync   *Synchronizer
	closed bool
}

// New constructs an engine from its dependencies.
func New(deps Deps, cfg schema.EngineConfig) (Engine, error) {
	if deps.Transport == nil {
		return nil, errors.New("transport is required")
	}
	cfg, err := schema.NormalizeEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	e := &engine{
		transport: deps.Transport,
		persist:   deps.Persist,
		sink:      deps.EventSink,
		url:       deps.GatewayURL,
		log:       logger,
	}
	e.store = NewStore(cfg.MaxOutputsPerCell, deps.EventSink)
	e.coord = NewCoordinator(e.store, deps.Transport, deps.EventSink, logger)
	e.sync = NewSynchronizer(e.store, deps.Transport, deps.EventSink, logger)
	return e, nil
}

func (e *engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return schema.ErrEngineClosed
	}
	e.restoreSessionLocked()
	e.mu.Unlock()

	e.registerHandlers()
	return e.transport.Connect(ctx)
}

func (e *engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	return e.transport.Close()
}

// restoreSessionLocked loads the persisted snapshot so the client renders
// something before the first authoritative snapshot arrives.
func (e *engine) restoreSessionLocked() {
	if e.persist == nil {
		return
	}
	snapshot, ok, err := e.persist.Load()
	if err != nil {
		e.log.Warn("session restore failed", "err", err)
		return
	}
	if !ok || len(snapshot.Cells) == 0 {
		return
	}
	e.store.Load(snapshot.Cells)
	e.log.Info("session restored", "cells", len(snapshot.Cells))
}

func (e *engine) persistLocked() {
	if e.persist == nil {
		return
	}
	if err := e.persist.Save(persist.SessionSnapshot{GatewayURL: e.url, Cells: e.store.Snapshot()}); err != nil {
		e.log.Warn("session persist failed", "err", err)
	}
}

func (e *engine) registerHandlers() {
	e.transport.Subscribe(schema.MsgNotebookData, func(msg schema.Message) {
		e.handleSnapshot(msg)
	})
	e.transport.Subscribe(schema.MsgNotebookUpdated, func(msg schema.Message) {
		e.handleSnapshot(msg)
	})
	e.transport.Subscribe(schema.MsgCellAdded, func(msg schema.Message) {
		var payload schema.CellAddedPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sync.HandleCellAdded(payload)
		e.persistLocked()
	})
	e.transport.Subscribe(schema.MsgCellDeleted, func(msg schema.Message) {
		var payload schema.CellDeletedPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sync.HandleCellDeleted(payload)
		e.persistLocked()
	})
	e.transport.Subscribe(schema.MsgExecutionStart, func(msg schema.Message) {
		var payload schema.ExecutionStartPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.coord.HandleExecutionStart(payload)
	})
	e.transport.Subscribe(schema.MsgStreamOutput, func(msg schema.Message) {
		var payload schema.StreamOutputPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.coord.HandleStreamOutput(payload)
	})
	e.transport.Subscribe(schema.MsgExecuteResult, func(msg schema.Message) {
		var payload schema.ExecuteResultPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.coord.HandleExecuteResult(payload)
	})
	e.transport.Subscribe(schema.MsgExecutionComplete, func(msg schema.Message) {
		var payload schema.ExecutionCompletePayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.coord.HandleExecutionComplete(context.Background(), payload)
		e.persistLocked()
	})
	e.transport.Subscribe(schema.MsgExecutionError, func(msg schema.Message) {
		var payload schema.ExecutionErrorPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.coord.HandleExecutionError(payload)
	})
	e.transport.Subscribe(schema.MsgExecutionInterrupted, func(msg schema.Message) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.coord.HandleExecutionInterrupted()
	})
	e.transport.Subscribe(schema.MsgKernelReset, func(msg schema.Message) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.coord.HandleKernelReset()
	})
	e.transport.Subscribe(schema.MsgSaveSuccess, func(msg schema.Message) {
		var payload schema.SaveSuccessPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sync.HandleSaveSuccess(payload)
	})
	e.transport.Subscribe(schema.MsgSaveError, func(msg schema.Message) {
		var payload schema.SaveErrorPayload
		if !e.decode(msg, &payload) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.sync.HandleSaveError(payload)
	})
	e.transport.SubscribeState(func(event schema.ConnEvent) {
		e.handleConnEvent(event)
	})
}

func (e *engine) handleSnapshot(msg schema.Message) {
	var payload schema.NotebookDataPayload
	if !e.decode(msg, &payload) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sync.HandleNotebookData(payload)
	e.persistLocked()
}

// handleConnEvent requests a fresh snapshot after every successful connect
// and applies the give-up policy on a terminal disconnect. Reconnect never
// fabricates local state; the store only changes when the snapshot arrives.
func (e *engine) handleConnEvent(event schema.ConnEvent) {
	switch event.State {
	case schema.ConnStateOpen:
		if err := e.sync.RequestSnapshot(context.Background()); err != nil {
			e.log.Warn("snapshot request failed", "err", err)
		}
	case schema.ConnStateDisconnected:
		logx.WithConnState(e.log, event.State).Warn("gateway gave up, failing in-flight executions", "attempts", event.Attempt)
		e.mu.Lock()
		e.coord.HandleConnTerminal()
		e.mu.Unlock()
	}
	if e.sink != nil {
		e.sink.OnConnEvent(event)
	}
}

func (e *engine) decode(msg schema.Message, into any) bool {
	if err := msg.Decode(into); err != nil {
		e.log.Warn("malformed payload dropped", "type", msg.Type, "err", err)
		return false
	}
	return true
}

func (e *engine) AddCell(ctx context.Context, index int, cellType schema.CellType, source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	return e.sync.AddCell(ctx, index, cellType, source)
}

func (e *engine) DeleteCell(ctx context.Context, id schema.CellID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	return e.sync.DeleteCell(ctx, id)
}

func (e *engine) UpdateSource(ctx context.Context, id schema.CellID, source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	if err := e.sync.UpdateSource(ctx, id, source); err != nil {
		return err
	}
	e.persistLocked()
	return nil
}

func (e *engine) MoveCell(ctx context.Context, id schema.CellID, to int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	if err := e.sync.MoveCell(ctx, id, to); err != nil {
		return err
	}
	e.persistLocked()
	return nil
}

func (e *engine) RunCell(ctx context.Context, id schema.CellID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	return e.coord.Run(ctx, id)
}

func (e *engine) InterruptKernel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	return e.coord.Interrupt(ctx)
}

func (e *engine) ResetKernel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	return e.sync.ResetKernel(ctx)
}

func (e *engine) SaveNotebook(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	return e.sync.Save(ctx, path)
}

func (e *engine) RequestSnapshot(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return schema.ErrEngineClosed
	}
	return e.sync.RequestSnapshot(ctx)
}

func (e *engine) Reconnect(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return schema.ErrEngineClosed
	}
	e.mu.Unlock()
	return e.transport.Connect(ctx)
}

func (e *engine) Cells() []schema.Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

func (e *engine) Cell(id schema.CellID) (schema.Cell, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(id)
}

func (e *engine) ExecutionState(id schema.CellID) schema.ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coord.StateOf(id)
}

func (e *engine) Executing() []schema.CellID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coord.Executing()
}

func (e *engine) ConnState() schema.ConnState {
	return e.transport.State()
}
