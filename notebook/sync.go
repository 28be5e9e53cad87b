package notebook

import (
	"context"

	"github.com/DannyMang/more-compute-sub000/schema"
	"pkt.systems/pslog"
)

// Synchronizer replicates structural edits between the local store and the
// kernel gateway. Three write disciplines apply: add and delete are confirmed
// writes (the store mutates only when the gateway echoes the change), source
// updates are fire-and-forget (local first, replication best effort), and
// reorder is optimistic (local first, reconciled by the next authoritative
// snapshot).
type Synchronizer struct {
	store *Store
	conn  Conn
	sink  EventSink
	log   pslog.Logger
}

// NewSynchronizer constructs a synchronizer bound to a store and connection.
func NewSynchronizer(store *Store, conn Conn, sink EventSink, logger pslog.Logger) *Synchronizer {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Synchronizer{store: store, conn: conn, sink: sink, log: logger}
}

// AddCell requests insertion of a new cell. The store is untouched until the
// gateway confirms with cell_added.
func (s *Synchronizer) AddCell(ctx context.Context, index int, cellType schema.CellType, source string) error {
	if index < 0 || index > s.store.Len() {
		return schema.ErrInvalidIndex
	}
	return s.conn.Send(ctx, schema.MsgAddCell, schema.AddCellPayload{
		Index:    index,
		CellType: cellType,
		Source:   source,
	})
}

// DeleteCell requests deletion of a cell. The store is untouched until the
// gateway confirms with cell_deleted.
func (s *Synchronizer) DeleteCell(ctx context.Context, id schema.CellID) error {
	index, ok := s.store.IndexOf(id)
	if !ok {
		return schema.ErrCellNotFound
	}
	return s.conn.Send(ctx, schema.MsgDeleteCell, schema.DeleteCellPayload{CellIndex: index})
}

// UpdateSource applies an edit locally and replicates it best effort. The
// local buffer is authoritative for source text; a failed replication is
// logged, not surfaced.
func (s *Synchronizer) UpdateSource(ctx context.Context, id schema.CellID, source string) error {
	index, ok := s.store.IndexOf(id)
	if !ok {
		return schema.ErrCellNotFound
	}
	if err := s.store.UpdateSource(id, source); err != nil {
		return err
	}
	if err := s.conn.Send(ctx, schema.MsgUpdateCell, schema.UpdateCellPayload{CellIndex: index, Source: source}); err != nil {
		s.log.Warn("source replication failed", "cell", id, "err", err)
	}
	return nil
}

// MoveCell reorders a cell optimistically. There is no per-move confirmation;
// a divergent gateway answers with notebook_updated and the snapshot wins.
func (s *Synchronizer) MoveCell(ctx context.Context, id schema.CellID, to int) error {
	from, ok := s.store.IndexOf(id)
	if !ok {
		return schema.ErrCellNotFound
	}
	if err := s.store.Move(id, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if err := s.conn.Send(ctx, schema.MsgMoveCell, schema.MoveCellPayload{FromIndex: from, ToIndex: to}); err != nil {
		s.log.Warn("move replication failed", "cell", id, "err", err)
	}
	return nil
}

// Save requests a server-side save of the notebook file.
func (s *Synchronizer) Save(ctx context.Context, path string) error {
	return s.conn.Send(ctx, schema.MsgSaveNotebook, schema.SaveNotebookPayload{FilePath: path})
}

// ResetKernel requests a kernel restart.
func (s *Synchronizer) ResetKernel(ctx context.Context) error {
	return s.conn.Send(ctx, schema.MsgResetKernel, nil)
}

// RequestSnapshot asks the gateway for a fresh authoritative snapshot. Called
// after every successful (re)connect so local state is rebuilt from the
// gateway rather than guessed.
func (s *Synchronizer) RequestSnapshot(ctx context.Context) error {
	return s.conn.Send(ctx, schema.MsgRequestNotebook, nil)
}

// HandleNotebookData replaces the store from an authoritative snapshot.
func (s *Synchronizer) HandleNotebookData(payload schema.NotebookDataPayload) {
	cells := make([]schema.Cell, 0, len(payload.Cells))
	for _, wire := range payload.Cells {
		cells = append(cells, wireCellToCell(wire))
	}
	s.store.Load(cells)
	s.log.Debug("notebook snapshot applied", "cells", len(cells))
}

// HandleCellAdded applies a confirmed insertion.
func (s *Synchronizer) HandleCellAdded(payload schema.CellAddedPayload) {
	index := payload.Index
	if index < 0 || index > s.store.Len() {
		index = s.store.Len()
	}
	cell := wireCellToCell(payload.Cell)
	if err := s.store.Insert(cell, index); err != nil {
		if err == schema.ErrDuplicateCellID {
			cell.ID = ""
			err = s.store.Insert(cell, index)
		}
		if err != nil {
			s.log.Warn("cell_added apply failed", "index", payload.Index, "err", err)
		}
	}
}

// HandleCellDeleted applies a confirmed deletion.
func (s *Synchronizer) HandleCellDeleted(payload schema.CellDeletedPayload) {
	id, ok := s.store.IDAt(payload.CellIndex)
	if !ok {
		s.log.Warn("cell_deleted for unknown index dropped", "index", payload.CellIndex)
		return
	}
	if err := s.store.Remove(id); err != nil {
		s.log.Warn("cell_deleted apply failed", "cell", id, "err", err)
	}
}

// HandleSaveSuccess reports a completed save.
func (s *Synchronizer) HandleSaveSuccess(payload schema.SaveSuccessPayload) {
	s.log.Info("notebook saved", "path", payload.FilePath)
	if s.sink != nil {
		s.sink.OnSaveEvent(schema.SaveEvent{Path: payload.FilePath})
	}
}

// HandleSaveError reports a failed save.
func (s *Synchronizer) HandleSaveError(payload schema.SaveErrorPayload) {
	s.log.Warn("notebook save failed", "err", payload.Error)
	if s.sink != nil {
		s.sink.OnSaveEvent(schema.SaveEvent{Err: payload.Error})
	}
}

func wireCellToCell(wire schema.WireCell) schema.Cell {
	cell := schema.Cell{
		ID:     schema.CellID(wire.ID),
		Type:   wire.CellType,
		Source: wire.Source,
	}
	if cell.Type == "" {
		cell.Type = schema.CellTypeCode
	}
	if wire.ExecutionCount != nil {
		count := *wire.ExecutionCount
		cell.ExecutionCount = &count
	}
	return cell
}
