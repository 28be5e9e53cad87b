package notebook

import (
	"context"

	"github.com/DannyMang/more-compute-sub000/schema"
)

// Engine is the client-side notebook state engine. It owns the authoritative
// local cell collection, drives executions against the remote kernel, and
// replicates structural edits through the gateway connection.
//
// All methods are safe for concurrent use. Inbound gateway messages and
// caller operations are serialized on one internal mutex, so observers always
// see a consistent collection.
type Engine interface {
	// Start restores any persisted session, wires the inbound message
	// handlers, and connects to the gateway.
	Start(ctx context.Context) error
	// Close shuts the gateway connection down. The engine cannot be reused.
	Close() error

	// AddCell requests insertion of a cell; the store mutates on confirmation.
	AddCell(ctx context.Context, index int, cellType schema.CellType, source string) error
	// DeleteCell requests deletion of a cell; the store mutates on
	// confirmation.
	DeleteCell(ctx context.Context, id schema.CellID) error
	// UpdateSource edits a cell's text locally and replicates it best effort.
	UpdateSource(ctx context.Context, id schema.CellID, source string) error
	// MoveCell reorders a cell optimistically.
	MoveCell(ctx context.Context, id schema.CellID, to int) error

	// RunCell submits a cell for execution, or interrupts the kernel when the
	// cell is already running.
	RunCell(ctx context.Context, id schema.CellID) error
	// InterruptKernel requests a kernel-wide interrupt.
	InterruptKernel(ctx context.Context) error
	// ResetKernel requests a kernel restart.
	ResetKernel(ctx context.Context) error

	// SaveNotebook requests a server-side save; the outcome arrives as a
	// SaveEvent.
	SaveNotebook(ctx context.Context, path string) error
	// RequestSnapshot asks the gateway for a fresh authoritative snapshot.
	RequestSnapshot(ctx context.Context) error
	// Reconnect dials the gateway again after a terminal disconnect.
	Reconnect(ctx context.Context) error

	// Cells returns deep copies of all cells in order.
	Cells() []schema.Cell
	// Cell returns a deep copy of one cell.
	Cell(id schema.CellID) (schema.Cell, bool)
	// ExecutionState returns a cell's execution lifecycle state.
	ExecutionState(id schema.CellID) schema.ExecutionState
	// Executing returns the ids of cells currently running.
	Executing() []schema.CellID
	// ConnState returns the gateway connection state.
	ConnState() schema.ConnState
}
