package schema

import "errors"

var (
	// ErrCellNotFound indicates a requested cell id is not in the store.
	ErrCellNotFound = errors.New("cell not found")
	// ErrCellBusy indicates the cell already has an in-flight execution.
	ErrCellBusy = errors.New("cell is busy")
	// ErrNotConnected indicates the gateway connection is not open.
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidMessage indicates a malformed or unexpected wire message.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidIndex indicates a position outside the cell order.
	ErrInvalidIndex = errors.New("invalid cell index")
	// ErrDuplicateCellID indicates an insert with an id already in use.
	ErrDuplicateCellID = errors.New("duplicate cell id")
	// ErrNotExecutable indicates a run request for a non-code cell.
	ErrNotExecutable = errors.New("cell is not executable")
	// ErrEngineClosed indicates the engine has been shut down.
	ErrEngineClosed = errors.New("engine closed")
)
