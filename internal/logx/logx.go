// Package logx provides pslog annotation helpers shared across packages.
package logx

import (
	"context"

	"github.com/DannyMang/more-compute-sub000/schema"
	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithCell annotates the logger with the cell id when present.
func WithCell(log pslog.Logger, cellID schema.CellID) pslog.Logger {
	if cellID != "" {
		log = log.With("cell", cellID)
	}
	return log
}

// WithExecution annotates the logger with the execution id when present.
func WithExecution(log pslog.Logger, execID schema.ExecutionID) pslog.Logger {
	if execID != "" {
		log = log.With("execution", execID)
	}
	return log
}

// WithConnState annotates the logger with the connection state.
func WithConnState(log pslog.Logger, state schema.ConnState) pslog.Logger {
	if state != "" {
		log = log.With("conn_state", state)
	}
	return log
}
