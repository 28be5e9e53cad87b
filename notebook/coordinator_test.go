package notebook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DannyMang/more-compute-sub000/schema"
)

type fakeConn struct {
	sent    []schema.Message
	sendErr error
	state   schema.ConnState
}

func (f *fakeConn) Send(ctx context.Context, msgType schema.MessageType, payload any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	msg, err := schema.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) State() schema.ConnState {
	if f.state == "" {
		return schema.ConnStateOpen
	}
	return f.state
}

func (f *fakeConn) sentTypes() []schema.MessageType {
	types := make([]schema.MessageType, 0, len(f.sent))
	for _, msg := range f.sent {
		types = append(types, msg.Type)
	}
	return types
}

func (f *fakeConn) lastOf(t *testing.T, msgType schema.MessageType, into any) {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Type == msgType {
			if err := json.Unmarshal(f.sent[i].Data, into); err != nil {
				t.Fatalf("decode %s: %v", msgType, err)
			}
			return
		}
	}
	t.Fatalf("no %s message sent, got %v", msgType, f.sentTypes())
}

func coordinatorFixture(t *testing.T, sources ...string) (*Store, *Coordinator, *fakeConn, *recordSink) {
	t.Helper()
	sink := &recordSink{}
	store := NewStore(0, sink)
	conn := &fakeConn{}
	coord := NewCoordinator(store, conn, sink, nil)
	for i, source := range sources {
		if err := store.Insert(codeCell(source), i); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return store, coord, conn, sink
}

func completeOK(count int) schema.ExecutionCompletePayload {
	return schema.ExecutionCompletePayload{ExecutionCount: count, Status: schema.StatusOK}
}

func TestCoordinatorRunSendsExecuteAndClearsOutputs(t *testing.T) {
	store, coord, conn, _ := coordinatorFixture(t, "print(1)")
	id, _ := store.IDAt(0)
	if err := store.AppendOutput(id, schema.NewStreamOutput(schema.ChannelStdout, "stale")); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := coord.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}
	var payload schema.ExecuteCellPayload
	conn.lastOf(t, schema.MsgExecuteCell, &payload)
	if payload.CellIndex != 0 || payload.Source != "print(1)" {
		t.Fatalf("execute payload = %+v", payload)
	}
	cell, _ := store.Get(id)
	if len(cell.Outputs) != 0 {
		t.Fatalf("stale outputs survived run: %+v", cell.Outputs)
	}
	if coord.StateOf(id) != schema.ExecStateRunning {
		t.Fatalf("state = %q, want running", coord.StateOf(id))
	}
}

func TestCoordinatorRunOnRunningCellInterrupts(t *testing.T) {
	store, coord, conn, _ := coordinatorFixture(t, "loop()")
	id, _ := store.IDAt(0)
	if err := coord.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := coord.Run(context.Background(), id); err != nil {
		t.Fatalf("run toggle: %v", err)
	}
	types := conn.sentTypes()
	if types[len(types)-1] != schema.MsgInterruptKernel {
		t.Fatalf("sent = %v, want trailing interrupt_kernel", types)
	}
}

func TestCoordinatorRunValidation(t *testing.T) {
	store, coord, _, _ := coordinatorFixture(t)
	text := schema.Cell{Type: schema.CellTypeText, Source: "# notes"}
	if err := store.Insert(text, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, _ := store.IDAt(0)

	if err := coord.Run(context.Background(), "missing"); err != schema.ErrCellNotFound {
		t.Fatalf("run missing = %v, want ErrCellNotFound", err)
	}
	if err := coord.Run(context.Background(), id); err != schema.ErrNotExecutable {
		t.Fatalf("run text cell = %v, want ErrNotExecutable", err)
	}
}

func TestCoordinatorQueuesWhileKernelBusy(t *testing.T) {
	store, coord, conn, sink := coordinatorFixture(t, "first", "second")
	a, _ := store.IDAt(0)
	b, _ := store.IDAt(1)

	if err := coord.Run(context.Background(), a); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if err := coord.Run(context.Background(), b); err != nil {
		t.Fatalf("run b: %v", err)
	}
	if coord.StateOf(b) != schema.ExecStateQueued {
		t.Fatalf("b state = %q, want queued", coord.StateOf(b))
	}
	if err := coord.Run(context.Background(), b); err != schema.ErrCellBusy {
		t.Fatalf("rerun queued = %v, want ErrCellBusy", err)
	}
	if got := len(coord.Executing()); got != 1 {
		t.Fatalf("executing = %d, want at most one running", got)
	}
	executes := 0
	for _, msgType := range conn.sentTypes() {
		if msgType == schema.MsgExecuteCell {
			executes++
		}
	}
	if executes != 1 {
		t.Fatalf("execute_cell sent %d times before completion", executes)
	}

	coord.HandleExecutionComplete(context.Background(), completeOK(1))
	var payload schema.ExecuteCellPayload
	conn.lastOf(t, schema.MsgExecuteCell, &payload)
	if payload.Source != "second" {
		t.Fatalf("queued dispatch = %+v, want second", payload)
	}
	if coord.StateOf(a) != schema.ExecStateIdle || coord.StateOf(b) != schema.ExecStateRunning {
		t.Fatalf("states after completion: a=%q b=%q", coord.StateOf(a), coord.StateOf(b))
	}

	var queuedSeen bool
	for _, event := range sink.execEvents {
		if event.Type == schema.ExecutionEventQueued && event.CellID == b {
			queuedSeen = true
		}
	}
	if !queuedSeen {
		t.Fatal("no queued event for b")
	}
}

func TestCoordinatorCompleteAppliesCountAndDuration(t *testing.T) {
	store, coord, _, sink := coordinatorFixture(t, "x = 1")
	id, _ := store.IDAt(0)
	if err := coord.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}
	coord.HandleExecutionComplete(context.Background(), schema.ExecutionCompletePayload{
		ExecutionCount: 7,
		Status:         schema.StatusOK,
		ExecutionTime:  1.5,
	})
	cell, _ := store.Get(id)
	if cell.ExecutionCount == nil || *cell.ExecutionCount != 7 {
		t.Fatalf("count = %v, want 7", cell.ExecutionCount)
	}
	last := sink.execEvents[len(sink.execEvents)-1]
	if last.Type != schema.ExecutionEventCompleted || last.Failed {
		t.Fatalf("last event = %+v", last)
	}
	if last.Duration.Milliseconds() != 1500 {
		t.Fatalf("duration = %v, want 1.5s", last.Duration)
	}
}

func TestCoordinatorCompleteWithTrailingError(t *testing.T) {
	store, coord, _, sink := coordinatorFixture(t, "boom()")
	id, _ := store.IDAt(0)
	if err := coord.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}
	coord.HandleExecutionComplete(context.Background(), schema.ExecutionCompletePayload{
		ExecutionCount: 1,
		Status:         schema.StatusError,
		Error:          &schema.WireError{Name: "RuntimeError", Message: "boom"},
	})
	cell, _ := store.Get(id)
	if cell.LastError == nil || cell.LastError.Name != "RuntimeError" {
		t.Fatalf("LastError = %+v", cell.LastError)
	}
	last := sink.execEvents[len(sink.execEvents)-1]
	if !last.Failed {
		t.Fatalf("completion not marked failed: %+v", last)
	}
}

func TestCoordinatorErrorThenCompleteAddsOneErrorOutput(t *testing.T) {
	store, coord, _, _ := coordinatorFixture(t, "boom()")
	id, _ := store.IDAt(0)
	if err := coord.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}
	coord.HandleExecutionError(schema.ExecutionErrorPayload{
		Error: schema.WireError{Name: "ZeroDivisionError", Message: "division by zero"},
	})
	coord.HandleExecutionComplete(context.Background(), schema.ExecutionCompletePayload{
		ExecutionCount: 1,
		Status:         schema.StatusError,
		Error:          &schema.WireError{Name: "ZeroDivisionError", Message: "division by zero"},
	})
	cell, _ := store.Get(id)
	errorOutputs := 0
	for _, out := range cell.Outputs {
		if out.Kind == schema.OutputKindError {
			errorOutputs++
		}
	}
	if errorOutputs != 1 {
		t.Fatalf("error outputs = %d, want 1", errorOutputs)
	}
}

func TestCoordinatorInterruptAppliesOnce(t *testing.T) {
	store, coord, _, sink := coordinatorFixture(t, "loop()", "queued()")
	a, _ := store.IDAt(0)
	b, _ := store.IDAt(1)
	if err := coord.Run(context.Background(), a); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if err := coord.Run(context.Background(), b); err != nil {
		t.Fatalf("run b: %v", err)
	}

	coord.HandleExecutionInterrupted()

	cellA, _ := store.Get(a)
	if cellA.LastError == nil || cellA.LastError.Name != "KeyboardInterrupt" {
		t.Fatalf("running cell error = %+v", cellA.LastError)
	}
	if cellA.LastError.Classification != schema.ClassInterrupt {
		t.Fatalf("classification = %q", cellA.LastError.Classification)
	}
	cellB, _ := store.Get(b)
	if cellB.LastError != nil || len(cellB.Outputs) != 0 {
		t.Fatalf("queued cell got an error output: %+v", cellB)
	}
	if coord.StateOf(a) != schema.ExecStateIdle || coord.StateOf(b) != schema.ExecStateIdle {
		t.Fatalf("states after interrupt: a=%q b=%q", coord.StateOf(a), coord.StateOf(b))
	}

	interrupted := 0
	for _, event := range sink.execEvents {
		if event.Type == schema.ExecutionEventInterrupted {
			interrupted++
		}
	}
	if interrupted != 2 {
		t.Fatalf("interrupted events = %d, want one per record", interrupted)
	}
}

func TestCoordinatorDeleteRunningCellDrainsThenResumes(t *testing.T) {
	store, coord, conn, _ := coordinatorFixture(t, "doomed()", "next()")
	a, _ := store.IDAt(0)
	b, _ := store.IDAt(1)
	if err := coord.Run(context.Background(), a); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if err := coord.Run(context.Background(), b); err != nil {
		t.Fatalf("run b: %v", err)
	}

	if err := store.Remove(a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Events for the deleted cell's execution are dropped on the floor.
	coord.HandleStreamOutput(schema.StreamOutputPayload{Stream: schema.ChannelStdout, Text: "late"})
	coord.HandleExecutionError(schema.ExecutionErrorPayload{Error: schema.WireError{Name: "Late"}})
	if coord.StateOf(b) != schema.ExecStateQueued {
		t.Fatalf("b state = %q, want still queued while kernel drains", coord.StateOf(b))
	}

	coord.HandleExecutionComplete(context.Background(), completeOK(3))
	var payload schema.ExecuteCellPayload
	conn.lastOf(t, schema.MsgExecuteCell, &payload)
	if payload.Source != "next()" {
		t.Fatalf("dispatched after drain = %+v", payload)
	}
	if coord.StateOf(b) != schema.ExecStateRunning {
		t.Fatalf("b state = %q, want running", coord.StateOf(b))
	}
	cellB, _ := store.Get(b)
	if cellB.ExecutionCount != nil {
		t.Fatalf("deleted cell's count landed on b: %+v", cellB)
	}
}

func TestCoordinatorDeleteQueuedCellDropsFromQueue(t *testing.T) {
	store, coord, conn, _ := coordinatorFixture(t, "running()", "doomed()", "last()")
	a, _ := store.IDAt(0)
	b, _ := store.IDAt(1)
	c, _ := store.IDAt(2)
	for _, id := range []schema.CellID{a, b, c} {
		if err := coord.Run(context.Background(), id); err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
	}
	if err := store.Remove(b); err != nil {
		t.Fatalf("remove: %v", err)
	}
	coord.HandleExecutionComplete(context.Background(), completeOK(1))
	var payload schema.ExecuteCellPayload
	conn.lastOf(t, schema.MsgExecuteCell, &payload)
	if payload.Source != "last()" {
		t.Fatalf("dispatched = %+v, want last()", payload)
	}
}

func TestCoordinatorKernelResetKeepsOutputs(t *testing.T) {
	store, coord, _, _ := coordinatorFixture(t, "done", "pending")
	a, _ := store.IDAt(0)
	b, _ := store.IDAt(1)
	if err := store.AppendOutput(a, schema.NewStreamOutput(schema.ChannelStdout, "kept")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.SetExecutionCount(a, 4); err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := coord.Run(context.Background(), b); err != nil {
		t.Fatalf("run: %v", err)
	}

	coord.HandleKernelReset()

	if coord.StateOf(b) != schema.ExecStateIdle {
		t.Fatalf("b state = %q, want idle after reset", coord.StateOf(b))
	}
	cellA, _ := store.Get(a)
	if len(cellA.Outputs) != 1 || cellA.ExecutionCount == nil || *cellA.ExecutionCount != 4 {
		t.Fatalf("reset touched outputs or counts: %+v", cellA)
	}
	cellB, _ := store.Get(b)
	if cellB.LastError != nil {
		t.Fatalf("reset fabricated an error: %+v", cellB.LastError)
	}
}

func TestCoordinatorTerminalDisconnectFailsInFlight(t *testing.T) {
	store, coord, _, sink := coordinatorFixture(t, "running()", "queued()")
	a, _ := store.IDAt(0)
	b, _ := store.IDAt(1)
	if err := coord.Run(context.Background(), a); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if err := coord.Run(context.Background(), b); err != nil {
		t.Fatalf("run b: %v", err)
	}

	coord.HandleConnTerminal()

	cellA, _ := store.Get(a)
	if cellA.LastError == nil || cellA.LastError.Classification != schema.ClassConnection {
		t.Fatalf("running cell error = %+v", cellA.LastError)
	}
	cellB, _ := store.Get(b)
	if cellB.LastError != nil {
		t.Fatalf("queued cell got a connection error: %+v", cellB.LastError)
	}
	if coord.StateOf(a) != schema.ExecStateIdle || coord.StateOf(b) != schema.ExecStateIdle {
		t.Fatalf("states: a=%q b=%q, want idle", coord.StateOf(a), coord.StateOf(b))
	}
	var failed bool
	for _, event := range sink.execEvents {
		if event.Type == schema.ExecutionEventInterrupted && event.Failed {
			failed = true
		}
	}
	if !failed {
		t.Fatal("no failed interrupted event emitted")
	}
}

func TestCoordinatorStrayEventsDropped(t *testing.T) {
	store, coord, _, _ := coordinatorFixture(t, "idle")
	id, _ := store.IDAt(0)

	coord.HandleStreamOutput(schema.StreamOutputPayload{Stream: schema.ChannelStdout, Text: "ghost"})
	coord.HandleExecuteResult(schema.ExecuteResultPayload{Data: map[string]string{"text/plain": "ghost"}})
	coord.HandleExecutionComplete(context.Background(), completeOK(9))

	cell, _ := store.Get(id)
	if len(cell.Outputs) != 0 || cell.ExecutionCount != nil {
		t.Fatalf("stray events mutated idle cell: %+v", cell)
	}
}
