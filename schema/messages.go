package schema

import (
	"encoding/json"
	"fmt"
)

// MessageType is the top-level type field of a wire message envelope.
type MessageType string

// Outbound message types (client to kernel gateway).
const (
	// MsgAddCell requests insertion of a cell at an index.
	MsgAddCell MessageType = "add_cell"
	// MsgDeleteCell requests deletion of the cell at an index.
	MsgDeleteCell MessageType = "delete_cell"
	// MsgUpdateCell replicates a cell's source to the kernel.
	MsgUpdateCell MessageType = "update_cell"
	// MsgMoveCell requests a reorder between two indices.
	MsgMoveCell MessageType = "move_cell"
	// MsgExecuteCell submits a cell for execution.
	MsgExecuteCell MessageType = "execute_cell"
	// MsgInterruptKernel requests a kernel-wide interrupt.
	MsgInterruptKernel MessageType = "interrupt_kernel"
	// MsgResetKernel requests a kernel restart.
	MsgResetKernel MessageType = "reset_kernel"
	// MsgSaveNotebook requests a server-side save.
	MsgSaveNotebook MessageType = "save_notebook"
	// MsgRequestNotebook asks for a fresh authoritative snapshot.
	MsgRequestNotebook MessageType = "request_notebook"
)

// Inbound message types (kernel gateway to client).
const (
	// MsgNotebookData carries the initial authoritative snapshot.
	MsgNotebookData MessageType = "notebook_data"
	// MsgNotebookUpdated carries a replacement authoritative snapshot.
	MsgNotebookUpdated MessageType = "notebook_updated"
	// MsgCellAdded confirms an add_cell request.
	MsgCellAdded MessageType = "cell_added"
	// MsgCellDeleted confirms a delete_cell request.
	MsgCellDeleted MessageType = "cell_deleted"
	// MsgExecutionStart announces the kernel picked up an execution.
	MsgExecutionStart MessageType = "execution_start"
	// MsgStreamOutput carries an incremental stdout/stderr chunk.
	MsgStreamOutput MessageType = "stream_output"
	// MsgExecuteResult carries a mime-typed result payload.
	MsgExecuteResult MessageType = "execute_result"
	// MsgExecutionComplete closes out an execution.
	MsgExecutionComplete MessageType = "execution_complete"
	// MsgExecutionError carries a structured execution error.
	MsgExecutionError MessageType = "execution_error"
	// MsgExecutionInterrupted announces a kernel-wide interrupt took effect.
	MsgExecutionInterrupted MessageType = "execution_interrupted"
	// MsgKernelReset announces the kernel restarted.
	MsgKernelReset MessageType = "kernel_reset"
	// MsgSaveSuccess confirms a save_notebook request.
	MsgSaveSuccess MessageType = "save_success"
	// MsgSaveError reports a failed save_notebook request.
	MsgSaveError MessageType = "save_error"
)

// InboundTypes is the closed set of message types the client dispatches.
// Anything else is a protocol error: logged and dropped.
var InboundTypes = []MessageType{
	MsgNotebookData,
	MsgNotebookUpdated,
	MsgCellAdded,
	MsgCellDeleted,
	MsgExecutionStart,
	MsgStreamOutput,
	MsgExecuteResult,
	MsgExecutionComplete,
	MsgExecutionError,
	MsgExecutionInterrupted,
	MsgKernelReset,
	MsgSaveSuccess,
	MsgSaveError,
}

// Message is the wire envelope shared by both directions.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps a payload in an envelope.
func NewMessage(msgType MessageType, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Data = data
	return msg, nil
}

// Decode unmarshals the envelope payload into the provided struct. A payload
// that does not fit the expected shape yields ErrInvalidMessage.
func (m Message) Decode(into any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, into); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidMessage, m.Type, err)
	}
	return nil
}

// AddCellPayload is the add_cell request body.
type AddCellPayload struct {
	Index    int      `json:"index"`
	CellType CellType `json:"cell_type"`
	Source   string   `json:"source"`
}

// DeleteCellPayload is the delete_cell request body.
type DeleteCellPayload struct {
	CellIndex int `json:"cell_index"`
}

// UpdateCellPayload is the update_cell request body.
type UpdateCellPayload struct {
	CellIndex int    `json:"cell_index"`
	Source    string `json:"source"`
}

// MoveCellPayload is the move_cell request body.
type MoveCellPayload struct {
	FromIndex int `json:"from_index"`
	ToIndex   int `json:"to_index"`
}

// ExecuteCellPayload is the execute_cell request body.
type ExecuteCellPayload struct {
	CellIndex int    `json:"cell_index"`
	Source    string `json:"source"`
}

// SaveNotebookPayload is the save_notebook request body.
type SaveNotebookPayload struct {
	FilePath string `json:"file_path"`
}

// WireCell is a cell as it appears in authoritative snapshots. The id is
// optional; the engine preserves an echoed id and mints one otherwise.
type WireCell struct {
	ID             string   `json:"id,omitempty"`
	CellType       CellType `json:"cell_type"`
	Source         string   `json:"source"`
	ExecutionCount *int     `json:"execution_count,omitempty"`
}

// NotebookDataPayload is the notebook_data / notebook_updated body.
type NotebookDataPayload struct {
	Cells []WireCell `json:"cells"`
}

// CellAddedPayload is the cell_added body.
type CellAddedPayload struct {
	Index int      `json:"index"`
	Cell  WireCell `json:"cell"`
}

// CellDeletedPayload is the cell_deleted body.
type CellDeletedPayload struct {
	CellIndex int `json:"cell_index"`
}

// ExecutionStartPayload is the execution_start body. The kernel-assigned
// execution id is recorded on the in-flight record when present.
type ExecutionStartPayload struct {
	ExecutionID    string `json:"execution_id,omitempty"`
	ExecutionCount *int   `json:"execution_count,omitempty"`
}

// StreamOutputPayload is the stream_output body.
type StreamOutputPayload struct {
	Stream OutputChannel `json:"stream"`
	Text   string        `json:"text"`
}

// ExecuteResultPayload is the execute_result body.
type ExecuteResultPayload struct {
	Data map[string]string `json:"data"`
}

// WireError is the kernel's error shape (Jupyter-style field names).
type WireError struct {
	Name      string   `json:"ename"`
	Message   string   `json:"evalue"`
	Traceback []string `json:"traceback,omitempty"`
}

// ExecutionCompletePayload is the execution_complete body. ExecutionTime is
// wall-clock seconds measured by the kernel, when it reports one.
type ExecutionCompletePayload struct {
	ExecutionCount int        `json:"execution_count"`
	Status         string     `json:"status"`
	ExecutionTime  float64    `json:"execution_time,omitempty"`
	Error          *WireError `json:"error,omitempty"`
}

// Completion status values.
const (
	// StatusOK marks a successful execution.
	StatusOK = "ok"
	// StatusError marks a failed execution.
	StatusError = "error"
)

// ExecutionErrorPayload is the execution_error body.
type ExecutionErrorPayload struct {
	Error WireError `json:"error"`
}

// SaveSuccessPayload is the save_success body.
type SaveSuccessPayload struct {
	FilePath string `json:"file_path"`
}

// SaveErrorPayload is the save_error body.
type SaveErrorPayload struct {
	Error string `json:"error"`
}
