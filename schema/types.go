package schema

// CellID identifies a cell. IDs are stable for the lifetime of the cell and
// never reused after deletion; position in the notebook is tracked separately.
type CellID string

// ExecutionID identifies a single in-flight execution.
type ExecutionID string

// CellType describes the kind of content a cell holds.
type CellType string

const (
	// CellTypeCode marks an executable code cell.
	CellTypeCode CellType = "code"
	// CellTypeText marks a non-executable text cell.
	CellTypeText CellType = "text"
)

// OutputChannel identifies which stream produced a chunk of output.
type OutputChannel string

const (
	// ChannelStdout is the kernel's standard output stream.
	ChannelStdout OutputChannel = "stdout"
	// ChannelStderr is the kernel's standard error stream.
	ChannelStderr OutputChannel = "stderr"
)

// ExecutionState describes the lifecycle stage of an execution record.
type ExecutionState string

const (
	// ExecStateIdle indicates no execution is pending for the cell.
	ExecStateIdle ExecutionState = "idle"
	// ExecStateQueued indicates the cell is waiting for the kernel to free up.
	ExecStateQueued ExecutionState = "queued"
	// ExecStateRunning indicates the kernel is executing the cell.
	ExecStateRunning ExecutionState = "running"
	// ExecStateCompleting indicates a completion event is being finalized.
	ExecStateCompleting ExecutionState = "completing"
)

// ConnState describes the kernel gateway connection lifecycle.
type ConnState string

const (
	// ConnStateConnecting indicates a dial or reconnect attempt is in progress.
	ConnStateConnecting ConnState = "connecting"
	// ConnStateOpen indicates the connection handshake completed.
	ConnStateOpen ConnState = "open"
	// ConnStateClosed indicates the connection dropped and retries remain.
	ConnStateClosed ConnState = "closed"
	// ConnStateDisconnected indicates retries are exhausted; a manual
	// reconnect is required.
	ConnStateDisconnected ConnState = "disconnected"
)
