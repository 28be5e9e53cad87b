package schema

// OutputKind tags the variants of the Output union.
type OutputKind string

const (
	// OutputKindStream is coalesced stdout/stderr text.
	OutputKindStream OutputKind = "stream"
	// OutputKindResult is a mime-typed execution result.
	OutputKindResult OutputKind = "result"
	// OutputKindError is a structured execution error.
	OutputKindError OutputKind = "error"
)

// Output is a tagged union of the three output variants. Exactly one of
// Stream, Result, and Error is set, matching Kind.
type Output struct {
	Kind   OutputKind    `json:"kind"`
	Stream *StreamOutput `json:"stream,omitempty"`
	Result *ResultOutput `json:"result,omitempty"`
	Error  *ErrorOutput  `json:"error,omitempty"`
}

// StreamOutput holds coalesced text from one output channel.
type StreamOutput struct {
	Channel OutputChannel `json:"channel"`
	Text    string        `json:"text"`
}

// ResultOutput holds a mime-typed result payload keyed by mime type.
type ResultOutput struct {
	Data map[string]string `json:"data"`
}

// ErrorOutput describes an execution failure. Traceback always holds the full
// text so copy actions lose nothing; FormatTraceback produces the truncated
// display form.
type ErrorOutput struct {
	Name           string   `json:"name"`
	Message        string   `json:"message"`
	Traceback      []string `json:"traceback,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

// Cell is the engine's view of one notebook cell. The output list is
// append-only during an execution and replaced wholesale when a new execution
// for the cell begins.
type Cell struct {
	ID             CellID       `json:"id"`
	Type           CellType     `json:"cell_type"`
	Source         string       `json:"source"`
	Outputs        []Output     `json:"outputs,omitempty"`
	ExecutionCount *int         `json:"execution_count,omitempty"`
	LastError      *ErrorOutput `json:"last_error,omitempty"`
}

// Clone returns a deep copy of the cell.
func (c Cell) Clone() Cell {
	out := c
	if c.Outputs != nil {
		out.Outputs = make([]Output, len(c.Outputs))
		for i, o := range c.Outputs {
			out.Outputs[i] = o.Clone()
		}
	}
	if c.ExecutionCount != nil {
		count := *c.ExecutionCount
		out.ExecutionCount = &count
	}
	if c.LastError != nil {
		errCopy := c.LastError.Clone()
		out.LastError = &errCopy
	}
	return out
}

// Clone returns a deep copy of the output.
func (o Output) Clone() Output {
	out := o
	if o.Stream != nil {
		stream := *o.Stream
		out.Stream = &stream
	}
	if o.Result != nil {
		result := ResultOutput{Data: make(map[string]string, len(o.Result.Data))}
		for k, v := range o.Result.Data {
			result.Data[k] = v
		}
		out.Result = &result
	}
	if o.Error != nil {
		errCopy := o.Error.Clone()
		out.Error = &errCopy
	}
	return out
}

// Clone returns a deep copy of the error output.
func (e ErrorOutput) Clone() ErrorOutput {
	out := e
	out.Traceback = append([]string(nil), e.Traceback...)
	out.Suggestions = append([]string(nil), e.Suggestions...)
	return out
}

// NewStreamOutput wraps channel text as an Output.
func NewStreamOutput(channel OutputChannel, text string) Output {
	return Output{Kind: OutputKindStream, Stream: &StreamOutput{Channel: channel, Text: text}}
}

// NewResultOutput wraps a mime payload map as an Output.
func NewResultOutput(data map[string]string) Output {
	return Output{Kind: OutputKindResult, Result: &ResultOutput{Data: data}}
}

// NewErrorOutput wraps an error record as an Output.
func NewErrorOutput(err ErrorOutput) Output {
	return Output{Kind: OutputKindError, Error: &err}
}
