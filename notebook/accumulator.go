package notebook

import "github.com/DannyMang/more-compute-sub000/schema"

// accumulator converts one execution's incremental protocol events into the
// cell's coalesced output list, mutating the cell only through the store.
//
// Consecutive stream chunks on the same channel extend a single open segment
// instead of appending one record per chunk. A chunk on the other channel or
// any non-stream event closes the segment. A result is always its own record.
// An error short-circuits: once seen, further chunks for the execution are
// ignored (the kernel still sends a completion event to close out state).
type accumulator struct {
	store       *Store
	cellID      schema.CellID
	openChannel schema.OutputChannel
	segmentOpen bool
	errored     bool
}

func newAccumulator(store *Store, cellID schema.CellID) *accumulator {
	return &accumulator{store: store, cellID: cellID}
}

func (a *accumulator) AddStream(channel schema.OutputChannel, text string) error {
	if a.errored {
		return nil
	}
	if a.segmentOpen && a.openChannel == channel {
		extended, err := a.store.ExtendStreamOutput(a.cellID, channel, text)
		if err != nil {
			return err
		}
		if extended {
			return nil
		}
	}
	if err := a.store.AppendOutput(a.cellID, schema.NewStreamOutput(channel, text)); err != nil {
		return err
	}
	a.segmentOpen = true
	a.openChannel = channel
	return nil
}

func (a *accumulator) AddResult(data map[string]string) error {
	if a.errored {
		return nil
	}
	a.segmentOpen = false
	return a.store.AppendOutput(a.cellID, schema.NewResultOutput(data))
}

func (a *accumulator) AddError(errOut schema.ErrorOutput) error {
	if a.errored {
		return nil
	}
	a.segmentOpen = false
	a.errored = true
	if errOut.Classification == "" {
		class, hints := schema.ClassifyError(errOut.Name)
		errOut.Classification = class
		if len(errOut.Suggestions) == 0 {
			errOut.Suggestions = hints
		}
	}
	return a.store.AppendOutput(a.cellID, schema.NewErrorOutput(errOut))
}

// Errored reports whether an error output already terminated the stream.
func (a *accumulator) Errored() bool {
	return a.errored
}
