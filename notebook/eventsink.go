package notebook

import "github.com/DannyMang/more-compute-sub000/schema"

// EventSink receives engine events for the UI layer.
type EventSink interface {
	OnCellEvent(event schema.CellEvent)
	OnExecutionEvent(event schema.ExecutionEvent)
	OnConnEvent(event schema.ConnEvent)
	OnSaveEvent(event schema.SaveEvent)
}
