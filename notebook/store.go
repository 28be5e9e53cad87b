package notebook

import (
	"github.com/DannyMang/more-compute-sub000/schema"
)

// StoreObserver is notified of structural changes so in-flight execution
// records referencing a removed cell are never left orphaned.
type StoreObserver interface {
	CellRemoved(id schema.CellID)
	CellMoved(id schema.CellID, from, to int)
}

// Store is the authoritative in-memory ordered cell collection: the single
// source of truth for the UI. Cells are keyed by stable id; position lives in
// the order slice and is the only thing reorder affects.
//
// The store is not internally locked; the engine serializes all access, the
// same way the service serializes access to its per-user state.
type Store struct {
	cells      map[schema.CellID]*schema.Cell
	order      []schema.CellID
	used       map[schema.CellID]bool
	maxOutputs int
	sink       EventSink
	observer   StoreObserver
}

// NewStore constructs an empty store.
func NewStore(maxOutputs int, sink EventSink) *Store {
	if maxOutputs <= 0 {
		maxOutputs = schema.DefaultMaxOutputsPerCell
	}
	return &Store{
		cells:      make(map[schema.CellID]*schema.Cell),
		used:       make(map[schema.CellID]bool),
		maxOutputs: maxOutputs,
		sink:       sink,
	}
}

// SetObserver registers the structural-change observer.
func (s *Store) SetObserver(observer StoreObserver) {
	s.observer = observer
}

// Load replaces the entire ordered collection. Used on initial load and on
// any authoritative server snapshot.
func (s *Store) Load(cells []schema.Cell) {
	removed := s.order
	s.cells = make(map[schema.CellID]*schema.Cell, len(cells))
	s.order = make([]schema.CellID, 0, len(cells))
	for i := range cells {
		cell := cells[i].Clone()
		if cell.ID == "" || s.cells[cell.ID] != nil {
			cell.ID = newCellID()
		}
		s.cells[cell.ID] = &cell
		s.order = append(s.order, cell.ID)
		s.used[cell.ID] = true
	}
	if s.observer != nil {
		for _, id := range removed {
			if s.cells[id] == nil {
				s.observer.CellRemoved(id)
			}
		}
	}
	s.emit(schema.CellEvent{Type: schema.CellEventLoaded, Index: len(s.order)})
}

// Insert adds a cell at the given position. Cell ids are unique and never
// reused after deletion.
func (s *Store) Insert(cell schema.Cell, at int) error {
	if at < 0 || at > len(s.order) {
		return schema.ErrInvalidIndex
	}
	if cell.ID == "" {
		cell.ID = newCellID()
	}
	if s.used[cell.ID] {
		return schema.ErrDuplicateCellID
	}
	stored := cell.Clone()
	s.cells[stored.ID] = &stored
	s.order = append(s.order, "")
	copy(s.order[at+1:], s.order[at:])
	s.order[at] = stored.ID
	s.used[stored.ID] = true
	s.emitCell(schema.CellEventAdded, stored.ID)
	return nil
}

// Remove deletes a cell by id and notifies the observer.
func (s *Store) Remove(id schema.CellID) error {
	index, ok := s.indexOf(id)
	if !ok {
		return schema.ErrCellNotFound
	}
	delete(s.cells, id)
	s.order = append(s.order[:index], s.order[index+1:]...)
	if s.observer != nil {
		s.observer.CellRemoved(id)
	}
	s.emit(schema.CellEvent{Type: schema.CellEventRemoved, CellID: id, Index: index})
	return nil
}

// Move changes a cell's position. Identity is untouched.
func (s *Store) Move(id schema.CellID, to int) error {
	from, ok := s.indexOf(id)
	if !ok {
		return schema.ErrCellNotFound
	}
	if to < 0 || to >= len(s.order) {
		return schema.ErrInvalidIndex
	}
	if from == to {
		return nil
	}
	s.order = append(s.order[:from], s.order[from+1:]...)
	s.order = append(s.order, "")
	copy(s.order[to+1:], s.order[to:])
	s.order[to] = id
	if s.observer != nil {
		s.observer.CellMoved(id, from, to)
	}
	s.emitCell(schema.CellEventMoved, id)
	return nil
}

// UpdateSource replaces a cell's text buffer.
func (s *Store) UpdateSource(id schema.CellID, source string) error {
	cell := s.cells[id]
	if cell == nil {
		return schema.ErrCellNotFound
	}
	cell.Source = source
	s.emitCell(schema.CellEventUpdated, id)
	return nil
}

// ClearOutputs atomically replaces the output list with an empty one. Called
// exactly when a new execution for the cell begins.
func (s *Store) ClearOutputs(id schema.CellID) error {
	cell := s.cells[id]
	if cell == nil {
		return schema.ErrCellNotFound
	}
	cell.Outputs = nil
	cell.LastError = nil
	s.emitCell(schema.CellEventOutputs, id)
	return nil
}

// AppendOutput appends one output record. The list is append-only during an
// execution; a per-cell cap guards against unbounded chatty output.
func (s *Store) AppendOutput(id schema.CellID, out schema.Output) error {
	cell := s.cells[id]
	if cell == nil {
		return schema.ErrCellNotFound
	}
	if len(cell.Outputs) >= s.maxOutputs {
		return nil
	}
	stored := out.Clone()
	cell.Outputs = append(cell.Outputs, stored)
	if stored.Kind == schema.OutputKindError && stored.Error != nil {
		errCopy := stored.Error.Clone()
		cell.LastError = &errCopy
	}
	s.emitCell(schema.CellEventOutputs, id)
	return nil
}

// ExtendStreamOutput appends text to the cell's last output when it is an
// open stream segment for the same channel. Returns false when a new output
// record is needed instead.
func (s *Store) ExtendStreamOutput(id schema.CellID, channel schema.OutputChannel, text string) (bool, error) {
	cell := s.cells[id]
	if cell == nil {
		return false, schema.ErrCellNotFound
	}
	if len(cell.Outputs) == 0 {
		return false, nil
	}
	last := &cell.Outputs[len(cell.Outputs)-1]
	if last.Kind != schema.OutputKindStream || last.Stream == nil || last.Stream.Channel != channel {
		return false, nil
	}
	last.Stream.Text += text
	s.emitCell(schema.CellEventOutputs, id)
	return true, nil
}

// SetExecutionCount records a kernel-acknowledged completion count. Counts
// only increase; a stale or regressing count is ignored and reported false.
func (s *Store) SetExecutionCount(id schema.CellID, count int) (bool, error) {
	cell := s.cells[id]
	if cell == nil {
		return false, schema.ErrCellNotFound
	}
	if cell.ExecutionCount != nil && count <= *cell.ExecutionCount {
		return false, nil
	}
	cell.ExecutionCount = &count
	s.emitCell(schema.CellEventOutputs, id)
	return true, nil
}

// Get returns a deep copy of a cell.
func (s *Store) Get(id schema.CellID) (schema.Cell, bool) {
	cell := s.cells[id]
	if cell == nil {
		return schema.Cell{}, false
	}
	return cell.Clone(), true
}

// Snapshot returns deep copies of all cells in order.
func (s *Store) Snapshot() []schema.Cell {
	cells := make([]schema.Cell, 0, len(s.order))
	for _, id := range s.order {
		if cell := s.cells[id]; cell != nil {
			cells = append(cells, cell.Clone())
		}
	}
	return cells
}

// IndexOf returns the current position of a cell.
func (s *Store) IndexOf(id schema.CellID) (int, bool) {
	return s.indexOf(id)
}

// IDAt returns the cell id at a position.
func (s *Store) IDAt(index int) (schema.CellID, bool) {
	if index < 0 || index >= len(s.order) {
		return "", false
	}
	return s.order[index], true
}

// Len returns the number of cells.
func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) indexOf(id schema.CellID) (int, bool) {
	for i, candidate := range s.order {
		if candidate == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) emitCell(eventType schema.CellEventType, id schema.CellID) {
	index, _ := s.indexOf(id)
	event := schema.CellEvent{Type: eventType, CellID: id, Index: index}
	if cell := s.cells[id]; cell != nil {
		clone := cell.Clone()
		event.Cell = &clone
	}
	s.emit(event)
}

func (s *Store) emit(event schema.CellEvent) {
	if s.sink != nil {
		s.sink.OnCellEvent(event)
	}
}
