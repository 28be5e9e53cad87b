package persist

import (
	"testing"

	"github.com/DannyMang/more-compute-sub000/schema"
)

func TestStoreLoadMissingReturnsFalse(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected miss on empty dir")
	}
}

func TestStoreSaveThenLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	count := 3
	snapshot := SessionSnapshot{
		GatewayURL: "ws://localhost:8000/ws",
		Cells: []schema.Cell{
			{ID: "c1", Type: schema.CellTypeCode, Source: "print(1)", ExecutionCount: &count,
				Outputs: []schema.Output{schema.NewStreamOutput(schema.ChannelStdout, "1\n")}},
			{ID: "c2", Type: schema.CellTypeText, Source: "# notes"},
		},
	}
	if err := store.Save(snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot present")
	}
	if len(loaded.Cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(loaded.Cells))
	}
	if loaded.Cells[0].ID != "c1" || loaded.Cells[0].ExecutionCount == nil || *loaded.Cells[0].ExecutionCount != 3 {
		t.Fatalf("unexpected first cell: %+v", loaded.Cells[0])
	}
	if len(loaded.Cells[0].Outputs) != 1 || loaded.Cells[0].Outputs[0].Kind != schema.OutputKindStream {
		t.Fatalf("expected stream output preserved: %+v", loaded.Cells[0].Outputs)
	}
}

func TestStoreRequiresDir(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
