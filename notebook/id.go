package notebook

import (
	"github.com/google/uuid"

	"github.com/DannyMang/more-compute-sub000/schema"
)

func newCellID() schema.CellID {
	return schema.CellID(uuid.NewString())
}
