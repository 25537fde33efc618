package xpbd

import (
	"math"
	"slices"

	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey is the integer coordinate of a grid cell
type CellKey struct {
	X, Y, Z int
}

// Cell holds the bodies overlapping it, possibly sharing the slot with other cells of the same hash
type Cell struct {
	bodies []BodyID
}

// SpatialGrid is a uniform grid hashed into a fixed number of cells.
// Bodies covering more than maxCellsPerBody cells are kept aside and returned by every query.
type SpatialGrid struct {
	cellSize        float64
	cells           []Cell
	cellMask        int
	maxCellsPerBody int

	oversized []BodyID

	// seen deduplicates the candidates of one query, stamped with the query generation
	seen       []uint32
	generation uint32
}

// NewSpatialGrid rounds numCells up to a power of two
func NewSpatialGrid(cellSize float64, numCells, maxCellsPerBody int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].bodies = make([]BodyID, 0, 8)
	}

	return &SpatialGrid{
		cellSize:        cellSize,
		cells:           cells,
		cellMask:        numCells - 1,
		maxCellsPerBody: max(1, maxCellsPerBody),
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodies = sg.cells[i].bodies[:0]
	}
	sg.oversized = sg.oversized[:0]
}

// Insert adds the body to every cell its bounds overlap
func (sg *SpatialGrid) Insert(id BodyID, bounds actor.AABB) {
	minCell, maxCell, ok := sg.cellRange(bounds)
	if !ok {
		sg.oversized = append(sg.oversized, id)
		return
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cell := &sg.cells[sg.hashCell(CellKey{x, y, z})]
				// Neighbour cells may share a slot
				if n := len(cell.bodies); n > 0 && cell.bodies[n-1] == id {
					continue
				}
				cell.bodies = append(cell.bodies, id)
			}
		}
	}
}

// Candidates appends to dst the sorted, unique IDs of the bodies that may overlap bounds.
// ok is false when bounds cover too many cells; the caller must then test every body.
func (sg *SpatialGrid) Candidates(bounds actor.AABB, dst []BodyID) ([]BodyID, bool) {
	minCell, maxCell, ok := sg.cellRange(bounds)
	if !ok {
		return dst, false
	}

	sg.generation++
	if sg.generation == 0 {
		clear(sg.seen)
		sg.generation = 1
	}

	start := len(dst)
	visit := func(id BodyID) {
		if int(id) >= len(sg.seen) {
			sg.seen = append(sg.seen, make([]uint32, int(id)+1-len(sg.seen))...)
		}
		if sg.seen[id] == sg.generation {
			return
		}
		sg.seen[id] = sg.generation
		dst = append(dst, id)
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				for _, id := range sg.cells[sg.hashCell(CellKey{x, y, z})].bodies {
					visit(id)
				}
			}
		}
	}
	for _, id := range sg.oversized {
		visit(id)
	}

	slices.Sort(dst[start:])

	return dst, true
}

// cellRange returns the cells covered by bounds; ok is false above maxCellsPerBody cells
// or when the bounds are not finite
func (sg *SpatialGrid) cellRange(bounds actor.AABB) (CellKey, CellKey, bool) {
	for i := 0; i < 3; i++ {
		if math.IsNaN(bounds.Min[i]) || math.IsInf(bounds.Min[i], 0) ||
			math.IsNaN(bounds.Max[i]) || math.IsInf(bounds.Max[i], 0) {
			return CellKey{}, CellKey{}, false
		}
	}

	// Compare in floating point first so that huge bounds cannot overflow the cell count
	count := 1.0
	for i := 0; i < 3; i++ {
		count *= math.Floor(bounds.Max[i]/sg.cellSize) - math.Floor(bounds.Min[i]/sg.cellSize) + 1
	}
	if count > float64(sg.maxCellsPerBody) {
		return CellKey{}, CellKey{}, false
	}

	return sg.worldToCell(bounds.Min), sg.worldToCell(bounds.Max), true
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
