package plife

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MaxNeighborCells is the size of a full 3x3x3 neighbourhood.
	MaxNeighborCells = 27

	// epochResetInterval forces a full epoch reset so the per-cell stamps
	// never approach wraparound.
	epochResetInterval = 1000

	// minGridCapacity keeps tiny grids from reallocating on every rebuild.
	minGridCapacity = 64
)

// SpatialGrid buckets particle indices into uniform cells using a counting
// sort over a shared contents array.
//
// Each axis is split into floor(extent/cellSize) equal cells, so no cell is
// narrower than the requested size. Two particles closer than cellSize are
// therefore always in neighbouring cells, including across a wrapped seam.
//
// Cells are cleared lazily: a cell whose stamp differs from the current epoch
// is empty, so a rebuild costs O(particles + touched cells) instead of
// O(cells). The epoch is reset to 1 whenever a buffer is reallocated and
// every epochResetInterval rebuilds.
type SpatialGrid struct {
	cellSize  float64
	cellWidth [3]float64
	dims      [3]int
	numCells int
	wrap     [3]bool

	cellStart []int32
	cellCount []int32
	cellFill  []int32
	cellEpoch []uint32
	epoch     uint32
	touched   []int32

	contents      []int32
	particleCell  []int32
	neighbors     []int32
	neighborCount []uint8
	numParticles  int

	maxCellSize   int
	reallocations int
}

// NewSpatialGrid returns an empty grid. Buffers are sized on first Rebuild.
func NewSpatialGrid() *SpatialGrid {
	return &SpatialGrid{dims: [3]int{1, 1, 1}, numCells: 1, cellWidth: [3]float64{1, 1, 1}}
}

// Rebuild partitions positions into cells at least cellSize wide laid over the box
// [lower, upper]. Wrapped axes fold cell coordinates periodically. On a
// non-wrapped axis a particle outside the box is placed in the nearest
// boundary cell, and neighbour cells past the boundary are omitted.
func (g *SpatialGrid) Rebuild(positions []r3.Vec, lower, upper r3.Vec, cellSize float64, wrap [3]bool) {
	ext := r3.Sub(upper, lower)
	g.cellSize = cellSize
	g.wrap = wrap
	for a, e := range [3]float64{ext.X, ext.Y, ext.Z} {
		g.dims[a] = gridDim(e, cellSize)
		g.cellWidth[a] = cellWidth(e, g.dims[a])
	}
	g.numCells = g.dims[0] * g.dims[1] * g.dims[2]

	n := len(positions)
	cellsRealloc := g.ensureCells(g.numCells)
	particlesRealloc := g.ensureParticles(n)
	if cellsRealloc || particlesRealloc || g.epoch >= epochResetInterval {
		g.resetEpochs()
	}
	g.epoch++
	g.numParticles = n
	g.touched = g.touched[:0]

	// Pass 1: assign cells, tally sizes, stamp first-touched cells and
	// build neighbourhoods.
	for i, p := range positions {
		coord := g.cellCoord(r3.Sub(p, lower))
		c := g.cellIndex(coord)
		g.particleCell[i] = int32(c)
		if g.cellEpoch[c] != g.epoch {
			g.cellEpoch[c] = g.epoch
			g.cellCount[c] = 0
			g.touched = append(g.touched, int32(c))
		}
		g.cellCount[c]++
		g.neighborCount[i] = uint8(g.buildNeighborhood(coord, g.neighbors[i*MaxNeighborCells:(i+1)*MaxNeighborCells]))
	}

	// Pass 2: contiguous start offsets in first-encounter order.
	offset := int32(0)
	g.maxCellSize = 0
	for _, c := range g.touched {
		g.cellStart[c] = offset
		g.cellFill[c] = 0
		offset += g.cellCount[c]
		if int(g.cellCount[c]) > g.maxCellSize {
			g.maxCellSize = int(g.cellCount[c])
		}
	}

	// Pass 3: scatter.
	for i := 0; i < n; i++ {
		c := g.particleCell[i]
		g.contents[g.cellStart[c]+g.cellFill[c]] = int32(i)
		g.cellFill[c]++
	}
}

func gridDim(extent, cellSize float64) int {
	if !(cellSize > 0) || !(extent > 0) {
		return 1
	}
	d := math.Floor(extent / cellSize)
	if d < 1 || math.IsNaN(d) {
		return 1
	}
	if d > maxGridCells {
		return maxGridCells
	}
	return int(d)
}

func cellWidth(extent float64, dim int) float64 {
	if !(extent > 0) {
		return 1
	}
	return extent / float64(dim)
}

// cellCoord converts a position relative to the lower bound into cell
// coordinates that are always inside the grid.
func (g *SpatialGrid) cellCoord(rel r3.Vec) [3]int {
	var out [3]int
	for a, v := range [3]float64{rel.X, rel.Y, rel.Z} {
		dim := g.dims[a]
		f := math.Floor(v / g.cellWidth[a])
		if g.wrap[a] {
			f = math.Mod(f, float64(dim))
			if f < 0 {
				f += float64(dim)
			}
		}
		switch {
		case f < 0 || math.IsNaN(f):
			out[a] = 0
		case f >= float64(dim):
			out[a] = dim - 1
		default:
			out[a] = int(f)
		}
	}
	return out
}

func (g *SpatialGrid) cellIndex(c [3]int) int {
	return c[0] + g.dims[0]*(c[1]+g.dims[1]*c[2])
}

// buildNeighborhood writes the distinct cells of the 3x3x3 block around
// coord into out and returns how many were written. The particle's own cell
// is always first.
func (g *SpatialGrid) buildNeighborhood(coord [3]int, out []int32) int {
	var axis [3][3]int
	var count [3]int
	for a := 0; a < 3; a++ {
		count[a] = axisNeighbors(coord[a], g.dims[a], g.wrap[a], &axis[a])
	}
	n := 0
	for iz := 0; iz < count[2]; iz++ {
		for iy := 0; iy < count[1]; iy++ {
			for ix := 0; ix < count[0]; ix++ {
				out[n] = int32(g.cellIndex([3]int{axis[0][ix], axis[1][iy], axis[2][iz]}))
				n++
			}
		}
	}
	return n
}

// axisNeighbors lists the distinct coordinates coord, coord-1 and coord+1
// along one axis, in that order.
func axisNeighbors(coord, dim int, wrap bool, out *[3]int) int {
	n := 0
	for _, d := range [3]int{0, -1, 1} {
		c := coord + d
		if wrap {
			c = ((c % dim) + dim) % dim
		} else if c < 0 || c >= dim {
			continue
		}
		dup := false
		for k := 0; k < n; k++ {
			if out[k] == c {
				dup = true
				break
			}
		}
		if !dup {
			out[n] = c
			n++
		}
	}
	return n
}

// ensureCells sizes the per-cell buffers and reports whether they were
// reallocated.
func (g *SpatialGrid) ensureCells(need int) bool {
	if !needsRealloc(cap(g.cellEpoch), need) {
		g.cellStart = g.cellStart[:need]
		g.cellCount = g.cellCount[:need]
		g.cellFill = g.cellFill[:need]
		g.cellEpoch = g.cellEpoch[:need]
		return false
	}
	size := growSize(need)
	g.cellStart = make([]int32, need, size)
	g.cellCount = make([]int32, need, size)
	g.cellFill = make([]int32, need, size)
	g.cellEpoch = make([]uint32, need, size)
	g.touched = make([]int32, 0, size)
	g.reallocations++
	return true
}

// ensureParticles sizes the per-particle buffers and reports whether they
// were reallocated.
func (g *SpatialGrid) ensureParticles(need int) bool {
	if !needsRealloc(cap(g.particleCell), need) {
		g.contents = g.contents[:need]
		g.particleCell = g.particleCell[:need]
		g.neighborCount = g.neighborCount[:need]
		g.neighbors = g.neighbors[:need*MaxNeighborCells]
		return false
	}
	size := growSize(need)
	g.contents = make([]int32, need, size)
	g.particleCell = make([]int32, need, size)
	g.neighborCount = make([]uint8, need, size)
	g.neighbors = make([]int32, need*MaxNeighborCells, size*MaxNeighborCells)
	g.reallocations++
	return true
}

// needsRealloc grows when capacity is short and shrinks only when the
// allocation is more than twice what is needed.
func needsRealloc(capacity, need int) bool {
	if capacity < need {
		return true
	}
	return capacity > 2*need && capacity > minGridCapacity
}

func growSize(need int) int {
	size := need + need/4
	if size < minGridCapacity {
		size = minGridCapacity
	}
	return size
}

func (g *SpatialGrid) resetEpochs() {
	clear(g.cellEpoch[:cap(g.cellEpoch)])
	g.epoch = 0
}

// Dims returns the number of cells along each axis.
func (g *SpatialGrid) Dims() [3]int { return g.dims }

// NumCells returns the total number of cells.
func (g *SpatialGrid) NumCells() int { return g.numCells }

// CellSize returns the edge length used by the last rebuild.
func (g *SpatialGrid) CellSize() float64 { return g.cellSize }

// CellWidths returns the actual cell edge along each axis. Each is at least
// CellSize unless the extent itself is smaller.
func (g *SpatialGrid) CellWidths() [3]float64 { return g.cellWidth }

// Epoch returns the current epoch stamp.
func (g *SpatialGrid) Epoch() uint32 { return g.epoch }

// NumParticles returns the particle count of the last rebuild.
func (g *SpatialGrid) NumParticles() int { return g.numParticles }

// Reallocations returns how many times a buffer set was reallocated.
func (g *SpatialGrid) Reallocations() int { return g.reallocations }

// CellOf returns the cell assigned to particle i.
func (g *SpatialGrid) CellOf(i int) int { return int(g.particleCell[i]) }

// Neighborhood returns the cells whose particles are interaction candidates
// for particle i. The slice aliases grid memory and is valid until the next
// Rebuild.
func (g *SpatialGrid) Neighborhood(i int) []int32 {
	base := i * MaxNeighborCells
	return g.neighbors[base : base+int(g.neighborCount[i])]
}

// Cell returns the particle indices in cell c. Stale and out-of-range cells
// are empty. The slice aliases grid memory.
func (g *SpatialGrid) Cell(c int) []int32 {
	if c < 0 || c >= g.numCells || g.cellEpoch[c] != g.epoch {
		return nil
	}
	start := g.cellStart[c]
	return g.contents[start : start+g.cellCount[c]]
}

// validCell reports whether c addresses a cell of the current grid.
func (g *SpatialGrid) validCell(c int32) bool {
	return c >= 0 && int(c) < g.numCells
}

// Occupancy reports the largest cell, the number of occupied cells and the
// mean occupancy of occupied cells for the last rebuild.
func (g *SpatialGrid) Occupancy() (maxCell, occupied int, average float64) {
	occupied = len(g.touched)
	if occupied > 0 {
		average = float64(g.numParticles) / float64(occupied)
	}
	return g.maxCellSize, occupied, average
}
