package keyframe

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PositionIndex answers "nearest among the points inserted so far" queries.
// Implementations must break distance ties towards the smallest index.
type PositionIndex interface {
	// Insert adds the point p under index i. Indices are inserted in
	// increasing order.
	Insert(i int, p r3.Vec)

	// NearestAmongInsertedSoFar returns the index of the inserted point
	// nearest to p and its Euclidean distance, or (-1, +Inf) when the index
	// holds no candidate.
	NearestAmongInsertedSoFar(p r3.Vec) (int, float64)
}

// LinearIndex is the exhaustive PositionIndex: every query scans every
// inserted point.
type LinearIndex struct {
	points []r3.Vec
	ids    []int
}

// NewLinearIndex creates an empty LinearIndex.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{}
}

// Insert implements PositionIndex.
func (li *LinearIndex) Insert(i int, p r3.Vec) {
	li.points = append(li.points, p)
	li.ids = append(li.ids, i)
}

// NearestAmongInsertedSoFar implements PositionIndex.
func (li *LinearIndex) NearestAmongInsertedSoFar(p r3.Vec) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for k, q := range li.points {
		d := r3.Norm(r3.Sub(q, p))
		if d < bestDist || (d == bestDist && li.ids[k] < best) {
			best, bestDist = li.ids[k], d
		}
	}
	return best, bestDist
}

// cellKey addresses one cube of a GridIndex.
type cellKey struct {
	X, Y, Z int64
}

// GridIndex is a PositionIndex over a uniform 3D grid whose cell edge equals
// the search radius. A query only visits the 27 cells around the query
// point, so it is exact for any nearest neighbour closer than the radius and
// reports (-1, +Inf) when nothing lies that close.
type GridIndex struct {
	CellSize float64
	Grid     map[cellKey][]int // cell -> indices into points
	points   []r3.Vec
	ids      []int
}

// NewGridIndex creates a GridIndex with the given search radius in metres.
// radius must be positive.
func NewGridIndex(radius float64) *GridIndex {
	return &GridIndex{
		CellSize: radius,
		Grid:     make(map[cellKey][]int),
	}
}

func (gi *GridIndex) cellOf(p r3.Vec) cellKey {
	return cellKey{
		X: int64(math.Floor(p.X / gi.CellSize)),
		Y: int64(math.Floor(p.Y / gi.CellSize)),
		Z: int64(math.Floor(p.Z / gi.CellSize)),
	}
}

// Insert implements PositionIndex.
func (gi *GridIndex) Insert(i int, p r3.Vec) {
	k := gi.cellOf(p)
	gi.Grid[k] = append(gi.Grid[k], len(gi.points))
	gi.points = append(gi.points, p)
	gi.ids = append(gi.ids, i)
}

// Len returns the number of inserted points.
func (gi *GridIndex) Len() int { return len(gi.points) }

// NearestAmongInsertedSoFar implements PositionIndex.
func (gi *GridIndex) NearestAmongInsertedSoFar(p r3.Vec) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	c := gi.cellOf(p)

	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, k := range gi.Grid[cellKey{c.X + dx, c.Y + dy, c.Z + dz}] {
					d := r3.Norm(r3.Sub(gi.points[k], p))
					if d > gi.CellSize {
						continue
					}
					id := gi.ids[k]
					if d < bestDist || (d == bestDist && id < best) {
						best, bestDist = id, d
					}
				}
			}
		}
	}
	return best, bestDist
}
