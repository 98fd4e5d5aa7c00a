// Package systems provides ECS systems for the simulation.
package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slimekeep/components"
)

// SpatialQuery finds entities overlapping a circle.
// Implementations may return an empty slice; they must not block.
type SpatialQuery interface {
	Overlap(center components.Position, radius float32, mask components.Layer) []ecs.Entity
}

// gridEntry caches what a query needs so lookups never touch the world.
type gridEntry struct {
	e     ecs.Entity
	pos   components.Position
	layer components.Layer
}

// SpatialGrid provides O(1) neighbor lookups using a cell-based grid.
// The field is bounded: positions outside are clamped into edge cells.
type SpatialGrid struct {
	cellSize float32
	cols     int
	rows     int
	cells    [][]gridEntry
}

// NewSpatialGrid creates a spatial grid covering the given world size.
func NewSpatialGrid(width, height, cellSize float32) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 32
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]gridEntry, cols*rows)
	for i := range cells {
		cells[i] = make([]gridEntry, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    cells,
	}
}

// Clear removes all entities from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity to the grid at the given position.
func (g *SpatialGrid) Insert(e ecs.Entity, pos components.Position, layer components.Layer) {
	col, row := g.cellCoords(pos.X, pos.Y)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], gridEntry{e: e, pos: pos, layer: layer})
}

// Overlap returns every entity matching mask within radius of center.
func (g *SpatialGrid) Overlap(center components.Position, radius float32, mask components.Layer) []ecs.Entity {
	return g.OverlapInto(nil, center, radius, mask, 0)
}

// OverlapInto appends matches to dst and returns it. A positive limit stops
// the scan once dst holds that many entities. Reuse dst across calls to
// avoid allocations.
func (g *SpatialGrid) OverlapInto(dst []ecs.Entity, center components.Position, radius float32, mask components.Layer, limit int) []ecs.Entity {
	if radius < 0 {
		return dst
	}
	minCol, minRow := g.cellCoords(center.X-radius, center.Y-radius)
	maxCol, maxRow := g.cellCoords(center.X+radius, center.Y+radius)
	radiusSq := radius * radius

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, entry := range g.cells[row*g.cols+col] {
				if !entry.layer.Matches(mask) {
					continue
				}
				if center.DistSq(entry.pos) > radiusSq {
					continue
				}
				dst = append(dst, entry.e)
				if limit > 0 && len(dst) >= limit {
					return dst
				}
			}
		}
	}
	return dst
}

// cellCoords returns the clamped cell column and row for a world position.
func (g *SpatialGrid) cellCoords(x, y float32) (int, int) {
	col := int(x / g.cellSize)
	row := int(y / g.cellSize)

	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}
