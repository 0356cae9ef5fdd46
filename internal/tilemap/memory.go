package tilemap

import (
	"fmt"
	"sync"

	"github.com/tidelands/worldstream/internal/terrain"
	"github.com/tidelands/worldstream/internal/tilegrid"
)

// MemoryTileMap is an in-process TileMap backing. The viewer server
// reads its cell store to build chunk payloads, and tests use it to
// observe collaborator calls. It is not a renderer; drawing stays with
// the host engine.
type MemoryTileMap struct {
	mu        sync.Mutex
	tilePixel float64
	nextID    DrawableHandle
	drawables map[DrawableHandle]*Drawable

	createCalls  int
	destroyCalls int

	// failNextCreate makes the next CreateDrawable call fail, exercising
	// the not-yet-resident retry path in the streaming layer.
	failNextCreate bool
}

// Drawable is one allocated chunk surface and its cell contents.
type Drawable struct {
	Origin tilegrid.Point
	TileW  int
	TileH  int
	Cells  [][]terrain.TerrainType
}

// NewMemoryTileMap builds a tile map for the given tile asset pixel size.
func NewMemoryTileMap(tilePixel float64) *MemoryTileMap {
	return &MemoryTileMap{
		tilePixel: tilePixel,
		nextID:    1,
		drawables: make(map[DrawableHandle]*Drawable),
	}
}

// CreateDrawable allocates a cell grid for one chunk.
func (m *MemoryTileMap) CreateDrawable(origin tilegrid.Point, tileW, tileH int) (DrawableHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNextCreate {
		m.failNextCreate = false
		return 0, fmt.Errorf("drawable allocation refused")
	}

	cells := make([][]terrain.TerrainType, tileH)
	for y := range cells {
		cells[y] = make([]terrain.TerrainType, tileW)
	}

	h := m.nextID
	m.nextID++
	m.drawables[h] = &Drawable{
		Origin: origin,
		TileW:  tileW,
		TileH:  tileH,
		Cells:  cells,
	}
	m.createCalls++
	return h, nil
}

// SetCell records the terrain type for one cell. Unknown handles and
// out-of-range indices are ignored; the streaming layer only writes
// cells of drawables it owns.
func (m *MemoryTileMap) SetCell(h DrawableHandle, local tilegrid.TileIndex, t terrain.TerrainType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drawables[h]
	if !ok {
		return
	}
	if local.TX < 0 || local.TX >= d.TileW || local.TY < 0 || local.TY >= d.TileH {
		return
	}
	d.Cells[local.TY][local.TX] = t
}

// DestroyDrawable releases a drawable.
func (m *MemoryTileMap) DestroyDrawable(h DrawableHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.drawables, h)
	m.destroyCalls++
}

// TilePixelExtent reports the tile asset's pixel size.
func (m *MemoryTileMap) TilePixelExtent() float64 {
	return m.tilePixel
}

// Snapshot returns a copy of a drawable's cells, or nil if the handle is
// unknown. Used by the viewer to encode chunk payloads.
func (m *MemoryTileMap) Snapshot(h DrawableHandle) *Drawable {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drawables[h]
	if !ok {
		return nil
	}

	cells := make([][]terrain.TerrainType, len(d.Cells))
	for y, row := range d.Cells {
		cells[y] = append([]terrain.TerrainType(nil), row...)
	}
	return &Drawable{
		Origin: d.Origin,
		TileW:  d.TileW,
		TileH:  d.TileH,
		Cells:  cells,
	}
}

// DrawableCount reports how many drawables are currently allocated.
func (m *MemoryTileMap) DrawableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drawables)
}

// CreateCalls reports the total number of successful and failed
// CreateDrawable calls.
func (m *MemoryTileMap) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// DestroyCalls reports the total number of DestroyDrawable calls.
func (m *MemoryTileMap) DestroyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyCalls
}

// FailNextCreate forces the next CreateDrawable call to fail.
func (m *MemoryTileMap) FailNextCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextCreate = true
}
