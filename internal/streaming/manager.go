package streaming

import (
	"fmt"
	"log"
	"sync"

	"github.com/tidelands/worldstream/internal/config"
	"github.com/tidelands/worldstream/internal/performance"
	"github.com/tidelands/worldstream/internal/terrain"
	"github.com/tidelands/worldstream/internal/tilegrid"
	"github.com/tidelands/worldstream/internal/tilemap"
)

// Chunk is one resident block of terrain tiles. Tiles are generated
// exactly once at creation and never mutated while the chunk is
// resident; a chunk evicted and re-entering the window is regenerated
// from scratch.
type Chunk struct {
	Coord    tilegrid.ChunkCoord
	Tiles    [][]terrain.TerrainType
	Drawable tilemap.DrawableHandle
}

// RefreshDelta describes the chunk set changes performed by one
// Refresh pass.
type RefreshDelta struct {
	Center  tilegrid.ChunkCoord
	Created []tilegrid.ChunkCoord
	Evicted []tilegrid.ChunkCoord
}

// Manager owns the resident chunk set and keeps it in sync with the
// square window around the observer. It is the only component that
// inserts or removes resident chunks, and it drives drawable lifetime
// 1:1 with chunk create/evict events.
type Manager struct {
	mu sync.Mutex

	stream     config.StreamConfig
	classifier *terrain.Classifier
	tiles      tilemap.TileMap
	profiler   *performance.Profiler

	tilePixel   float64
	chunkPixelW float64
	chunkPixelH float64

	resident map[tilegrid.ChunkCoord]*Chunk
}

// NewManager builds a stream manager. The tile pixel extent is read
// from the rendering collaborator; a zero extent from either side is a
// fatal precondition and refuses construction.
func NewManager(stream config.StreamConfig, classifier *terrain.Classifier, tiles tilemap.TileMap, profiler *performance.Profiler) (*Manager, error) {
	if stream.ChunkTileWidth <= 0 || stream.ChunkTileHeight <= 0 {
		return nil, fmt.Errorf("chunk tile extent %dx%d must be positive", stream.ChunkTileWidth, stream.ChunkTileHeight)
	}
	if stream.BufferRadius <= 0 {
		return nil, fmt.Errorf("buffer radius %d must be positive", stream.BufferRadius)
	}

	tilePixel := tiles.TilePixelExtent()
	if tilePixel <= 0 {
		return nil, fmt.Errorf("tile pixel extent %f must be positive", tilePixel)
	}

	if profiler == nil {
		profiler = performance.NewProfiler(false)
	}

	return &Manager{
		stream:      stream,
		classifier:  classifier,
		tiles:       tiles,
		profiler:    profiler,
		tilePixel:   tilePixel,
		chunkPixelW: float64(stream.ChunkTileWidth) * tilePixel,
		chunkPixelH: float64(stream.ChunkTileHeight) * tilePixel,
		resident:    make(map[tilegrid.ChunkCoord]*Chunk),
	}, nil
}

// Refresh synchronizes the resident set with the window around the
// observer position. Loading runs before unloading so the resident set
// never goes empty mid-pass, even in a single-chunk-window
// configuration. The whole pass holds the manager lock, so concurrent
// callers cannot create or evict a chunk twice.
func (m *Manager) Refresh(pos tilegrid.Point) (*RefreshDelta, error) {
	if err := tilegrid.ValidatePoint(pos); err != nil {
		return nil, fmt.Errorf("observer position: %w", err)
	}

	op := m.profiler.Start("stream.refresh")
	defer op.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	center := tilegrid.WorldToChunk(pos, m.chunkPixelW, m.chunkPixelH)
	delta := &RefreshDelta{Center: center}

	m.loadWindow(center, delta)
	m.evictOutside(center, delta)

	if len(delta.Created) > 0 || len(delta.Evicted) > 0 {
		log.Printf("[Stream] refresh: center=%s created=%d evicted=%d resident=%d",
			center, len(delta.Created), len(delta.Evicted), len(m.resident))
	}
	return delta, nil
}

// loadWindow creates every missing chunk in the inclusive square window
// [center-r, center+r].
func (m *Manager) loadWindow(center tilegrid.ChunkCoord, delta *RefreshDelta) {
	r := m.stream.BufferRadius
	for cy := center.CY - r; cy <= center.CY+r; cy++ {
		for cx := center.CX - r; cx <= center.CX+r; cx++ {
			coord := tilegrid.ChunkCoord{CX: cx, CY: cy}
			if _, ok := m.resident[coord]; ok {
				continue
			}
			chunk, err := m.createChunk(coord)
			if err != nil {
				// Not recorded as resident; creation is retried on the
				// next refresh.
				log.Printf("[Stream] chunk %s creation failed: %v", coord, err)
				continue
			}
			m.resident[coord] = chunk
			delta.Created = append(delta.Created, coord)
		}
	}
}

// evictOutside removes every resident chunk whose distance from the
// center exceeds the buffer radius. The survival test is symmetric: a
// chunk stays exactly when the observer's chunk lies within the buffer
// window centered on it. Victims are collected first so the map is
// never mutated while being iterated.
func (m *Manager) evictOutside(center tilegrid.ChunkCoord, delta *RefreshDelta) {
	var victims []tilegrid.ChunkCoord
	for coord := range m.resident {
		if tilegrid.ChebyshevDist(coord, center) > m.stream.BufferRadius {
			victims = append(victims, coord)
		}
	}

	for _, coord := range victims {
		chunk := m.resident[coord]
		m.tiles.DestroyDrawable(chunk.Drawable)
		delete(m.resident, coord)
		delta.Evicted = append(delta.Evicted, coord)
	}
}

// createChunk allocates a drawable, generates every tile through the
// classifier, and pushes the cells to the tile map. A chunk is fully
// populated before it is considered resident, or not created at all.
func (m *Manager) createChunk(coord tilegrid.ChunkCoord) (*Chunk, error) {
	origin := tilegrid.ChunkOrigin(coord, m.chunkPixelW, m.chunkPixelH)
	drawable, err := m.tiles.CreateDrawable(origin, m.stream.ChunkTileWidth, m.stream.ChunkTileHeight)
	if err != nil {
		return nil, fmt.Errorf("create drawable: %w", err)
	}

	op := m.profiler.Start("terrain.classify_chunk")
	tiles := make([][]terrain.TerrainType, m.stream.ChunkTileHeight)
	for ly := range tiles {
		row := make([]terrain.TerrainType, m.stream.ChunkTileWidth)
		for lx := range row {
			worldTileX := coord.CX*m.stream.ChunkTileWidth + lx
			worldTileY := coord.CY*m.stream.ChunkTileHeight + ly
			t := m.classifier.Classify(worldTileX, worldTileY)
			row[lx] = t
			m.tiles.SetCell(drawable, tilegrid.TileIndex{TX: lx, TY: ly}, t)
		}
		tiles[ly] = row
	}
	op.End()

	return &Chunk{
		Coord:    coord,
		Tiles:    tiles,
		Drawable: drawable,
	}, nil
}

// ToChunkCoordinate converts a world position to the coordinate of the
// chunk containing it, flooring toward negative infinity on both axes.
func (m *Manager) ToChunkCoordinate(pos tilegrid.Point) tilegrid.ChunkCoord {
	return tilegrid.WorldToChunk(pos, m.chunkPixelW, m.chunkPixelH)
}

// IsWorldPositionInChunk reports whether pos lies in the chunk's
// world-space rectangle, lower-inclusive and upper-exclusive.
func (m *Manager) IsWorldPositionInChunk(pos tilegrid.Point, coord tilegrid.ChunkCoord) bool {
	return tilegrid.ChunkContains(coord, pos, m.chunkPixelW, m.chunkPixelH)
}

// WorldToLocalTile converts a world position to the tile index within
// its owning chunk. The position must lie within a chunk the caller has
// already resolved; results for outside positions are unspecified.
func (m *Manager) WorldToLocalTile(pos tilegrid.Point) tilegrid.TileIndex {
	coord := m.ToChunkCoordinate(pos)
	return tilegrid.WorldToLocalTile(pos, coord, m.chunkPixelW, m.chunkPixelH, m.tilePixel)
}

// ChunkAt returns the resident chunk at coord, if any.
func (m *Manager) ChunkAt(coord tilegrid.ChunkCoord) (*Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.resident[coord]
	return chunk, ok
}

// ResidentCoords returns the coordinates of all resident chunks.
func (m *Manager) ResidentCoords() []tilegrid.ChunkCoord {
	m.mu.Lock()
	defer m.mu.Unlock()
	coords := make([]tilegrid.ChunkCoord, 0, len(m.resident))
	for coord := range m.resident {
		coords = append(coords, coord)
	}
	return coords
}

// ResidentCount returns the number of resident chunks.
func (m *Manager) ResidentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resident)
}

// Stream returns the manager's streaming parameters.
func (m *Manager) Stream() config.StreamConfig {
	return m.stream
}
