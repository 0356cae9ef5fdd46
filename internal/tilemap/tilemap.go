package tilemap

import (
	"github.com/tidelands/worldstream/internal/terrain"
	"github.com/tidelands/worldstream/internal/tilegrid"
)

// DrawableHandle identifies a drawable chunk owned by the rendering
// collaborator. Handles are opaque to the streaming layer.
type DrawableHandle int64

// AtlasCell is a column/row position in the tile atlas.
type AtlasCell struct {
	Column int
	Row    int
}

// AtlasCellFor maps a terrain type to its atlas cell. The mapping is an
// external atlas convention and is passed through unchanged.
func AtlasCellFor(t terrain.TerrainType) AtlasCell {
	switch t {
	case terrain.DeepWater:
		return AtlasCell{Column: 3, Row: 1}
	case terrain.ShallowWater:
		return AtlasCell{Column: 3, Row: 0}
	case terrain.Sand:
		return AtlasCell{Column: 1, Row: 0}
	default:
		return AtlasCell{Column: 0, Row: 0}
	}
}

// TileMap is the boundary with the rendering collaborator. The streaming
// layer drives drawable lifetime 1:1 with chunk create/evict events and
// never touches a drawable after destroying it.
type TileMap interface {
	// CreateDrawable allocates a drawable chunk covering tileW x tileH
	// tiles with its top-left corner at origin. A failed allocation
	// leaves no drawable behind; the caller retries on a later refresh.
	CreateDrawable(origin tilegrid.Point, tileW, tileH int) (DrawableHandle, error)

	// SetCell assigns the visual tile for one cell of a drawable.
	SetCell(h DrawableHandle, local tilegrid.TileIndex, t terrain.TerrainType)

	// DestroyDrawable releases a drawable and all its cells.
	DestroyDrawable(h DrawableHandle)

	// TilePixelExtent reports the configured tile asset's pixel size.
	TilePixelExtent() float64
}
