package tilegrid

import (
	"fmt"
	"math"
)

// Point represents a continuous world position in pixels.
// Pixel positions, tile indices, and chunk coordinates are deliberately
// distinct types so unit mix-ups fail to compile.
type Point struct {
	X float64 // pixels
	Y float64 // pixels
}

// ChunkCoord identifies a chunk on the infinite chunk grid.
type ChunkCoord struct {
	CX int
	CY int
}

// TileIndex identifies a tile, either chunk-local or world-absolute
// depending on context.
type TileIndex struct {
	TX int
	TY int
}

// String returns the canonical "cx_cy" form used in log lines and
// viewer chunk IDs.
func (c ChunkCoord) String() string {
	return fmt.Sprintf("%d_%d", c.CX, c.CY)
}

// FloorDiv divides a by b rounding toward negative infinity.
// Go's integer division truncates toward zero, which would mirror the
// chunk grid around the origin; flooring keeps negative-axis chunks
// contiguous.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// WorldToChunk converts a world position to the coordinate of the chunk
// containing it. chunkPixelW and chunkPixelH are the chunk's world-space
// extents in pixels (tile extent times tile pixel size).
func WorldToChunk(p Point, chunkPixelW, chunkPixelH float64) ChunkCoord {
	return ChunkCoord{
		CX: int(math.Floor(p.X / chunkPixelW)),
		CY: int(math.Floor(p.Y / chunkPixelH)),
	}
}

// ChunkOrigin returns the world position of the chunk's top-left corner.
func ChunkOrigin(c ChunkCoord, chunkPixelW, chunkPixelH float64) Point {
	return Point{
		X: float64(c.CX) * chunkPixelW,
		Y: float64(c.CY) * chunkPixelH,
	}
}

// ChunkContains reports whether p lies inside the chunk's world-space
// rectangle. Lower edges are inclusive, upper edges exclusive, so every
// boundary pixel belongs to exactly one chunk.
func ChunkContains(c ChunkCoord, p Point, chunkPixelW, chunkPixelH float64) bool {
	origin := ChunkOrigin(c, chunkPixelW, chunkPixelH)
	return p.X >= origin.X && p.X < origin.X+chunkPixelW &&
		p.Y >= origin.Y && p.Y < origin.Y+chunkPixelH
}

// WorldToLocalTile converts a world position into the tile index within
// the chunk c. The caller must already know that p lies within c's
// bounds; for positions outside the chunk the result is unspecified
// (no clamping is performed).
func WorldToLocalTile(p Point, c ChunkCoord, chunkPixelW, chunkPixelH, tilePixel float64) TileIndex {
	origin := ChunkOrigin(c, chunkPixelW, chunkPixelH)
	return TileIndex{
		TX: int((p.X - origin.X) / tilePixel),
		TY: int((p.Y - origin.Y) / tilePixel),
	}
}

// ChebyshevDist returns the chessboard distance between two chunk
// coordinates, the metric the streaming window is defined over.
func ChebyshevDist(a, b ChunkCoord) int {
	dx := a.CX - b.CX
	if dx < 0 {
		dx = -dx
	}
	dy := a.CY - b.CY
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// ValidatePoint rejects positions that cannot participate in window
// computation.
func ValidatePoint(p Point) error {
	if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
		return fmt.Errorf("invalid X: %f", p.X)
	}
	if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("invalid Y: %f", p.Y)
	}
	return nil
}
