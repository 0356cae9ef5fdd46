package tilemap

import (
	"testing"

	"github.com/tidelands/worldstream/internal/terrain"
	"github.com/tidelands/worldstream/internal/tilegrid"
)

func TestMemoryTileMapLifecycle(t *testing.T) {
	m := NewMemoryTileMap(16)

	if m.TilePixelExtent() != 16 {
		t.Errorf("TilePixelExtent() = %f, expected 16", m.TilePixelExtent())
	}

	h, err := m.CreateDrawable(tilegrid.Point{X: 512, Y: 0}, 32, 32)
	if err != nil {
		t.Fatalf("CreateDrawable failed: %v", err)
	}
	if m.DrawableCount() != 1 {
		t.Fatalf("expected 1 drawable, got %d", m.DrawableCount())
	}

	m.SetCell(h, tilegrid.TileIndex{TX: 3, TY: 5}, terrain.Sand)
	snap := m.Snapshot(h)
	if snap == nil {
		t.Fatalf("expected snapshot for live drawable")
	}
	if snap.Cells[5][3] != terrain.Sand {
		t.Errorf("cell (3,5) = %v, expected sand", snap.Cells[5][3])
	}
	if snap.Origin.X != 512 {
		t.Errorf("origin X = %f, expected 512", snap.Origin.X)
	}

	m.DestroyDrawable(h)
	if m.DrawableCount() != 0 {
		t.Errorf("expected 0 drawables after destroy, got %d", m.DrawableCount())
	}
	if m.Snapshot(h) != nil {
		t.Errorf("expected nil snapshot after destroy")
	}
}

func TestMemoryTileMapIgnoresBadWrites(t *testing.T) {
	m := NewMemoryTileMap(16)
	h, err := m.CreateDrawable(tilegrid.Point{}, 4, 4)
	if err != nil {
		t.Fatalf("CreateDrawable failed: %v", err)
	}

	// Out-of-range indices and unknown handles must not panic.
	m.SetCell(h, tilegrid.TileIndex{TX: -1, TY: 0}, terrain.Grass)
	m.SetCell(h, tilegrid.TileIndex{TX: 4, TY: 0}, terrain.Grass)
	m.SetCell(DrawableHandle(9999), tilegrid.TileIndex{TX: 0, TY: 0}, terrain.Grass)

	snap := m.Snapshot(h)
	for y := range snap.Cells {
		for x := range snap.Cells[y] {
			if snap.Cells[y][x] != terrain.DeepWater {
				t.Fatalf("cell (%d,%d) unexpectedly written: %v", x, y, snap.Cells[y][x])
			}
		}
	}
}

func TestMemoryTileMapFailNextCreate(t *testing.T) {
	m := NewMemoryTileMap(16)
	m.FailNextCreate()

	if _, err := m.CreateDrawable(tilegrid.Point{}, 8, 8); err == nil {
		t.Fatalf("expected forced create failure")
	}
	if m.DrawableCount() != 0 {
		t.Errorf("failed create must not leave a drawable behind")
	}

	// Next attempt succeeds.
	if _, err := m.CreateDrawable(tilegrid.Point{}, 8, 8); err != nil {
		t.Fatalf("CreateDrawable failed after forced failure cleared: %v", err)
	}
}

func TestAtlasCellMapping(t *testing.T) {
	tests := []struct {
		terrain terrain.TerrainType
		want    AtlasCell
	}{
		{terrain.DeepWater, AtlasCell{Column: 3, Row: 1}},
		{terrain.ShallowWater, AtlasCell{Column: 3, Row: 0}},
		{terrain.Sand, AtlasCell{Column: 1, Row: 0}},
		{terrain.Grass, AtlasCell{Column: 0, Row: 0}},
	}

	for _, tc := range tests {
		if got := AtlasCellFor(tc.terrain); got != tc.want {
			t.Errorf("AtlasCellFor(%v) = %v, expected %v", tc.terrain, got, tc.want)
		}
	}
}
