package codec

import (
	"encoding/base64"
	"testing"

	"github.com/tidelands/worldstream/internal/terrain"
	"github.com/tidelands/worldstream/internal/tilegrid"
)

func testPayload() *ChunkPayload {
	tiles := make([][]terrain.TerrainType, 32)
	for y := range tiles {
		tiles[y] = make([]terrain.TerrainType, 32)
		for x := range tiles[y] {
			switch {
			case y < 8:
				tiles[y][x] = terrain.DeepWater
			case y < 12:
				tiles[y][x] = terrain.ShallowWater
			case y < 14:
				tiles[y][x] = terrain.Sand
			default:
				tiles[y][x] = terrain.Grass
			}
		}
	}
	return &ChunkPayload{
		Coord: tilegrid.ChunkCoord{CX: -3, CY: 12},
		TileW: 32,
		TileH: 32,
		Tiles: tiles,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := testPayload()

	encoded, err := EncodeChunkPayload(payload)
	if err != nil {
		t.Fatalf("EncodeChunkPayload failed: %v", err)
	}

	decoded, err := DecodeChunkPayload(encoded)
	if err != nil {
		t.Fatalf("DecodeChunkPayload failed: %v", err)
	}

	if decoded.Coord != payload.Coord {
		t.Errorf("coord = %v, expected %v", decoded.Coord, payload.Coord)
	}
	if decoded.TileW != 32 || decoded.TileH != 32 {
		t.Errorf("extent = %dx%d, expected 32x32", decoded.TileW, decoded.TileH)
	}
	for y := range payload.Tiles {
		for x := range payload.Tiles[y] {
			if decoded.Tiles[y][x] != payload.Tiles[y][x] {
				t.Fatalf("tile (%d,%d) = %v, expected %v", x, y, decoded.Tiles[y][x], payload.Tiles[y][x])
			}
		}
	}
}

func TestEncodedPayloadIsCompact(t *testing.T) {
	payload := testPayload()
	encoded, err := EncodeChunkPayload(payload)
	if err != nil {
		t.Fatalf("EncodeChunkPayload failed: %v", err)
	}

	// 1024 tiles of long runs must compress well below one byte per tile.
	if len(encoded) >= 512 {
		t.Errorf("encoded payload is %d bytes for 1024 tiles, expected strong compression", len(encoded))
	}
}

func TestEncodeRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload *ChunkPayload
	}{
		{"nil payload", nil},
		{"zero extent", &ChunkPayload{TileW: 0, TileH: 32}},
		{"row count mismatch", &ChunkPayload{TileW: 2, TileH: 2, Tiles: [][]terrain.TerrainType{{0, 0}}}},
		{"row width mismatch", &ChunkPayload{TileW: 2, TileH: 1, Tiles: [][]terrain.TerrainType{{0}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := EncodeChunkPayload(tc.payload); err == nil {
				t.Fatalf("expected encode error")
			}
		})
	}
}

func TestDecodeRejectsCorruptPayloads(t *testing.T) {
	payload := testPayload()
	encoded, err := EncodeChunkPayload(payload)
	if err != nil {
		t.Fatalf("EncodeChunkPayload failed: %v", err)
	}

	t.Run("not gzip", func(t *testing.T) {
		if _, err := DecodeChunkPayload([]byte("definitely not gzip")); err == nil {
			t.Fatalf("expected decode error")
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		raw, err := gzipDecompress(encoded)
		if err != nil {
			t.Fatalf("decompress failed: %v", err)
		}
		raw[0] = 'X'
		corrupted, err := gzipCompress(raw, DefaultGzipLevel)
		if err != nil {
			t.Fatalf("recompress failed: %v", err)
		}
		if _, err := DecodeChunkPayload(corrupted); err == nil {
			t.Fatalf("expected decode error for bad magic")
		}
	})

	t.Run("bad version", func(t *testing.T) {
		raw, err := gzipDecompress(encoded)
		if err != nil {
			t.Fatalf("decompress failed: %v", err)
		}
		raw[4] = 99
		corrupted, err := gzipCompress(raw, DefaultGzipLevel)
		if err != nil {
			t.Fatalf("recompress failed: %v", err)
		}
		if _, err := DecodeChunkPayload(corrupted); err == nil {
			t.Fatalf("expected decode error for unsupported version")
		}
	})

	t.Run("truncated runs", func(t *testing.T) {
		raw, err := gzipDecompress(encoded)
		if err != nil {
			t.Fatalf("decompress failed: %v", err)
		}
		truncated, err := gzipCompress(raw[:len(raw)-2], DefaultGzipLevel)
		if err != nil {
			t.Fatalf("recompress failed: %v", err)
		}
		if _, err := DecodeChunkPayload(truncated); err == nil {
			t.Fatalf("expected decode error for truncated runs")
		}
	})
}

func TestFormatChunkPayload(t *testing.T) {
	payload := testPayload()
	encoded, err := EncodeChunkPayload(payload)
	if err != nil {
		t.Fatalf("EncodeChunkPayload failed: %v", err)
	}

	wire := FormatChunkPayload(payload.Coord, encoded, 1024)
	if wire.Format != "rle_gzip" {
		t.Errorf("format = %q, expected rle_gzip", wire.Format)
	}
	if wire.ChunkID != "-3_12" {
		t.Errorf("chunk_id = %q, expected -3_12", wire.ChunkID)
	}
	if wire.Size != len(encoded) {
		t.Errorf("size = %d, expected %d", wire.Size, len(encoded))
	}

	data, err := base64.StdEncoding.DecodeString(wire.Data)
	if err != nil {
		t.Fatalf("wire data is not valid base64: %v", err)
	}
	if _, err := DecodeChunkPayload(data); err != nil {
		t.Fatalf("wire data does not decode: %v", err)
	}
}

func TestDecodeWirePayload(t *testing.T) {
	payload := testPayload()
	encoded, err := EncodeChunkPayload(payload)
	if err != nil {
		t.Fatalf("EncodeChunkPayload failed: %v", err)
	}
	wire := FormatChunkPayload(payload.Coord, encoded, 1024)

	decoded, err := DecodeWirePayload(wire)
	if err != nil {
		t.Fatalf("DecodeWirePayload failed: %v", err)
	}
	if decoded.Coord != payload.Coord {
		t.Errorf("coord = %v, expected %v", decoded.Coord, payload.Coord)
	}

	t.Run("unknown format", func(t *testing.T) {
		bad := *wire
		bad.Format = "zstd"
		if _, err := DecodeWirePayload(&bad); err == nil {
			t.Fatal("expected error for unknown format")
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		bad := *wire
		bad.Data = "not base64!!!"
		if _, err := DecodeWirePayload(&bad); err == nil {
			t.Fatal("expected error for invalid base64 data")
		}
	})
}
