package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/tidelands/worldstream/internal/terrain"
	"github.com/tidelands/worldstream/internal/tilegrid"
)

const (
	// Magic number for the chunk payload format
	PayloadMagic = "TCHK"
	// Current format version
	PayloadVersion = 1
	// Gzip compression level (balance between size and speed)
	DefaultGzipLevel = 6
)

// ChunkPayload is the decoded form of one chunk shipped to a viewer.
type ChunkPayload struct {
	Coord tilegrid.ChunkCoord
	TileW int
	TileH int
	Tiles [][]terrain.TerrainType
}

// WirePayload is the JSON envelope carrying an encoded chunk over the
// viewer websocket.
type WirePayload struct {
	Format           string `json:"format"` // "rle_gzip"
	ChunkID          string `json:"chunk_id"`
	Data             string `json:"data"` // base64-encoded
	Size             int    `json:"size"`
	UncompressedSize int    `json:"uncompressed_size"`
}

// EncodeChunkPayload serializes a chunk's tiles into the versioned
// binary format: header, then run-length-encoded tile values, the whole
// stream gzip-compressed. Terrain runs dominate real chunks, so RLE
// plus gzip keeps payloads small without per-tile quantization.
func EncodeChunkPayload(p *ChunkPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is nil")
	}
	if p.TileW <= 0 || p.TileH <= 0 {
		return nil, fmt.Errorf("invalid tile extent %dx%d", p.TileW, p.TileH)
	}
	if len(p.Tiles) != p.TileH {
		return nil, fmt.Errorf("tile rows %d do not match extent %d", len(p.Tiles), p.TileH)
	}

	var raw bytes.Buffer
	raw.WriteString(PayloadMagic)
	raw.WriteByte(PayloadVersion)
	if err := binary.Write(&raw, binary.LittleEndian, int64(p.Coord.CX)); err != nil {
		return nil, errors.Wrap(err, "write cx")
	}
	if err := binary.Write(&raw, binary.LittleEndian, int64(p.Coord.CY)); err != nil {
		return nil, errors.Wrap(err, "write cy")
	}
	if err := binary.Write(&raw, binary.LittleEndian, uint16(p.TileW)); err != nil {
		return nil, errors.Wrap(err, "write width")
	}
	if err := binary.Write(&raw, binary.LittleEndian, uint16(p.TileH)); err != nil {
		return nil, errors.Wrap(err, "write height")
	}

	if err := writeRuns(&raw, p); err != nil {
		return nil, err
	}

	compressed, err := gzipCompress(raw.Bytes(), DefaultGzipLevel)
	if err != nil {
		return nil, errors.Wrap(err, "compress payload")
	}
	return compressed, nil
}

// writeRuns emits (uvarint run length, tile value) pairs in row-major
// order.
func writeRuns(buf *bytes.Buffer, p *ChunkPayload) error {
	var scratch [binary.MaxVarintLen64]byte

	haveRun := false
	var runValue terrain.TerrainType
	var runLength uint64

	flush := func() {
		if !haveRun {
			return
		}
		n := binary.PutUvarint(scratch[:], runLength)
		buf.Write(scratch[:n])
		buf.WriteByte(byte(runValue))
	}

	for y, row := range p.Tiles {
		if len(row) != p.TileW {
			return fmt.Errorf("row %d has %d tiles, expected %d", y, len(row), p.TileW)
		}
		for _, t := range row {
			if t < 0 || t > 255 {
				return fmt.Errorf("tile value %d does not fit payload byte", t)
			}
			if haveRun && t == runValue {
				runLength++
				continue
			}
			flush()
			haveRun = true
			runValue = t
			runLength = 1
		}
	}
	flush()
	return nil
}

// DecodeChunkPayload parses an encoded chunk payload, validating the
// magic, version, and tile count.
func DecodeChunkPayload(data []byte) (*ChunkPayload, error) {
	raw, err := gzipDecompress(data)
	if err != nil {
		return nil, errors.Wrap(err, "decompress payload")
	}

	buf := bytes.NewReader(raw)

	magic := make([]byte, len(PayloadMagic))
	if _, err := io.ReadFull(buf, magic); err != nil {
		return nil, errors.Wrap(err, "read magic")
	}
	if string(magic) != PayloadMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}

	version, err := buf.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read version")
	}
	if version != PayloadVersion {
		return nil, fmt.Errorf("unsupported payload version %d", version)
	}

	var cx, cy int64
	var w, h uint16
	if err := binary.Read(buf, binary.LittleEndian, &cx); err != nil {
		return nil, errors.Wrap(err, "read cx")
	}
	if err := binary.Read(buf, binary.LittleEndian, &cy); err != nil {
		return nil, errors.Wrap(err, "read cy")
	}
	if err := binary.Read(buf, binary.LittleEndian, &w); err != nil {
		return nil, errors.Wrap(err, "read width")
	}
	if err := binary.Read(buf, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "read height")
	}
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("invalid tile extent %dx%d", w, h)
	}

	p := &ChunkPayload{
		Coord: tilegrid.ChunkCoord{CX: int(cx), CY: int(cy)},
		TileW: int(w),
		TileH: int(h),
		Tiles: make([][]terrain.TerrainType, h),
	}
	for y := range p.Tiles {
		p.Tiles[y] = make([]terrain.TerrainType, w)
	}

	total := int(w) * int(h)
	filled := 0
	for filled < total {
		runLength, err := binary.ReadUvarint(buf)
		if err != nil {
			return nil, errors.Wrap(err, "read run length")
		}
		value, err := buf.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "read run value")
		}
		if terrain.TerrainType(value) > terrain.Grass {
			return nil, fmt.Errorf("unknown terrain value %d", value)
		}
		if runLength == 0 || filled+int(runLength) > total {
			return nil, fmt.Errorf("run of %d tiles overflows %d-tile chunk", runLength, total)
		}
		for i := 0; i < int(runLength); i++ {
			p.Tiles[filled/int(w)][filled%int(w)] = terrain.TerrainType(value)
			filled++
		}
	}
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after tile runs", buf.Len())
	}

	return p, nil
}

// FormatChunkPayload wraps an encoded payload in the JSON envelope sent
// over the viewer websocket.
func FormatChunkPayload(coord tilegrid.ChunkCoord, encoded []byte, uncompressedTiles int) *WirePayload {
	return &WirePayload{
		Format:           "rle_gzip",
		ChunkID:          coord.String(),
		Data:             base64.StdEncoding.EncodeToString(encoded),
		Size:             len(encoded),
		UncompressedSize: uncompressedTiles,
	}
}

// DecodeWirePayload unwraps the JSON envelope and decodes the chunk
// payload it carries.
func DecodeWirePayload(w *WirePayload) (*ChunkPayload, error) {
	if w.Format != "rle_gzip" {
		return nil, fmt.Errorf("unsupported payload format %q", w.Format)
	}
	encoded, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding payload data")
	}
	return DecodeChunkPayload(encoded)
}

func gzipCompress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}
