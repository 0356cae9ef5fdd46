package terrain

// TerrainType is the closed set of tile classifications produced by the
// classifier. Values are ordered from deepest water to land so new band
// types can be appended without renumbering.
type TerrainType int

const (
	DeepWater TerrainType = iota
	ShallowWater
	Sand
	Grass
)

// String returns a human-readable name for log lines and payload debugging.
func (t TerrainType) String() string {
	switch t {
	case DeepWater:
		return "deep_water"
	case ShallowWater:
		return "shallow_water"
	case Sand:
		return "sand"
	case Grass:
		return "grass"
	default:
		return "unknown"
	}
}

// Classification thresholds over the noise sample range [-1, 1].
// Band edges follow the lower-inclusive convention: a sample exactly at
// a threshold falls into the band above it.
const (
	deepWaterBelow    = -0.25
	shallowWaterBelow = -0.10
	sandBelow         = 0.0
)

// Classifier maps world tile coordinates to terrain types by sampling a
// seeded coherent-noise source. It is stateless beyond the noise
// parameters and safe to share across goroutines.
type Classifier struct {
	source    Source
	frequency float64
}

// NewClassifier builds a classifier over the given noise source.
// Frequency scales tile coordinates before sampling; smaller values
// produce larger terrain features.
func NewClassifier(source Source, frequency float64) *Classifier {
	return &Classifier{
		source:    source,
		frequency: frequency,
	}
}

// Classify returns the terrain type for the tile at the given absolute
// world tile coordinate. Deterministic for a fixed seed and frequency.
func (c *Classifier) Classify(tileX, tileY int) TerrainType {
	sample := c.source.Sample(float64(tileX)*c.frequency, float64(tileY)*c.frequency)
	switch {
	case sample < deepWaterBelow:
		return DeepWater
	case sample < shallowWaterBelow:
		return ShallowWater
	case sample < sandBelow:
		return Sand
	default:
		return Grass
	}
}
