package terrain

import (
	"fmt"

	perlin "github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Supported noise algorithm names, as accepted by NOISE_ALGORITHM.
const (
	AlgorithmSimplex = "simplex"
	AlgorithmPerlin  = "perlin"
)

// Source is a seeded 2D coherent-noise function. Samples are expected
// to fall roughly within [-1, 1] and vary continuously with position so
// neighboring tiles form contiguous terrain features.
type Source interface {
	Sample(x, y float64) float64
	Seed() int64
}

// NewSource builds a noise source for the named algorithm.
func NewSource(algorithm string, seed int64) (Source, error) {
	switch algorithm {
	case AlgorithmSimplex:
		return &simplexSource{noise: opensimplex.New(seed), seed: seed}, nil
	case AlgorithmPerlin:
		// alpha=2, beta=2, n=3 gives terrain-like noise
		return &perlinSource{noise: perlin.NewPerlin(2, 2, 3, seed), seed: seed}, nil
	default:
		return nil, fmt.Errorf("unknown noise algorithm %q", algorithm)
	}
}

type simplexSource struct {
	noise opensimplex.Noise
	seed  int64
}

func (s *simplexSource) Sample(x, y float64) float64 {
	return s.noise.Eval2(x, y)
}

func (s *simplexSource) Seed() int64 {
	return s.seed
}

type perlinSource struct {
	noise *perlin.Perlin
	seed  int64
}

func (s *perlinSource) Sample(x, y float64) float64 {
	return s.noise.Noise2D(x, y)
}

func (s *perlinSource) Seed() int64 {
	return s.seed
}
