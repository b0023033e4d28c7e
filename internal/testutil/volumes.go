package testutil

import (
	"math/rand"

	"github.com/cwbudde/algo-fold/volume"
)

// Ramp returns a row-major volume whose value is its flat index.
func Ramp(shape volume.Shape) *volume.Volume {
	v := mustNew(shape)
	for i := range v.Data() {
		v.Data()[i] = float32(i)
	}
	return v
}

// DeterministicNoise returns a volume of uniform noise in [-amplitude, amplitude)
// generated from a fixed seed.
func DeterministicNoise(shape volume.Shape, seed int64, amplitude float32) *volume.Volume {
	v := mustNew(shape)
	rng := rand.New(rand.NewSource(seed))
	for i := range v.Data() {
		v.Data()[i] = (rng.Float32()*2 - 1) * amplitude
	}
	return v
}

// Impulse returns a volume with a single 1 at p.
func Impulse(shape volume.Shape, p [3]int) *volume.Volume {
	v := mustNew(shape)
	v.Set(p[0], p[1], p[2], 1)
	return v
}

// Constant returns a volume filled with value.
func Constant(shape volume.Shape, value float32) *volume.Volume {
	v := mustNew(shape)
	v.Fill(value)
	return v
}

func mustNew(shape volume.Shape) *volume.Volume {
	v, err := volume.New(shape)
	if err != nil {
		panic(err)
	}
	return v
}
