package fft3

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"
)

func randomReal(n int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	for _, dims := range [][3]int{{8, 4, 16}, {1, 2, 8}, {4, 1, 1}, {2, 2, 2}, {16, 8, 4}} {
		tr, err := New(dims)
		if err != nil {
			t.Fatalf("New(%v): %v", dims, err)
		}
		src := randomReal(tr.RealLen(), 1)
		spec := make([]complex128, tr.SpectrumLen())
		if err := tr.Forward(spec, src); err != nil {
			t.Fatalf("Forward: %v", err)
		}
		got := make([]float32, tr.RealLen())
		if err := tr.Inverse(got, spec); err != nil {
			t.Fatalf("Inverse: %v", err)
		}
		for i := range src {
			if math.Abs(float64(got[i]-src[i])) > 1e-5 {
				t.Fatalf("dims %v index %d: got %v, want %v", dims, i, got[i], src[i])
			}
		}
	}
}

func TestForwardMatchesNaiveDFT(t *testing.T) {
	dims := [3]int{2, 4, 8}
	tr, err := New(dims)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := randomReal(tr.RealLen(), 2)
	spec := make([]complex128, tr.SpectrumLen())
	if err := tr.Forward(spec, src); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	sd := tr.SpectrumDims()
	for kx := 0; kx < sd[0]; kx++ {
		for ky := 0; ky < sd[1]; ky++ {
			for kz := 0; kz < sd[2]; kz++ {
				var want complex128
				for x := 0; x < dims[0]; x++ {
					for y := 0; y < dims[1]; y++ {
						for z := 0; z < dims[2]; z++ {
							phase := -2 * math.Pi * (float64(kx*x)/float64(dims[0]) +
								float64(ky*y)/float64(dims[1]) +
								float64(kz*z)/float64(dims[2]))
							want += complex(float64(src[(x*dims[1]+y)*dims[2]+z]), 0) * cmplx.Exp(complex(0, phase))
						}
					}
				}
				got := spec[(kx*sd[1]+ky)*sd[2]+kz]
				if cmplx.Abs(got-want) > 1e-4 {
					t.Fatalf("bin (%d,%d,%d): got %v, want %v", kx, ky, kz, got, want)
				}
			}
		}
	}
}

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	for _, dims := range [][3]int{{3, 4, 4}, {4, 0, 4}, {4, 4, 12}} {
		if _, err := New(dims); !errors.Is(err, ErrSize) {
			t.Errorf("New(%v): expected ErrSize, got %v", dims, err)
		}
	}
}

func TestLengthMismatch(t *testing.T) {
	tr, err := New([3]int{4, 4, 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tr.Forward(make([]complex128, 10), make([]float32, 64)); !errors.Is(err, ErrLength) {
		t.Errorf("Forward: expected ErrLength, got %v", err)
	}
	if err := tr.Inverse(make([]float32, 63), make([]complex128, tr.SpectrumLen())); !errors.Is(err, ErrLength) {
		t.Errorf("Inverse: expected ErrLength, got %v", err)
	}
}

func TestNextPowerOf2(t *testing.T) {
	tests := []struct{ in, want int }{{0, 1}, {1, 1}, {2, 2}, {3, 4}, {68, 128}, {76, 128}, {128, 128}}
	for _, tt := range tests {
		if got := NextPowerOf2(tt.in); got != tt.want {
			t.Errorf("NextPowerOf2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func BenchmarkForward64(b *testing.B) {
	tr, err := New([3]int{64, 64, 64})
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	src := randomReal(tr.RealLen(), 3)
	spec := make([]complex128, tr.SpectrumLen())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tr.Forward(spec, src); err != nil {
			b.Fatal(err)
		}
	}
}
