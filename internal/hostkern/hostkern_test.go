package hostkern

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-vecmath/cpu"
)

func TestRegistryLookupPrefersHigherPriority(t *testing.T) {
	reg := &Registry{}
	reg.Register(Entry{Name: "scalar", SIMDLevel: cpu.SIMDNone, Priority: 0})
	reg.Register(Entry{Name: "unroll8", SIMDLevel: cpu.SIMDAVX2, Priority: 20})
	reg.Register(Entry{Name: "unroll4", SIMDLevel: cpu.SIMDSSE2, Priority: 10})

	tests := []struct {
		features cpu.Features
		want     string
	}{
		{cpu.Features{HasSSE2: true, HasAVX2: true}, "unroll8"},
		{cpu.Features{HasSSE2: true}, "unroll4"},
		{cpu.Features{}, "scalar"},
		{cpu.Features{HasSSE2: true, HasAVX2: true, ForceGeneric: true}, "scalar"},
	}
	for _, tt := range tests {
		entry := reg.Lookup(tt.features)
		if entry == nil || entry.Name != tt.want {
			t.Fatalf("Lookup(%+v) = %#v, want %s", tt.features, entry, tt.want)
		}
	}
}

func TestEmptyRegistry(t *testing.T) {
	if entry := (&Registry{}).Lookup(cpu.Features{}); entry != nil {
		t.Fatalf("expected nil, got %#v", entry)
	}
}

func TestImplementationsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n <= 37; n++ {
		a := make([]float32, n)
		b := make([]float32, n+3)
		var want float64
		for i := range a {
			a[i] = rng.Float32()*2 - 1
			b[i] = rng.Float32()*2 - 1
			want += float64(a[i]) * float64(b[i])
		}
		for _, e := range Global.Entries() {
			got := e.Dot(a, b)
			if math.Abs(float64(got)-want) > 1e-5 {
				t.Errorf("%s n=%d: got %v, want %v", e.Name, n, got, want)
			}
		}
	}
}

func TestDotUsesActive(t *testing.T) {
	if Active() == nil {
		t.Fatal("no active implementation")
	}
	a := []float32{1, 2, 3, 4, 5}
	if got := Dot(a, a); got != 55 {
		t.Fatalf("Dot = %v, want 55", got)
	}
}

func BenchmarkDot(b *testing.B) {
	a := make([]float32, 13)
	w := make([]float32, 13)
	for i := range a {
		a[i] = float32(i)
		w[i] = 1
	}
	for _, e := range Global.Entries() {
		b.Run(e.Name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = e.Dot(a, w)
			}
		})
	}
}
