package hostkern

import "github.com/cwbudde/algo-vecmath/cpu"

// The unrolled variants keep one partial sum per lane so the compiler can
// keep them in independent registers.
func init() {
	Global.Register(Entry{Name: "scalar", SIMDLevel: cpu.SIMDNone, Priority: 0, Dot: dotScalar})
	Global.Register(Entry{Name: "unroll4", SIMDLevel: cpu.SIMDSSE2, Priority: 10, Dot: dotUnroll4})
	Global.Register(Entry{Name: "unroll8", SIMDLevel: cpu.SIMDAVX2, Priority: 20, Dot: dotUnroll8})
}

func dotScalar(a, b []float32) float32 {
	b = b[:len(a)]
	var s float32
	for i, v := range a {
		s += v * b[i]
	}
	return s
}

func dotUnroll4(a, b []float32) float32 {
	n := len(a)
	b = b[:n]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

func dotUnroll8(a, b []float32) float32 {
	n := len(a)
	b = b[:n]
	var s [8]float32
	i := 0
	for ; i+8 <= n; i += 8 {
		aa := a[i : i+8 : i+8]
		bb := b[i : i+8 : i+8]
		s[0] += aa[0] * bb[0]
		s[1] += aa[1] * bb[1]
		s[2] += aa[2] * bb[2]
		s[3] += aa[3] * bb[3]
		s[4] += aa[4] * bb[4]
		s[5] += aa[5] * bb[5]
		s[6] += aa[6] * bb[6]
		s[7] += aa[7] * bb[7]
	}
	for ; i < n; i++ {
		s[0] += a[i] * b[i]
	}
	return ((s[0] + s[1]) + (s[2] + s[3])) + ((s[4] + s[5]) + (s[6] + s[7]))
}
