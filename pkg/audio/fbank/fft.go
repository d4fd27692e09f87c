package fbank

import (
	"math"
	"math/bits"
	"math/cmplx"
)

// fftPlan holds the bit-reversal order and twiddle factors of a
// fixed-size radix-2 transform. A plan is read-only after creation.
type fftPlan struct {
	n       int
	rev     []int
	twiddle []complex128 // exp(-2πik/n) for k < n/2
}

// newFFTPlan prepares a transform of length n, which must be a power of two.
func newFFTPlan(n int) *fftPlan {
	if n < 1 || n&(n-1) != 0 {
		panic("fbank: FFT size must be a power of two")
	}
	p := &fftPlan{n: n, rev: make([]int, n), twiddle: make([]complex128, n/2)}
	shift := bits.UintSize - bits.TrailingZeros(uint(n))
	for i := range p.rev {
		if n > 1 {
			p.rev[i] = int(bits.Reverse(uint(i)) >> shift)
		}
	}
	for k := range p.twiddle {
		p.twiddle[k] = cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n))
	}
	return p
}

// transform replaces x (len n) with its discrete Fourier transform.
func (p *fftPlan) transform(x []complex128) {
	for i, j := range p.rev {
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= p.n; size <<= 1 {
		half := size / 2
		stride := p.n / size
		for start := 0; start < p.n; start += size {
			for k := range half {
				a, b := start+k, start+k+half
				t := p.twiddle[k*stride] * x[b]
				x[b] = x[a] - t
				x[a] += t
			}
		}
	}
}

// power writes |X[k]|² of the first len(out) bins of x's transform to out.
func (p *fftPlan) power(x []complex128, out []float64) {
	p.transform(x)
	for k := range out {
		re, im := real(x[k]), imag(x[k])
		out[k] = re*re + im*im
	}
}
