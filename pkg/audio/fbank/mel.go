package fbank

import "math"

// hammingWindow returns a symmetric Hamming window of length n.
func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	den := float64(n - 1)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/den)
	}
	return w
}

// HTK mel scale.
func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilter is one triangular filter, stored as the weights of the
// contiguous spectrum bins starting at first.
type melFilter struct {
	first   int
	weights []float64
}

// apply returns the filter response to a power spectrum.
func (f melFilter) apply(power []float64) float64 {
	sum := 0.0
	for i, w := range f.weights {
		if k := f.first + i; k < len(power) {
			sum += w * power[k]
		}
	}
	return sum
}

// newMelBank builds numMels triangles with centers equally spaced on the
// mel scale between lowHz and highHz. Weights are evaluated at each bin's
// exact frequency. A filter narrower than one bin keeps the bin nearest to
// its center so that no band is empty.
func newMelBank(numMels, fftSize, sampleRate int, lowHz, highHz float64) []melFilter {
	bins := fftSize/2 + 1
	binHz := float64(sampleRate) / float64(fftSize)
	lo, hi := hzToMel(lowHz), hzToMel(highHz)
	edge := func(i int) float64 {
		return melToHz(lo + (hi-lo)*float64(i)/float64(numMels+1))
	}

	bank := make([]melFilter, numMels)
	for m := range bank {
		left, center, right := edge(m), edge(m+1), edge(m+2)
		first := max(int(math.Ceil(left/binHz)), 0)
		last := min(int(math.Floor(right/binHz)), bins-1)

		var weights []float64
		for k := first; k <= last; k++ {
			hz := float64(k) * binHz
			var w float64
			if hz <= center {
				w = (hz - left) / (center - left)
			} else {
				w = (right - hz) / (right - center)
			}
			weights = append(weights, max(w, 0))
		}
		if len(weights) == 0 || allZero(weights) {
			first = min(int(math.Round(center/binHz)), bins-1)
			weights = []float64{1}
		}
		bank[m] = melFilter{first: first, weights: weights}
	}
	return bank
}

func allZero(xs []float64) bool {
	for _, x := range xs {
		if x != 0 {
			return false
		}
	}
	return true
}

// dctMatrix builds an orthonormal DCT-II basis of shape [numCeps][numMels].
func dctMatrix(numCeps, numMels int) [][]float64 {
	basis := make([][]float64, numCeps)
	n := float64(numMels)
	for c := range basis {
		row := make([]float64, numMels)
		scale := math.Sqrt(2.0 / n)
		if c == 0 {
			scale = math.Sqrt(1.0 / n)
		}
		for m := range row {
			row[m] = scale * math.Cos(math.Pi*float64(c)*(float64(m)+0.5)/n)
		}
		basis[c] = row
	}
	return basis
}
