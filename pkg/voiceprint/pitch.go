package voiceprint

import "math"

const octaveTolerance = 0.9

// pitchTracker estimates the fundamental frequency of short frames by
// normalized autocorrelation.
type pitchTracker struct {
	sampleRate int
	minLag     int
	maxLag     int
	window     int
	threshold  float64
}

func newPitchTracker(sampleRate int, minHz, maxHz float64, threshold float64) *pitchTracker {
	maxLag := int(math.Ceil(float64(sampleRate) / minHz))
	return &pitchTracker{
		sampleRate: sampleRate,
		minLag:     int(math.Floor(float64(sampleRate) / maxHz)),
		maxLag:     maxLag,
		// Two periods of the lowest pitch fit in one window.
		window:    2 * maxLag,
		threshold: threshold,
	}
}

// estimate returns the pitch in Hz of the window starting at start, and false
// when the frame is too short or not periodic enough.
func (p *pitchTracker) estimate(pcm []float32, start int) (float64, bool) {
	if start+p.window > len(pcm) {
		return 0, false
	}
	frame := make([]float64, p.window)
	var mean float64
	for i := range frame {
		frame[i] = float64(pcm[start+i])
		mean += frame[i]
	}
	mean /= float64(len(frame))
	for i := range frame {
		frame[i] -= mean
	}

	n := len(frame)
	corr := make([]float64, p.maxLag+2)
	best, bestLag := 0.0, 0
	for lag := p.minLag; lag <= p.maxLag+1 && lag < n; lag++ {
		var xy, xx, yy float64
		for i := 0; i+lag < n; i++ {
			a, b := frame[i], frame[i+lag]
			xy += a * b
			xx += a * a
			yy += b * b
		}
		if xx <= 0 || yy <= 0 {
			continue
		}
		corr[lag] = xy / math.Sqrt(xx*yy)
		if lag <= p.maxLag && corr[lag] > best {
			best, bestLag = corr[lag], lag
		}
	}
	if bestLag == 0 || best < p.threshold {
		return 0, false
	}
	// Multiples of the period correlate almost as well as the period itself;
	// take the shortest lag whose local peak is close to the best one.
	for lag := p.minLag + 1; lag < bestLag; lag++ {
		if corr[lag] >= octaveTolerance*best && corr[lag] >= corr[lag-1] && corr[lag] >= corr[lag+1] {
			bestLag = lag
			break
		}
	}

	// Parabolic interpolation around the peak for sub-sample precision.
	lag := float64(bestLag)
	if bestLag > p.minLag && bestLag < p.maxLag {
		l, c, r := corr[bestLag-1], corr[bestLag], corr[bestLag+1]
		if d := l - 2*c + r; d < 0 {
			lag += 0.5 * (l - r) / d
		}
	}
	return float64(p.sampleRate) / lag, true
}
