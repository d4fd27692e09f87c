// Package resampler converts decoded audio between sample rates and channel
// layouts.
//
// Sample rate conversion uses a pure Go polyphase resampler
// (github.com/tphakala/go-audio-resampling), so no CGO toolchain is
// required.
//
// Example usage:
//
//	mono := resampler.Downmix(interleaved, 2)
//	buf, err := resampler.Resample(&pcm.Buffer{Samples: mono, SampleRate: 44100}, 16000)
//	if err != nil {
//	    log.Fatal(err)
//	}
package resampler
