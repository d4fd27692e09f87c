// Package audio groups the audio sub-packages used by voice enrollment:
//
//   - pcm: mono float32 sample buffers
//   - wav: RIFF/WAVE parsing and 16-bit encoding
//   - decode: container detection and decoding to 16 kHz mono (ffmpeg for
//     compressed formats)
//   - resampler: sample-rate conversion
//   - fbank: log mel filterbank features
//   - synth: deterministic synthetic speech for tests and demos
package audio
