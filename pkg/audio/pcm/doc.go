// Package pcm holds decoded audio and the raw 16-bit PCM layout used
// between the decoder and external converters.
//
// Buffer is mono audio as normalized float32 samples. Format describes
// interleaved s16le bytes and turns them into a Buffer:
//
//	f := pcm.Mono(16000)
//	buf := f.Decode(raw)
//	fmt.Println(buf.Duration(), buf.Peak())
package pcm
