// Package voiceprint turns speech into fixed-length voice feature vectors
// and compares them.
//
// # Pipeline
//
//  1. Extractor.Extract: 16 kHz mono PCM → FeatureVector (Dimension values)
//  2. Cosine / Engine.Compare: two vectors → confidence in [0, 1]
//  3. Engine.Decide: confidence ≥ threshold → authenticated
//
// Enrolled vectors are persisted as Profile records by a ProfileStore.
//
// # Schema
//
// The order, meaning and scaling of the vector dimensions is fixed per
// SchemaVersion. Vectors produced under different schema versions are never
// compared; loading a stale profile yields ErrSchemaMismatch.
package voiceprint

import (
	"errors"
	"fmt"
)

// Errors shared by extraction, comparison and storage.
var (
	// ErrDecode means the audio was empty or not decodable.
	ErrDecode = errors.New("voiceprint: audio could not be decoded")

	// ErrInsufficientAudio means the audio decoded but holds too little
	// voiced content to characterize a speaker.
	ErrInsufficientAudio = errors.New("voiceprint: insufficient voiced audio")

	// ErrProfileNotFound means no profile is enrolled for the user id.
	ErrProfileNotFound = errors.New("voiceprint: profile not found")

	// ErrSchemaMismatch means two vectors (or a stored profile and the
	// current extractor) disagree on layout.
	ErrSchemaMismatch = errors.New("voiceprint: feature schema mismatch")

	// ErrStorage means the profile backend failed.
	ErrStorage = errors.New("voiceprint: storage failure")
)

// FeatureVector is a fixed-length voice descriptor. See FeatureNames for the
// meaning of each position.
type FeatureVector []float64

// Len returns the number of dimensions.
func (v FeatureVector) Len() int {
	return len(v)
}

// Clone returns a copy of v.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// Mean returns the element-wise average of vs. All vectors must have the
// same length.
func Mean(vs ...FeatureVector) (FeatureVector, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: no vectors to average", ErrSchemaMismatch)
	}
	out := make(FeatureVector, len(vs[0]))
	for _, v := range vs {
		if len(v) != len(out) {
			return nil, fmt.Errorf("%w: %d vs %d dimensions", ErrSchemaMismatch, len(out), len(v))
		}
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float64(len(vs))
	}
	return out, nil
}
