package voiceprint

import (
	"errors"
	"math"
	"testing"
)

func vec(xs ...float64) FeatureVector { return FeatureVector(xs) }

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b FeatureVector
		want float64
	}{
		{"identical", vec(1, 2, 3), vec(1, 2, 3), 1},
		{"scaled", vec(1, 2, 3), vec(2, 4, 6), 1},
		{"orthogonal", vec(1, 0), vec(0, 1), 0},
		{"opposite clamps to zero", vec(1, 2, 3), vec(-1, -2, -3), 0},
		{"zero vector", vec(0, 0, 0), vec(1, 2, 3), 0},
		{"both zero", vec(0, 0), vec(0, 0), 0},
		{"tiny norm", vec(1e-14, 0), vec(1, 0), 0},
		{"45 degrees", vec(1, 0), vec(1, 1), 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Cosine: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine(vec(1, 2), vec(1, 2, 3))
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}

func TestCosineNegationNeverBeatsSelf(t *testing.T) {
	v := vec(0.3, -1.2, 2.5, 0.01, -0.7)
	neg := make(FeatureVector, len(v))
	for i := range v {
		neg[i] = -v[i]
	}
	self, _ := Cosine(v, v)
	opp, _ := Cosine(v, neg)
	if opp > self {
		t.Fatalf("Cosine(v,-v) = %f > Cosine(v,v) = %f", opp, self)
	}
	if math.Abs(self-1) > 1e-9 {
		t.Fatalf("Cosine(v,v) = %f", self)
	}
}

func TestEngine(t *testing.T) {
	e := NewEngine(0)
	if e.Threshold != DefaultThreshold {
		t.Fatalf("Threshold = %f, want default", e.Threshold)
	}
	if NewEngine(1.5).Threshold != DefaultThreshold {
		t.Error("out of range threshold accepted")
	}

	tests := []struct {
		confidence float64
		want       bool
	}{
		{0.85, true},
		{0.849999, false},
		{1, true},
		{0, false},
	}
	for _, tt := range tests {
		if got := e.Decide(tt.confidence); got != tt.want {
			t.Errorf("Decide(%f) = %v, want %v", tt.confidence, got, tt.want)
		}
	}

	ok, conf, err := NewEngine(0.9).Verify(vec(1, 0), vec(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if ok || math.Abs(conf-1/math.Sqrt2) > 1e-9 {
		t.Errorf("Verify = %v, %f", ok, conf)
	}
	if _, _, err := e.Verify(vec(1), vec(1, 2)); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Verify mismatch err = %v", err)
	}
}
