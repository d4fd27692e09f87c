package voiceprint

// SchemaVersion identifies the feature layout, scaling and analysis
// parameters. Bump it whenever any of them change.
const SchemaVersion = 2

// Dimension is the length of every FeatureVector.
const Dimension = 24

// numMFCC is the number of cepstral means in the vector (c1..c12).
const numMFCC = 12

// Positions in a FeatureVector.
const (
	idxPitchMean = iota
	idxPitchStd
	idxPitchRange
	idxCentroidMean
	idxCentroidStd
	idxEnergyMean
	idxEnergyStd
	idxZCRMean
	idxZCRStd
	idxRolloffMean
	idxRolloffStd
	idxMFCC    // idxMFCC .. idxMFCC+numMFCC-1
	idxMFCCStd = idxMFCC + numMFCC
)

// FeatureNames lists the dimension names in vector order.
var FeatureNames = [Dimension]string{
	"pitch_mean", "pitch_std", "pitch_range",
	"spectral_centroid_mean", "spectral_centroid_std",
	"energy_mean", "energy_std",
	"zcr_mean", "zcr_std",
	"rolloff_mean", "rolloff_std",
	"mfcc_1", "mfcc_2", "mfcc_3", "mfcc_4", "mfcc_5", "mfcc_6",
	"mfcc_7", "mfcc_8", "mfcc_9", "mfcc_10", "mfcc_11", "mfcc_12",
	"mfcc_std",
}

// scale maps a raw statistic onto a roughly unit range: (raw-center)/width.
type scale struct {
	center, width float64
}

// scales brings Hz, RMS and cepstral magnitudes onto comparable ranges so no
// single dimension dominates the cosine.
var scales = [Dimension]scale{
	idxPitchMean:    {150, 100},
	idxPitchStd:     {20, 30},
	idxPitchRange:   {100, 150},
	idxCentroidMean: {1500, 1000},
	idxCentroidStd:  {500, 500},
	idxEnergyMean:   {-8, 6},
	idxEnergyStd:    {5, 4},
	idxZCRMean:      {0.1, 0.1},
	idxZCRStd:       {0.05, 0.05},
	idxRolloffMean:  {3000, 2000},
	idxRolloffStd:   {1000, 1000},
	idxMFCC + 0:     {0, 20},
	idxMFCC + 1:     {0, 20},
	idxMFCC + 2:     {0, 20},
	idxMFCC + 3:     {0, 20},
	idxMFCC + 4:     {0, 20},
	idxMFCC + 5:     {0, 20},
	idxMFCC + 6:     {0, 20},
	idxMFCC + 7:     {0, 20},
	idxMFCC + 8:     {0, 20},
	idxMFCC + 9:     {0, 20},
	idxMFCC + 10:    {0, 20},
	idxMFCC + 11:    {0, 20},
	idxMFCCStd:      {5, 10},
}

// normalize converts raw statistics into a FeatureVector.
func normalize(raw *[Dimension]float64) FeatureVector {
	v := make(FeatureVector, Dimension)
	for i, r := range raw {
		v[i] = (finite(r) - scales[i].center) / scales[i].width
	}
	return v
}
