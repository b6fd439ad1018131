package engine

import (
	"math"
	"math/rand"
)

// lengthToMask builds a float mask of flattened shape [batch, 1, maxLen]
// with 1.0 where the position index is below the item's length.
func lengthToMask(lengths []int64, maxLen int) []float32 {
	mask := make([]float32, len(lengths)*maxLen)
	for i, n := range lengths {
		row := mask[i*maxLen : (i+1)*maxLen]
		for j := range row {
			if int64(j) < n {
				row[j] = 1
			}
		}
	}
	return mask
}

// standardNormal draws one standard normal value via the Box-Muller
// transform.
func standardNormal(rng *rand.Rand) float64 {
	const eps = 1e-10
	u1 := math.Max(eps, rng.Float64())
	u2 := rng.Float64()
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

// sampleNoisyLatent draws the initial latent for the refinement loop. The
// sequence length covers the longest predicted duration in whole latent
// frames; positions beyond an item's own frame count are zeroed, matching
// the returned mask of flattened shape [batch, 1, latentLen].
func sampleNoisyLatent(rng *rand.Rand, durations []float32, sampleRate, chunkSize, channels int) (latent []float32, latentLen int, mask []float32) {
	bsz := len(durations)

	maxDur := float64(0)
	for _, d := range durations {
		if float64(d) > maxDur {
			maxDur = float64(d)
		}
	}
	wavLenMax := maxDur * float64(sampleRate)
	latentLen = int((wavLenMax + float64(chunkSize) - 1) / float64(chunkSize))

	lengths := make([]int64, bsz)
	for i, d := range durations {
		wavLen := int64(float64(d) * float64(sampleRate))
		frames := (wavLen + int64(chunkSize) - 1) / int64(chunkSize)
		if frames > int64(latentLen) {
			frames = int64(latentLen)
		}
		lengths[i] = frames
	}
	mask = lengthToMask(lengths, latentLen)

	latent = make([]float32, bsz*channels*latentLen)
	for b := 0; b < bsz; b++ {
		maskRow := mask[b*latentLen : (b+1)*latentLen]
		for c := 0; c < channels; c++ {
			row := latent[(b*channels+c)*latentLen : (b*channels+c+1)*latentLen]
			for t := range row {
				if maskRow[t] == 0 {
					continue
				}
				row[t] = float32(standardNormal(rng))
			}
		}
	}
	return latent, latentLen, mask
}
