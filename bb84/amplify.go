package bb84

import (
	"fmt"
	"math"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

const (
	// securityParameter bounds the distance from uniform of the final key.
	securityParameter = 0.01

	defaultErrorRate = 0.01
	minErrorRate     = 0.001
	maxErrorRate     = 0.2
)

// Compress XOR-folds bits onto an output of outputLength bits: bit i of the
// input is added into output bit i mod L, where L is outputLength clamped into
// [1, len(bits)]. The seed is accepted for symmetry with seeded extractors but
// does not influence the result.
func Compress(bits []int, outputLength int, seed int64) []int {
	if len(bits) == 0 {
		return []int{}
	}
	l := min(max(outputLength, 1), len(bits))
	out := make([]int, l)
	for i, b := range bits {
		out[i%l] ^= b & 1
	}
	return out
}

// extractKey compresses x down to m bits with the named extractor.
func extractKey(extractor string, x []int, m int, seed int64) ([]int, error) {
	switch extractor {
	case "", ExtractorFold:
		return Compress(x, m, seed), nil
	case ExtractorToeplitz:
		h, err := seededToeplitz(seed, m, len(x)).Mul(bitmap.FromBits(x))
		if err != nil {
			return nil, fmt.Errorf("toeplitz hashing: %w", err)
		}
		return h.Bits(), nil
	}
	return nil, fmt.Errorf("unknown extractor %q", extractor)
}

// binaryEntropy returns h(p) = -p·log2(p) - (1-p)·log2(1-p), with h(0) = h(1)
// = 0.
func binaryEntropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}

// clampErrorRate keeps estimated error rates in a range where the length
// formula behaves.
func clampErrorRate(p float64) float64 {
	return math.Min(maxErrorRate, math.Max(minErrorRate, p))
}

// finalKeyLength returns the number of bits privacy amplification may keep
// from an n bit reconciled key, given leak disclosed parity bits and an
// estimated error rate.
//
// The primary estimate is n·hMin - leak - 2·log2(1/ε), where hMin = max(0.5,
// 1-h(p)). If that falls outside [1, n-1], n·(1-p) - leak - 10 is tried, then
// 0.65·n. The result is always clamped into [1, n-1], or 1 if n <= 1.
func finalKeyLength(n, leak int, errorRate float64) int {
	if n <= 1 {
		return 1
	}
	p := clampErrorRate(errorRate)
	valid := func(m int) bool { return m >= 1 && m <= n-1 }

	hMin := math.Max(0.5, 1-binaryEntropy(p))
	securityTerm := 2 * math.Log2(1/securityParameter)
	m := int(math.Floor(float64(n)*hMin - float64(leak) - securityTerm))
	if !valid(m) {
		m = int(math.Floor(float64(n)*(1-p) - float64(leak) - 10))
	}
	if !valid(m) {
		m = int(math.Floor(float64(n) * 0.65))
	}
	return min(max(m, 1), n-1)
}
