package octobloom

import "math"

const (
	// MinBits is the minimum bit-array length a filter is ever sized to.
	MinBits = 64
	// MinRounds and MaxRounds bound the number of hash rounds per value.
	MinRounds = 1
	MaxRounds = 50

	// ln2 is the natural logarithm of 2.
	ln2 = 0.6931471805599453
	// ln2Squared is ln(2)^2.
	ln2Squared = 0.4804530139182014
)

// DeriveParams calculates the bit-array length and hash round count for a
// filter sized to hold expectedCount values at the given false positive
// rate. The bit length is floored at MinBits and the round count is clamped
// to [MinRounds, MaxRounds].
//
// Inputs are assumed valid (expectedCount > 0, rate in (0, 1)); callers
// validate before construction.
func DeriveParams(expectedCount uint64, falsePositiveRate float64) (bitLen uint64, rounds uint32) {
	// Optimal bit count: -n * ln(p) / ln(2)^2
	bitLen = uint64(math.Ceil(-float64(expectedCount) * math.Log(falsePositiveRate) / ln2Squared))
	if bitLen < MinBits {
		bitLen = MinBits
	}

	// Optimal round count: (m/n) * ln(2)
	k := math.Round(float64(bitLen) / float64(expectedCount) * ln2)
	switch {
	case k < MinRounds:
		rounds = MinRounds
	case k > MaxRounds:
		rounds = MaxRounds
	default:
		rounds = uint32(k)
	}

	return bitLen, rounds
}

// EstimateFalsePositiveRate estimates the false positive rate of a filter
// with bitLen bits and the given round count after itemsAdded insertions.
// Formula: (1 - e^(-kn/m))^k
func EstimateFalsePositiveRate(bitLen uint64, rounds uint32, itemsAdded uint64) float64 {
	m := float64(bitLen)
	n := float64(itemsAdded)
	k := float64(rounds)

	if m == 0 || n == 0 {
		return 0
	}

	return math.Pow(1-math.Exp(-k*n/m), k)
}
