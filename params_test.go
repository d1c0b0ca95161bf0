package octobloom

import "testing"

func TestDeriveParamsKnownSizing(t *testing.T) {
	// ceil(-1000 * ln(0.01) / ln(2)^2) = 9586 bits, 7 rounds
	bitLen, rounds := DeriveParams(1000, 0.01)

	if bitLen != 9586 {
		t.Errorf("expected 9586 bits, got %d", bitLen)
	}
	if rounds != 7 {
		t.Errorf("expected 7 rounds, got %d", rounds)
	}
}

func TestDeriveParamsBounds(t *testing.T) {
	counts := []uint64{1, 2, 10, 100, 1000, 100000, 10000000}
	rates := []float64{0.5, 0.1, 0.01, 0.001, 0.0001, 0.000001}

	for _, n := range counts {
		for _, p := range rates {
			bitLen, rounds := DeriveParams(n, p)

			if bitLen < MinBits {
				t.Errorf("n=%d p=%g: bit length %d below minimum %d", n, p, bitLen, MinBits)
			}
			if rounds < MinRounds || rounds > MaxRounds {
				t.Errorf("n=%d p=%g: rounds %d outside [%d, %d]", n, p, rounds, MinRounds, MaxRounds)
			}
		}
	}
}

func TestDeriveParamsMinimumFloor(t *testing.T) {
	// A tiny filter still gets at least 64 bits.
	bitLen, _ := DeriveParams(1, 0.5)

	if bitLen != MinBits {
		t.Errorf("expected floor of %d bits, got %d", MinBits, bitLen)
	}
}

func TestDeriveParamsRoundsClamped(t *testing.T) {
	// One element at an extreme rate drives the optimal k above 50.
	_, rounds := DeriveParams(1, 1e-16)

	if rounds != MaxRounds {
		t.Errorf("expected rounds clamped to %d, got %d", MaxRounds, rounds)
	}
}

func TestEstimateFalsePositiveRate(t *testing.T) {
	bitLen, rounds := DeriveParams(1000, 0.01)

	empty := EstimateFalsePositiveRate(bitLen, rounds, 0)
	if empty != 0 {
		t.Errorf("expected 0 for an empty filter, got %f", empty)
	}

	atCapacity := EstimateFalsePositiveRate(bitLen, rounds, 1000)
	if atCapacity <= 0 || atCapacity > 0.02 {
		t.Errorf("expected rate near target at capacity, got %f", atCapacity)
	}

	overfull := EstimateFalsePositiveRate(bitLen, rounds, 10000)
	if overfull <= atCapacity {
		t.Errorf("expected rate to grow with load: %f <= %f", overfull, atCapacity)
	}
}
