package octobloom

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

// Filter is a plain (non-counting) bloom filter over raw byte values. It
// answers approximate membership with no false negatives and a bounded
// false positive rate. Bits are only ever set, never cleared, so values
// cannot be removed; Remove exists solely to report that limitation.
//
// Filter is not safe for concurrent use. In this package every filter is
// owned by a registry entry whose lock provides the required exclusion.
type Filter struct {
	data          []byte // bit array stored as bytes, len = ceil(bitLen/8)
	bitLen        uint64 // number of addressable bits, >= MinBits
	rounds        uint32 // probes per value, in [MinRounds, MaxRounds]
	expectedCount uint64
	fpRate        float64
	hash          Hash64 // primary digest override; nil means xxh3
}

// New creates a filter sized for expectedCount values at the given false
// positive rate. Parameters are assumed to have been validated by the
// caller (expectedCount > 0, rate in (0, 1)).
func New(expectedCount uint64, falsePositiveRate float64) *Filter {
	return NewWithHash(expectedCount, falsePositiveRate, nil)
}

// NewWithHash is like New but uses the given primary digest instead of
// xxh3, for hosts that provide their own hashing primitive. A nil hash
// selects xxh3.
//
// The digest is part of the filter's identity but is not serialized: a
// custom-hash filter decoded with UnmarshalBinary would answer with xxh3
// and lose the no-false-negatives guarantee. Hosts that persist such
// filters must decode them with UnmarshalBinaryWithHash and the same
// digest.
func NewWithHash(expectedCount uint64, falsePositiveRate float64, hash Hash64) *Filter {
	bitLen, rounds := DeriveParams(expectedCount, falsePositiveRate)
	return &Filter{
		data:          make([]byte, (bitLen+7)/8),
		bitLen:        bitLen,
		rounds:        rounds,
		expectedCount: expectedCount,
		fpRate:        falsePositiveRate,
		hash:          hash,
	}
}

// Add records value in the filter. Adding the same value again is a no-op
// beyond the first call.
func (f *Filter) Add(value []byte) {
	h1, h2 := f.digests(value)
	for i := uint64(0); i < uint64(f.rounds); i++ {
		idx := (h1 + i*h2) % f.bitLen
		f.data[idx/8] |= 1 << (idx % 8)
	}
}

// MightContain reports whether value may have been added. A false result is
// definitive; a true result may be a false positive at roughly the
// configured rate.
func (f *Filter) MightContain(value []byte) bool {
	h1, h2 := f.digests(value)
	for i := uint64(0); i < uint64(f.rounds); i++ {
		idx := (h1 + i*h2) % f.bitLen
		if f.data[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Remove reports ErrUnsupportedOperation and leaves the filter unchanged.
// Clearing bits would introduce false negatives for other values; deletion
// requires a counting filter, which this package deliberately does not
// implement.
func (f *Filter) Remove(value []byte) error {
	return fmt.Errorf("%w: remove requires a counting filter", ErrUnsupportedOperation)
}

// Clear zeroes every bit. Element counts are tracked by the owning registry
// entry, not the filter, so nothing else resets.
func (f *Filter) Clear() {
	clear(f.data)
}

// ExpectedCount returns the element count the filter was sized for.
func (f *Filter) ExpectedCount() uint64 {
	return f.expectedCount
}

// FalsePositiveRate returns the target false positive rate the filter was
// sized for.
func (f *Filter) FalsePositiveRate() float64 {
	return f.fpRate
}

// BitLen returns the bit-array length in bits.
func (f *Filter) BitLen() uint64 {
	return f.bitLen
}

// Rounds returns the number of hash rounds per value.
func (f *Filter) Rounds() uint32 {
	return f.rounds
}

// MemoryUsage returns the size of the bit array in bytes.
func (f *Filter) MemoryUsage() uint64 {
	return uint64(len(f.data))
}

// EstimatedFillRatio returns the proportion of bits currently set.
func (f *Filter) EstimatedFillRatio() float64 {
	var set uint64
	for _, b := range f.data {
		set += uint64(bits.OnesCount8(b))
	}
	return float64(set) / float64(f.bitLen)
}

// headerSize is the fixed serialization header:
// expectedCount (8) + bitLen (8) + fpRate bit pattern (8) + rounds (4).
const headerSize = 28

// maxBitLen bounds the bit length accepted during deserialization so a
// corrupt header cannot drive a huge allocation.
const maxBitLen = uint64(1) << 43 // 1 TiB of bits

// MarshalBinary serializes the filter. The format is little-endian:
//   - expectedCount (8 bytes)
//   - bit-array length in bits (8 bytes)
//   - false positive rate as IEEE 754 bit pattern (8 bytes)
//   - hash rounds (4 bytes)
//   - bit array (ceil(bitLen/8) bytes)
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+len(f.data))
	binary.LittleEndian.PutUint64(buf[0:8], f.expectedCount)
	binary.LittleEndian.PutUint64(buf[8:16], f.bitLen)
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(f.fpRate))
	binary.LittleEndian.PutUint32(buf[24:28], f.rounds)
	copy(buf[headerSize:], f.data)
	return buf, nil
}

// UnmarshalBinary deserializes a filter produced by MarshalBinary. It
// returns ErrTruncated if the buffer is shorter than the fixed header or
// shorter than the bit array the header declares, and ErrInvalidData if the
// header cannot describe a valid filter. The reconstructed filter uses the
// default xxh3 digest; filters built with NewWithHash must be decoded with
// UnmarshalBinaryWithHash instead.
func UnmarshalBinary(data []byte) (*Filter, error) {
	return UnmarshalBinaryWithHash(data, nil)
}

// UnmarshalBinaryWithHash is like UnmarshalBinary but restores the host's
// primary digest, which the wire format does not carry. The hash must be
// the one the filter was built with; probing with a different digest loses
// the no-false-negatives guarantee. A nil hash selects xxh3.
func UnmarshalBinaryWithHash(data []byte, hash Hash64) (*Filter, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrTruncated, len(data), headerSize)
	}

	expectedCount := binary.LittleEndian.Uint64(data[0:8])
	bitLen := binary.LittleEndian.Uint64(data[8:16])
	fpRate := math.Float64frombits(binary.LittleEndian.Uint64(data[16:24]))
	rounds := binary.LittleEndian.Uint32(data[24:28])

	if bitLen < MinBits || bitLen > maxBitLen {
		return nil, fmt.Errorf("%w: bit length %d out of range", ErrInvalidData, bitLen)
	}
	if rounds < MinRounds || rounds > MaxRounds {
		return nil, fmt.Errorf("%w: round count %d out of range", ErrInvalidData, rounds)
	}

	byteLen := (bitLen + 7) / 8
	if uint64(len(data)-headerSize) < byteLen {
		return nil, fmt.Errorf("%w: header declares %d bit-array bytes, got %d", ErrTruncated, byteLen, len(data)-headerSize)
	}

	buf := make([]byte, byteLen)
	copy(buf, data[headerSize:headerSize+int(byteLen)])

	return &Filter{
		data:          buf,
		bitLen:        bitLen,
		rounds:        rounds,
		expectedCount: expectedCount,
		fpRate:        fpRate,
		hash:          hash,
	}, nil
}
