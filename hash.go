package octobloom

import "github.com/zeebo/xxh3"

// Hash64 is a general-purpose 64-bit digest over raw bytes. A host database
// can supply its own hashing primitive via NewWithHash; by default filters
// use xxh3.
type Hash64 func(data []byte) uint64

// hash2Seed seeds the secondary digest so it is not linearly dependent on
// the primary one.
const hash2Seed = 0x9e3779b97f4a7c15

// fnvPrime is the 64-bit FNV prime used by the secondary digest's mixing.
const fnvPrime = 0x100000001b3

// digests computes the two independent 64-bit digests used for double
// hashing. h1 comes from the filter's configured primary hash (xxh3 unless
// the host supplied one); h2 is an FNV-style seeded mix.
func (f *Filter) digests(value []byte) (h1, h2 uint64) {
	if f.hash != nil {
		h1 = f.hash(value)
		if h1 == 0 {
			// A zero digest from a host-provided hash is treated as a
			// failure; fall back to the internal hash.
			h1 = fallbackHash(value)
		}
	} else {
		h1 = xxh3.Hash(value)
	}
	return h1, mixHash(value)
}

// fallbackHash is a DJB-style hash used when the host-provided primary hash
// yields nothing usable.
func fallbackHash(value []byte) uint64 {
	h := uint64(5381)
	for _, b := range value {
		h = (h << 5) + h + uint64(b) // h * 33 + b
	}
	return h
}

// mixHash is the secondary digest for double hashing.
func mixHash(value []byte) uint64 {
	h := uint64(hash2Seed)
	for _, b := range value {
		h ^= uint64(b)
		h *= fnvPrime
		h ^= h >> 32
	}
	return h
}
