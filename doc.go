// Package octobloom maintains approximate per-column membership indexes
// over tables in a relational store. A host database registers a bloom
// filter for a (table, column) pair, feeds it row-change events, and asks
// it whether a value might exist before paying for a verification query.
//
// # Components
//
// [Filter] is a plain (non-counting) bloom filter: a fixed bit array probed
// by double hashing (h1 + i*h2 mod m) with xxh3 as the primary digest.
// Values can be added but never removed; [Filter.Remove] reports
// [ErrUnsupportedOperation] by design.
//
// [Registry] maps (table, column) keys to filters under a two-tier locking
// scheme: one lock guards the key set, one lock per entry guards that
// entry's filter. The registry is bounded by entry count and total filter
// memory; when full, new registrations fail rather than evicting existing
// entries.
//
// [Hooks] is the synchronous maintenance path. The host invokes
// [Hooks.OnRowInserted] and [Hooks.OnRowUpdated] inside the triggering
// write; hooks never fail the host transaction. Updates attempt to remove
// the old value, which a plain filter cannot do, so the unsupported error
// is swallowed and the filter accumulates stale positives.
//
// [Reconciler] is the asynchronous maintenance path: a periodic pass that
// rebuilds filters marked invalid and resizes filters whose live count has
// outgrown their sizing, streaming values from a host-provided snapshot
// scan. Rebuilds construct the new filter off to the side and swap it in
// under the entry lock, so readers never observe a half-built filter.
//
// # Query semantics
//
// A missing or invalid filter always resolves to "might contain": the
// filter is an accelerator for ruling out non-existence, never a source of
// hard negatives. [Index] packages this with a fallback [Verifier] that
// runs the authoritative existence check only when the filter cannot rule
// the value out.
//
// # Serialization
//
// [Filter.MarshalBinary] and [UnmarshalBinary] implement a stable
// little-endian format so filters can be persisted across restarts by the
// host. Truncated or nonsensical buffers are rejected.
package octobloom
