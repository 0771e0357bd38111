// Package util contains internal helpers (integer math, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is the slot stride used for symmetric protocol memory.
// 64 bytes covers current x86-64 and arm64 parts; the runtime's own
// constant is not exported, so it is pinned here.
const CacheLineSize = 64

// CacheLinePad separates neighboring struct fields onto distinct cache
// lines. Insert one between a group's wait-side state and its write-side
// counters when both are hot.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicUint64 backs one symmetric slot: a mailbox entry, a broadcast
// token, a gate, or an election counter. A group owner sits in a local wait
// on slot i while remote PEs land puts and fetch-adds on slots i+1..n of the
// same array; giving every slot its own line keeps those writes from
// invalidating the line the waiter is re-reading.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte // pad the 8-byte value out to a full line
}

// PaddedAtomicInt64 is the signed counterpart, for slots holding PE ids or
// signed markers rather than raw bit patterns.
type PaddedAtomicInt64 struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte
}

// Sizes are load-bearing: a padded slot narrower than one line would quietly
// reintroduce the sharing these types exist to prevent.
var (
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicInt64{}))]byte
	_ [int(unsafe.Sizeof(PaddedAtomicUint64{})) - CacheLineSize]byte
	_ [int(unsafe.Sizeof(PaddedAtomicInt64{})) - CacheLineSize]byte
)
