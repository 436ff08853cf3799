// Copyright 2026 The Kaldi Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hashlist provides a singly linked list fused with a hash index
// over the same elements. It is built for the inner loop of a frame-based
// search (e.g. a speech decoder's token passing), where each generation
// inserts a batch of keyed values, looks them up many times, and then needs
// the whole hash index invalidated cheaply while the inserted values survive
// for the caller to consume.
//
// # Design
//
// A HashList is two structures threaded through one link field:
//
//   - The element list: every live element, linked through Elem.next. A
//     bucket's elements always form a contiguous run within this list, and
//     new elements enter at the head of their bucket's run, so the list as a
//     whole reads newest-run-first.
//
//   - The bucket table: bucketCount slots, indexed by hash(key) mod
//     bucketCount. A bucket records only the last element of its run (the
//     run's deep end in list order). There is no per-chain terminator: a run
//     begins right after the neighbouring run's last element and ends at the
//     bucket's own last element, so chain scans are bounded without any
//     extra links.
//
// Buckets touched since the last Clear are additionally threaded onto an
// active-bucket side list, ordered by activation, so that Clear resets only
// the buckets actually used rather than the whole table. Clear detaches the
// element list and hands it to the caller; the hash index becomes empty but
// the elements stay valid until the caller returns them one by one with
// Delete.
//
// Element storage is pooled: elements are carved from 1024-element blocks
// and recycled through a free list threaded over the same next field, so a
// steady-state generation loop performs no allocation at all. Blocks are
// only released by Close.
//
// A HashList is NOT goroutine-safe; it assumes a single logical owner, such
// as one frame-processing goroutine.
package hashlist

// blockSize is the number of elements carved out per pool block. Must be
// largish so tracking allocated blocks stays cheap.
const blockSize = 1024

// noBucket marks the absence of a bucket index in the active-bucket list.
const noBucket = -1

// Key constrains the key types a HashList accepts: fixed-width integral
// types, hashed by value. The default hash is the key value itself reduced
// mod the bucket count; WithHash substitutes any deterministic function.
type Key interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Elem is a single key/value pair owned by a HashList. The Val field may be
// modified freely through any Elem the container hands out; Key must not be
// changed while the element is live, since the hash index is keyed on it.
//
// After Clear, the caller walks the detached chain with Next and returns
// each element with Delete.
type Elem[K Key, V any] struct {
	Key K
	Val V
	// next threads the element list and the bucket runs while the element
	// is live, and the free list while it is pooled.
	next *Elem[K, V]
}

// Next returns the element following e, or nil at the end of the chain.
func (e *Elem[K, V]) Next() *Elem[K, V] {
	return e.next
}

// hashBucket is one slot of the hash index.
type hashBucket[K Key, V any] struct {
	// nextActive is the index of the bucket activated immediately after
	// this one, or noBucket for the most recently activated bucket. The
	// next-activated bucket's run directly precedes this bucket's run in
	// the element list, which is how findRun locates the run head in O(1).
	// Only meaningful while lastElem != nil.
	nextActive int
	// lastElem is the last element of this bucket's run in list order, or
	// nil if the bucket is empty.
	lastElem *Elem[K, V]
}

// HashList is a hash-indexed singly linked list from keys to values with
// Insert, InsertMore, Find, Clear, and Delete operations. The zero value is
// not usable; construct with New.
type HashList[K Key, V any] struct {
	// hash maps a key to a value that is reduced mod the bucket count.
	hash func(K) uintptr
	// allocator provides and reclaims element blocks for the pool.
	allocator Allocator[K, V]

	// listHead is the head of the element list (the newest run), nil when
	// the container is logically empty.
	listHead *Elem[K, V]
	// firstActive and lastActive bound the active-bucket list: firstActive
	// is the earliest-activated bucket and is where Clear starts its walk;
	// lastActive is the newest and is where the next activation links in.
	firstActive int
	lastActive  int

	// buckets backs the hash index. len(buckets) may exceed bucketCount:
	// SetSize never shrinks the backing array.
	buckets     []hashBucket[K, V]
	bucketCount int

	// freeHead is the head of the free list of pooled elements.
	freeHead *Elem[K, V]
	// allocated holds every block obtained from the allocator, released
	// only by Close.
	allocated [][]Elem[K, V]
}

// New constructs a HashList with the given number of hash buckets. For
// fastest lookups the bucket count should be roughly twice the number of
// elements expected per generation. If bucketCount is 0 the container starts
// unsized and SetSize must be called before the first Insert.
func New[K Key, V any](bucketCount int, options ...option[K, V]) *HashList[K, V] {
	h := &HashList[K, V]{
		hash:        func(key K) uintptr { return uintptr(key) },
		allocator:   defaultAllocator[K, V]{},
		firstActive: noBucket,
		lastActive:  noBucket,
	}
	for _, op := range options {
		op.apply(h)
	}
	if bucketCount > 0 {
		h.SetSize(bucketCount)
	}
	return h
}

// SetSize sets the number of hash buckets. It may only be called while the
// container is empty (freshly constructed, or right after a Clear); calling
// it with live elements is a programming error and panics. The backing
// bucket array only ever grows, so alternating between two sizes across
// generations does not reallocate.
func (h *HashList[K, V]) SetSize(bucketCount int) {
	if h.listHead != nil || h.firstActive != noBucket {
		panic("hashlist: SetSize called on a non-empty HashList")
	}
	h.bucketCount = bucketCount
	if bucketCount > len(h.buckets) {
		h.buckets = make([]hashBucket[K, V], bucketCount)
	}
}

// Size returns the current number of hash buckets.
func (h *HashList[K, V]) Size() int {
	return h.bucketCount
}

// bucketIndex reduces a key to its bucket. Calling any insert or lookup
// before SetSize (bucketCount == 0) divides by zero, by contract.
func (h *HashList[K, V]) bucketIndex(key K) int {
	return int(h.hash(key) % uintptr(h.bucketCount))
}

// runBounds returns the half-open element range [head, tail) holding every
// element of the bucket at index. The bucket must be active. The run head is
// the list head for the most recently activated bucket, and the element
// after the newer neighbour's last element otherwise; the run ends right
// after the bucket's own last element.
func (h *HashList[K, V]) runBounds(b *hashBucket[K, V]) (head, tail *Elem[K, V]) {
	head = h.listHead
	if b.nextActive != noBucket {
		head = h.buckets[b.nextActive].lastElem.next
	}
	return head, b.lastElem.next
}

// Find returns the element with the given key, or nil if the key is not
// present. The returned element stays owned by the container, but the caller
// may update its Val in place. When InsertMore has added several elements
// with the same key, Find returns the first-inserted one.
func (h *HashList[K, V]) Find(key K) *Elem[K, V] {
	b := &h.buckets[h.bucketIndex(key)]
	if b.lastElem == nil {
		return nil
	}
	head, tail := h.runBounds(b)
	for e := head; e != tail; e = e.next {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// Insert adds a new element for a key the caller asserts is not present
// (e.g. Find just returned nil). No duplicate check is performed: inserting
// a key that is already present creates a shadow element and which of the
// two Find returns is not guaranteed.
func (h *HashList[K, V]) Insert(key K, val V) {
	index := h.bucketIndex(key)
	b := &h.buckets[index]
	e := h.newElem()
	e.Key = key
	e.Val = val

	if b.lastElem == nil {
		// Freshly activated bucket: the element starts a new run at the
		// head of the element list, and the bucket links onto the
		// active-bucket list.
		e.next = h.listHead
		h.listHead = e
		b.lastElem = e
		b.nextActive = noBucket
		if h.lastActive == noBucket {
			h.firstActive = index
		} else {
			h.buckets[h.lastActive].nextActive = index
		}
		h.lastActive = index
	} else if b.nextActive == noBucket {
		// Occupied bucket whose run is at the head of the list.
		e.next = h.listHead
		h.listHead = e
	} else {
		// Occupied bucket deeper in the list: splice in at the head of
		// its run, just after the newer neighbour's last element.
		pred := h.buckets[b.nextActive].lastElem
		e.next = pred.next
		pred.next = e
	}

	if invariants {
		h.checkInvariants()
	}
}

// InsertMore adds another element with a key the caller asserts is already
// present. The new element goes at the end of the contiguous segment of
// elements with that key, so same-key elements stay adjacent in insertion
// order and Find keeps returning the first-inserted one.
func (h *HashList[K, V]) InsertMore(key K, val V) {
	b := &h.buckets[h.bucketIndex(key)]
	if b.lastElem == nil {
		panic("hashlist: InsertMore for a key with no existing element")
	}
	e := h.newElem()
	e.Key = key
	e.Val = val

	if b.lastElem.Key == key {
		// The same-key segment ends the run: append past the run's last
		// element and extend the run.
		e.next = b.lastElem.next
		b.lastElem.next = e
		b.lastElem = e
	} else {
		head, tail := h.runBounds(b)
		cur := head
		for cur != tail && cur.Key != key {
			cur = cur.next
		}
		if cur == tail {
			panic("hashlist: InsertMore for a key with no existing element")
		}
		// Walk to the end of the same-key segment. Equal keys never occur
		// outside this bucket's run, so no run-boundary check is needed.
		for cur.next != nil && cur.next.Key == key {
			cur = cur.next
		}
		e.next = cur.next
		cur.next = e
	}

	if invariants {
		h.checkInvariants()
	}
}

// Clear empties the hash index and returns the head of the element list,
// transferring ownership of the whole chain to the caller, who must
// eventually call Delete on each element. Only the buckets activated since
// the previous Clear are visited, so the cost is proportional to actual use
// and not to the table size. Returns nil if the container was empty.
func (h *HashList[K, V]) Clear() *Elem[K, V] {
	for i := h.firstActive; i != noBucket; {
		b := &h.buckets[i]
		i = b.nextActive
		b.lastElem = nil
		b.nextActive = noBucket
	}
	h.firstActive = noBucket
	h.lastActive = noBucket

	head := h.listHead
	h.listHead = nil

	if invariants {
		h.checkInvariants()
	}
	return head
}

// GetList returns the head of the live element list, or nil if the
// container is empty. Ownership stays with the container: the caller may
// walk the chain and update Val fields in place, but must not Delete through
// it — Delete is only for elements obtained from Clear.
func (h *HashList[K, V]) GetList() *Elem[K, V] {
	return h.listHead
}

// Delete returns an element obtained from a previous Clear to the pool. It
// is the inverse of the pool allocation, not of Insert: it must be called
// exactly once for each element of a detached chain, and never for elements
// still owned by the container.
func (h *HashList[K, V]) Delete(e *Elem[K, V]) {
	// Drop the stored value so pooled storage does not pin caller memory.
	var zero V
	e.Val = zero
	e.next = h.freeHead
	h.freeHead = e
}

// Close releases every pool block back to the allocator. Any elements still
// held by the caller from an undeleted Clear chain become invalid. Close is
// idempotent; no other method may be called after it.
func (h *HashList[K, V]) Close() {
	for _, block := range h.allocated {
		h.allocator.FreeElems(block)
	}
	h.allocated = nil
	h.freeHead = nil
	h.listHead = nil
	h.buckets = nil
	h.bucketCount = 0
	h.firstActive = noBucket
	h.lastActive = noBucket
	h.allocator = nil
}

// newElem pops an element off the free list, growing the pool by one block
// first if the free list is empty. Key and Val of the returned element are
// undefined.
func (h *HashList[K, V]) newElem() *Elem[K, V] {
	if h.freeHead == nil {
		h.grow()
	}
	e := h.freeHead
	h.freeHead = e.next
	return e
}

// grow allocates one more block and threads all of it onto the free list.
func (h *HashList[K, V]) grow() {
	block := h.allocator.AllocElems(blockSize)
	for i := range block[:len(block)-1] {
		block[i].next = &block[i+1]
	}
	block[len(block)-1].next = h.freeHead
	h.freeHead = &block[0]
	h.allocated = append(h.allocated, block)
}

// checkInvariants validates the coupled list/index bookkeeping. It walks
// every live element and is only intended for builds with the invariants
// tag; callers gate on the invariants constant.
func (h *HashList[K, V]) checkInvariants() {
	// The active-bucket list must visit only occupied buckets, without
	// repeats, ending at lastActive.
	active := make(map[int]bool)
	last := noBucket
	for i := h.firstActive; i != noBucket; i = h.buckets[i].nextActive {
		if active[i] {
			panic("hashlist: bucket linked into the active list twice")
		}
		if h.buckets[i].lastElem == nil {
			panic("hashlist: empty bucket on the active list")
		}
		active[i] = true
		last = i
	}
	if last != h.lastActive {
		panic("hashlist: active list does not end at lastActive")
	}
	if (h.firstActive == noBucket) != (h.listHead == nil) {
		panic("hashlist: active list and element list disagree on emptiness")
	}

	// Every live element must sit in its own bucket's run, runs must be
	// contiguous, and each run must end at its bucket's lastElem.
	seen := make(map[int]bool)
	prev := noBucket
	for e := h.listHead; e != nil; e = e.next {
		index := h.bucketIndex(e.Key)
		if !active[index] {
			panic("hashlist: live element in a bucket not on the active list")
		}
		if index != prev {
			if prev != noBucket && h.buckets[prev].lastElem.next != e {
				panic("hashlist: run does not end at its bucket's lastElem")
			}
			if seen[index] {
				panic("hashlist: bucket run is not contiguous")
			}
			seen[index] = true
			prev = index
		}
	}
	if prev != noBucket && h.buckets[prev].lastElem.next != nil {
		panic("hashlist: final run does not end at its bucket's lastElem")
	}
	if len(seen) != len(active) {
		panic("hashlist: active bucket with no run in the element list")
	}
}
