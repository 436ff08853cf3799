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

package hashlist

// option provides an interface to do work on a HashList while it is being
// created.
type option[K Key, V any] interface {
	apply(h *HashList[K, V])
}

type hashOption[K Key, V any] struct {
	hash func(key K) uintptr
}

func (op hashOption[K, V]) apply(h *HashList[K, V]) {
	h.hash = op.hash
}

// WithHash is an option to replace the default hash (the key value itself)
// for a HashList[K,V]. The function must be deterministic; its result is
// reduced mod the bucket count.
func WithHash[K Key, V any](hash func(key K) uintptr) option[K, V] {
	return hashOption[K, V]{hash}
}

// Allocator specifies an interface for allocating and releasing the element
// blocks backing a HashList's pool. The default allocator uses Go's builtin
// make() and lets the GC reclaim memory.
//
// If the allocator manually manages memory then HashList.Close must be
// called to ensure FreeElems is invoked for every allocated block.
type Allocator[K Key, V any] interface {
	// AllocElems should return a slice equivalent to make([]Elem[K,V], n).
	AllocElems(n int) []Elem[K, V]

	// FreeElems can optionally release the memory associated with the
	// supplied slice, which is guaranteed to have been allocated by
	// AllocElems.
	FreeElems(v []Elem[K, V])
}

type defaultAllocator[K Key, V any] struct{}

func (defaultAllocator[K, V]) AllocElems(n int) []Elem[K, V] {
	return make([]Elem[K, V], n)
}

func (defaultAllocator[K, V]) FreeElems(v []Elem[K, V]) {
}

type allocatorOption[K Key, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(h *HashList[K, V]) {
	h.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// HashList[K,V].
func WithAllocator[K Key, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
