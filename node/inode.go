// Copyright 2025 Google LLC
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

package node

import (
	"sync"
	"time"
)

// Attributes mirrors the fields of a raw inode block that the Inode
// Replayer (spec.md §4.B) writes into the live in-memory inode.
type Attributes struct {
	Mode uint16
	UID  uint32
	GID  uint32
	Size uint64

	Atime, Ctime, Mtime time.Time

	Flags      uint32
	Advise     uint8
	GCFailures uint16

	PinFile   bool
	DataExist bool

	ProjID uint32
}

// RefCount is a reference count guarding an in-memory handle's lifetime.
// Every successful acquisition (the recovery pass's analogue of
// iget_retry) is paired with exactly one release; the count reaching zero
// destroys the handle (spec.md §5, "Shared-resource policy").
//
// Adapted from the lookup-count pattern used to decide when an in-core
// inode can be reclaimed: here recovery's own references replace lookup
// counts, since there is no kernel dcache driving them.
type RefCount struct {
	mu    sync.Mutex
	count uint64
}

// Inc records one more reference.
func (r *RefCount) Inc() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

// Dec releases n references and reports whether the count reached zero.
func (r *RefCount) Dec(n uint64) (destroyed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.count {
		panic("node: RefCount.Dec below zero")
	}
	r.count -= n
	return r.count == 0
}

// Count returns the current reference count, for tests and invariant
// checks.
func (r *RefCount) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Handle is a live, in-core inode the recovery pass obtained via a
// collaborator's Iget (the out-of-scope node/inode page cache, spec.md §1).
// It embeds sync.RWMutex the way a page lock is embedded on the kernel
// inode: one page lock per handle, briefly held while examined or
// modified, and occasionally dropped-and-restored across a reentrant
// descend (spec.md §5, the 4.E lock-drop dance).
type Handle struct {
	sync.RWMutex

	ino  uint32
	refs RefCount

	Attrs Attributes
	Dirty bool

	// lockDropped tracks a temporarily-dropped lock so DropLockForReuse/
	// RestoreLock pairs are provably balanced (spec.md §9: "reacquisition on all exit
	// paths is a testable invariant, not an easily-missed goto cleanup").
	lockDropped bool
}

// NewHandle returns a handle for ino with one reference held.
func NewHandle(ino uint32) *Handle {
	h := &Handle{ino: ino}
	h.refs.Inc()
	return h
}

// Ino returns the inode number this handle represents.
func (h *Handle) Ino() uint32 { return h.ino }

// Get adds one more reference to the handle, mirroring iget_retry being
// called again for an inode already resident.
func (h *Handle) Get() { h.refs.Inc() }

// Put releases one reference, reporting whether this was the last one.
func (h *Handle) Put() (destroyed bool) { return h.refs.Dec(1) }

// RefCount exposes the current reference count for tests.
func (h *Handle) RefCount() uint64 { return h.refs.Count() }

// DropLockForReuse temporarily releases the write lock so the handle's
// node page can be reused as the target of a reentrant descend into the
// same inode's index (spec.md §4.E step 3, slow path). The reference is
// retained. Must be paired with exactly one RestoreLock.
func (h *Handle) DropLockForReuse() {
	if h.lockDropped {
		panic("node: DropLockForReuse called while already dropped")
	}
	h.lockDropped = true
	h.Unlock()
}

// RestoreLock reacquires the write lock dropped by DropLockForReuse.
func (h *Handle) RestoreLock() {
	if !h.lockDropped {
		panic("node: RestoreLock called without a matching DropLockForReuse")
	}
	h.Lock()
	h.lockDropped = false
}

// MarkDirty marks the handle for synchronous writeback, the way the
// Inode Replayer does at the end of applying an inode block (spec.md
// §4.B step 9: "synchronous dirty, not writeback").
func (h *Handle) MarkDirty() { h.Dirty = true }
