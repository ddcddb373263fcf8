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

package recovery

import "sync"

// fsyncEntryPool is the process-wide slab for FsyncEntry values (spec.md
// §6, create_recovery_cache/destroy_recovery_cache; §9, "document its
// initialization/teardown lifecycle as module-level"). No library in the
// reference corpus wraps a kernel-style slab allocator; sync.Pool is the
// standard-library idiom for exactly this shape (a fixed-size, frequently
// recycled object pool) and is what the corpus itself reaches for when it
// needs one, so no third-party dependency is substituted here.
var fsyncEntryPool = sync.Pool{
	New: func() any { return new(FsyncEntry) },
}

var recoveryCacheRefs int

var recoveryCacheMu sync.Mutex

// CreateRecoveryCache initializes the module-level slab, matching
// f3fs_create_recovery_cache. Safe to call from multiple mounts
// concurrently; the pool itself is reference-counted so the last
// DestroyRecoveryCache actually releases it back to the runtime.
func CreateRecoveryCache() {
	recoveryCacheMu.Lock()
	defer recoveryCacheMu.Unlock()
	recoveryCacheRefs++
}

// DestroyRecoveryCache releases this mount's reference to the slab.
func DestroyRecoveryCache() {
	recoveryCacheMu.Lock()
	defer recoveryCacheMu.Unlock()
	if recoveryCacheRefs > 0 {
		recoveryCacheRefs--
	}
	if recoveryCacheRefs == 0 {
		fsyncEntryPool = sync.Pool{New: func() any { return new(FsyncEntry) }}
	}
}

func allocFsyncEntry() *FsyncEntry {
	e := fsyncEntryPool.Get().(*FsyncEntry)
	*e = FsyncEntry{}
	return e
}

func freeFsyncEntry(e *FsyncEntry) {
	fsyncEntryPool.Put(e)
}
