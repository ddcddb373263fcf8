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

import (
	"container/list"

	"github.com/scalelfs/rollforward/common"
	"github.com/scalelfs/rollforward/node"
)

// entryIterator is the teardown-time iteration surface both fsyncSet and
// dirSet provide, letting a single release loop drain either one without
// caring which backing structure it was given.
type entryIterator interface {
	Each(fn func(ino uint32, entry *FsyncEntry))
}

// FsyncEntry is the in-memory record the Pass Orchestrator keeps per
// recoverable inode (spec.md §3, "Fsync inode entry"). At most one exists
// per ino at any time.
type FsyncEntry struct {
	Inode             *node.Handle
	FirstBlkAddr      node.BlkAddr
	LastDentryBlkAddr node.BlkAddr
	HasLastDentry     bool
	// QuotaOwned records whether this entry was pre-installed with a
	// quota allocation (spec.md §4.D step 5) and so must have that quota
	// released on teardown.
	QuotaOwned bool
}

// fsyncSet is a map keyed by ino with membership also recorded in an
// explicit doubly-linked list, preserving insertion order for teardown
// (spec.md §9: "map ino → FsyncEntry with membership also recorded in an
// explicit list for ordering-preserving iteration during teardown").
//
// Grounded on the map+container/list directory-entry cache shape used
// elsewhere in the corpus to keep O(1) lookup alongside ordered iteration.
type fsyncSet struct {
	byIno map[uint32]*list.Element
	order *list.List // list.Element.Value is *FsyncEntry
}

func newFsyncSet() *fsyncSet {
	return &fsyncSet{
		byIno: make(map[uint32]*list.Element),
		order: list.New(),
	}
}

// Get returns the entry for ino, or nil if absent.
func (s *fsyncSet) Get(ino uint32) *FsyncEntry {
	el, ok := s.byIno[ino]
	if !ok {
		return nil
	}
	return el.Value.(*FsyncEntry)
}

// Add inserts a new entry for ino at the back of the ordering list. Panics
// if ino is already present: spec.md I1 requires at most one entry per
// inode, and a caller inserting twice is a programming error, not a
// recoverable runtime condition.
func (s *fsyncSet) Add(ino uint32, entry *FsyncEntry) {
	if _, exists := s.byIno[ino]; exists {
		panic("recovery: duplicate fsync entry for ino")
	}
	el := s.order.PushBack(entry)
	s.byIno[ino] = el
}

// Remove deletes the entry for ino, returning it (or nil if absent).
func (s *fsyncSet) Remove(ino uint32) *FsyncEntry {
	el, ok := s.byIno[ino]
	if !ok {
		return nil
	}
	delete(s.byIno, ino)
	s.order.Remove(el)
	return el.Value.(*FsyncEntry)
}

// Len reports how many entries remain.
func (s *fsyncSet) Len() int { return s.order.Len() }

// Each iterates entries in insertion order, the order teardown must
// preserve so earlier-installed parents are torn down before the children
// discovered through them.
func (s *fsyncSet) Each(fn func(ino uint32, entry *FsyncEntry)) {
	for el := s.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*FsyncEntry)
		fn(entry.Inode.Ino(), entry)
	}
}

// MoveTo transfers the entry for ino from s into dst, preserving dst's own
// ordering semantics (spec.md §4.H step 7: "move the entry to
// tmp_inode_list"). Returns false if ino was not present in s.
func (s *fsyncSet) MoveTo(ino uint32, dst *fsyncSet) bool {
	entry := s.Remove(ino)
	if entry == nil {
		return false
	}
	dst.Add(ino, entry)
	return true
}

// dirSet is the parent-directory set the Dentry Replayer consults (spec.md
// §4.G step 1). Unlike inodeList/tmpInodeList, a parent is only ever added
// once, never moved or removed mid-pass, and is drained exactly once at
// teardown — a FIFO is sufficient, so this is backed directly by
// common.Queue instead of fsyncSet's map+list combination.
type dirSet struct {
	byIno map[uint32]*FsyncEntry
	order common.Queue[uint32]
}

func newDirSet() *dirSet {
	return &dirSet{
		byIno: make(map[uint32]*FsyncEntry),
		order: common.NewLinkedListQueue[uint32](),
	}
}

// Get returns the entry for ino, or nil if absent.
func (s *dirSet) Get(ino uint32) *FsyncEntry {
	return s.byIno[ino]
}

// Add inserts a new entry for ino. Panics if ino is already present, the
// same duplicate-entry invariant fsyncSet.Add enforces.
func (s *dirSet) Add(ino uint32, entry *FsyncEntry) {
	if _, exists := s.byIno[ino]; exists {
		panic("recovery: duplicate dir entry for ino")
	}
	s.byIno[ino] = entry
	s.order.Push(ino)
}

// Len reports how many entries remain.
func (s *dirSet) Len() int { return s.order.Len() }

// Each drains entries in insertion order, calling fn once per entry.
func (s *dirSet) Each(fn func(ino uint32, entry *FsyncEntry)) {
	for !s.order.IsEmpty() {
		ino := s.order.Pop()
		fn(ino, s.byIno[ino])
	}
}
