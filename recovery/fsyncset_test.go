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
	"testing"

	"github.com/scalelfs/rollforward/node"
	"github.com/stretchr/testify/assert"
)

func TestFsyncSet_AddGetRemove(t *testing.T) {
	s := newFsyncSet()
	assert.Nil(t, s.Get(1))

	e := &FsyncEntry{Inode: node.NewHandle(1)}
	s.Add(1, e)
	assert.Same(t, e, s.Get(1))
	assert.Equal(t, 1, s.Len())

	removed := s.Remove(1)
	assert.Same(t, e, removed)
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Get(1))
}

func TestFsyncSet_AddDuplicatePanics(t *testing.T) {
	s := newFsyncSet()
	s.Add(1, &FsyncEntry{Inode: node.NewHandle(1)})
	assert.Panics(t, func() {
		s.Add(1, &FsyncEntry{Inode: node.NewHandle(1)})
	})
}

func TestFsyncSet_EachPreservesInsertionOrder(t *testing.T) {
	s := newFsyncSet()
	s.Add(3, &FsyncEntry{Inode: node.NewHandle(3)})
	s.Add(1, &FsyncEntry{Inode: node.NewHandle(1)})
	s.Add(2, &FsyncEntry{Inode: node.NewHandle(2)})

	var order []uint32
	s.Each(func(ino uint32, _ *FsyncEntry) { order = append(order, ino) })

	assert.Equal(t, []uint32{3, 1, 2}, order)
}

func TestFsyncSet_MoveTo(t *testing.T) {
	src := newFsyncSet()
	dst := newFsyncSet()
	e := &FsyncEntry{Inode: node.NewHandle(5)}
	src.Add(5, e)

	ok := src.MoveTo(5, dst)
	assert.True(t, ok)
	assert.Equal(t, 0, src.Len())
	assert.Same(t, e, dst.Get(5))

	assert.False(t, src.MoveTo(5, dst))
}

func TestDirSet_AddGet(t *testing.T) {
	s := newDirSet()
	assert.Nil(t, s.Get(1))

	e := &FsyncEntry{Inode: node.NewHandle(1)}
	s.Add(1, e)
	assert.Same(t, e, s.Get(1))
	assert.Equal(t, 1, s.Len())
}

func TestDirSet_AddDuplicatePanics(t *testing.T) {
	s := newDirSet()
	s.Add(1, &FsyncEntry{Inode: node.NewHandle(1)})
	assert.Panics(t, func() {
		s.Add(1, &FsyncEntry{Inode: node.NewHandle(1)})
	})
}

func TestDirSet_EachDrainsInInsertionOrder(t *testing.T) {
	s := newDirSet()
	s.Add(3, &FsyncEntry{Inode: node.NewHandle(3)})
	s.Add(1, &FsyncEntry{Inode: node.NewHandle(1)})
	s.Add(2, &FsyncEntry{Inode: node.NewHandle(2)})

	var order []uint32
	s.Each(func(ino uint32, _ *FsyncEntry) { order = append(order, ino) })

	assert.Equal(t, []uint32{3, 1, 2}, order)
	assert.Equal(t, 0, s.Len()) // Each drains
}

func TestDirSet_SatisfiesEntryIterator(t *testing.T) {
	var _ entryIterator = newDirSet()
	var _ entryIterator = newFsyncSet()
}
