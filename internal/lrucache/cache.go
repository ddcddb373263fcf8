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

// Package lrucache is a small size-bounded least-recently-used cache. The
// previous-owner reclaimer uses one instance to avoid re-reading a segment
// summary block for every data block in a dense fsync chain; it is a
// performance cache local to the caller, not a replacement for the node or
// summary caches that live outside this module.
package lrucache

import (
	"container/list"
	"fmt"
)

// ValueType is anything cacheable; Size reports the weight charged against
// the cache's capacity.
type ValueType interface {
	Size() uint64
}

type Cache interface {
	Insert(key string, value ValueType) []ValueType
	Erase(key string) ValueType
	LookUp(key string) ValueType
	CheckInvariants()
}

type entry struct {
	key   string
	value ValueType
}

type lru struct {
	capacity uint64
	size     uint64
	ll       *list.List
	index    map[string]*list.Element
}

// New returns an empty cache that evicts least-recently-used entries once
// the sum of inserted Size() values would exceed capacity.
func New(capacity uint64) Cache {
	return &lru{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Insert adds or overwrites key, marking it most recently used, and returns
// any entries evicted to make room.
func (c *lru) Insert(key string, value ValueType) []ValueType {
	if value == nil {
		panic("lrucache: nil value")
	}

	var evicted []ValueType

	if el, ok := c.index[key]; ok {
		c.size -= el.Value.(*entry).value.Size()
		c.ll.Remove(el)
		delete(c.index, key)
	}

	el := c.ll.PushFront(&entry{key: key, value: value})
	c.index[key] = el
	c.size += value.Size()

	for c.size > c.capacity && c.ll.Len() > 0 {
		back := c.ll.Back()
		e := back.Value.(*entry)
		if e.key == key && c.ll.Len() == 1 {
			break
		}
		c.ll.Remove(back)
		delete(c.index, e.key)
		c.size -= e.value.Size()
		evicted = append(evicted, e.value)
	}

	return evicted
}

func (c *lru) Erase(key string) ValueType {
	el, ok := c.index[key]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.index, key)
	c.size -= e.value.Size()
	return e.value
}

func (c *lru) LookUp(key string) ValueType {
	el, ok := c.index[key]
	if !ok {
		return nil
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).value
}

func (c *lru) CheckInvariants() {
	if c.ll.Len() != len(c.index) {
		panic(fmt.Sprintf("lrucache: list length %d != index length %d", c.ll.Len(), len(c.index)))
	}

	var total uint64
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if c.index[e.key] != el {
			panic("lrucache: index points to wrong element for key " + e.key)
		}
		total += e.value.Size()
	}
	if total != c.size {
		panic(fmt.Sprintf("lrucache: tracked size %d != computed size %d", c.size, total))
	}
}
