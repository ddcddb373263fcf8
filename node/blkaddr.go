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

// Package node models the on-disk node block (inode and dnode) and the
// in-memory handles the recovery pass uses to address them. It has no
// knowledge of recovery policy; it only represents the shapes recovery
// reads and mutates.
package node

// BlkAddr is a device-relative block address. NullAddr and NewAddr are
// distinct sentinels, not nullable addresses (spec.md §9): a slot can be
// "unallocated", "reserved but unwritten", or "a real address", and those
// three states must never collapse into two.
type BlkAddr uint32

const (
	// NullAddr marks an unallocated slot.
	NullAddr BlkAddr = 0
	// NewAddr marks a slot reserved by a prior writer but never flushed.
	NewAddr BlkAddr = 1<<32 - 1
)

// Valid reports whether a is neither sentinel.
func (a BlkAddr) Valid() bool {
	return a != NullAddr && a != NewAddr
}

func (a BlkAddr) String() string {
	switch a {
	case NullAddr:
		return "NULL_ADDR"
	case NewAddr:
		return "NEW_ADDR"
	default:
		return fmtUint(uint32(a))
	}
}

func fmtUint(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
