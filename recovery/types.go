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

import "github.com/scalelfs/rollforward/node"

// FileName is the result of the Filename Reconstructor (spec.md §4.A): a
// lookup-ready record built from a raw inode's name bytes, which may or
// may not carry a user-visible form depending on encryption/casefold.
type FileName struct {
	// DiskName is always populated with the raw on-disk name bytes. For an
	// encrypted+casefolded directory the precomputed hash stored after the
	// name is copied into Hash, not into DiskName.
	DiskName []byte
	// UsrFname is populated only for unencrypted directories.
	UsrFname []byte
	Hash     uint64
	// Encrypted reports whether UsrFname is intentionally absent.
	Encrypted bool
}

// String renders the name for structured logging: the user-visible form
// when available, "<encrypted>" otherwise (spec.md §4.G step 4).
func (f FileName) String() string {
	if f.Encrypted || len(f.UsrFname) == 0 {
		return "<encrypted>"
	}
	return string(f.UsrFname)
}

// DnodeCursor addresses the (inode, logical offset) slot in the live
// index (spec.md §3, "Dnode cursor").
type DnodeCursor struct {
	Inode  *node.Handle
	Nid    uint32
	OfsInNode uint32

	NodePage *NodePage

	InodePage       *NodePage
	InodePageLocked bool
}

// StartBidxOfNode returns the logical block index the dnode at ofsInNode
// begins indexing, given how many direct addresses a non-inode node page
// holds. Direct node 0 holds ADDRS_PER_INODE slots starting at bidx 0;
// every other node holds ADDRS_PER_BLOCK slots at an offset derived from
// its position in the node tree. Recovery only ever needs the inline
// (ofs==0) and single-indirect shapes fsync chains exercise, so this
// mirrors f3fs's simplified direct-node arithmetic rather than the full
// multi-level tree walk.
func StartBidxOfNode(ofsInNodeTree uint32, addrsPerInode, addrsPerBlock uint32) uint64 {
	if ofsInNodeTree == 0 {
		return 0
	}
	return uint64(addrsPerInode) + uint64(ofsInNodeTree-1)*uint64(addrsPerBlock)
}
