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

// Footer is the bit-exact node footer carried by every node block
// (spec.md §3, "Node footer"). It identifies the owning inode, the node's
// position in the node tree, the recovery bits, and the next block in the
// fsync chain.
type Footer struct {
	Ino            uint32
	Nid            uint32
	OfsInNodeTree  uint32
	NextBlkAddr    BlkAddr
	IsInode        bool
	FsyncMark      bool
	DentryMark     bool
	HasXattrBlock  bool
	CpVersion      uint64
}

// Recoverable reports whether the footer's checkpoint epoch matches the
// epoch of the checkpoint the filesystem mounted with (spec.md §3: "a node
// is recoverable iff its epoch equals the mounted checkpoint's epoch").
func (f Footer) Recoverable(mountedEpoch uint64) bool {
	return f.CpVersion == mountedEpoch
}

// RawInode is the on-disk inode block (spec.md §3, "Raw inode block").
type RawInode struct {
	Mode  uint16
	UID   uint32
	GID   uint32
	Size  uint64

	Atime, Ctime, Mtime     int64
	AtimeNsec, CtimeNsec, MtimeNsec int32

	Flags      uint32
	Advise     uint8
	GCFailures uint16

	InlineXattr bool
	InlineData  bool
	InlineDentry bool
	PinFile     bool
	DataExist   bool

	ExtraAttr bool
	ProjID    uint32
	HasProjID bool

	Pino    uint32
	NameLen uint16
	Name    []byte // raw on-disk bytes, possibly followed by a casefold hash

	DataBlkAddr []BlkAddr

	KeepISize bool
}

// SummaryEntry is a persisted per-block-in-segment record identifying which
// node currently indexes that block (spec.md §3, "Segment summary entry").
type SummaryEntry struct {
	Nid       uint32
	OfsInNode uint32
	Version   uint8
}
