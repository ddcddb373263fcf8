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
	"context"

	"github.com/scalelfs/rollforward/node"
)

// The interfaces below stand in for the collaborators spec.md §1 calls
// out of scope: the block allocator and segment manager, the node/inode
// page cache, the directory layer, the checkpoint writer, and the
// quota/casefold subsystems. Recovery depends only on these shapes; a real
// mount wires a concrete implementation, tests wire fakes.

// NodeReader reads node and summary pages (the node/inode page cache and
// the on-disk node/summary areas).
type NodeReader interface {
	// ReadNode reads the node block at blkaddr. Returns KindIOError if
	// unreadable.
	ReadNode(ctx context.Context, blkaddr node.BlkAddr) (*NodePage, error)

	// ValidPOR reports whether blkaddr may be read as part of the POR
	// chain (spec.md §4.D step 1).
	ValidPOR(ctx context.Context, blkaddr node.BlkAddr) bool

	// ReadSummary resolves the summary entry describing which node
	// currently indexes blkaddr (spec.md §4.E step 2).
	ReadSummary(ctx context.Context, blkaddr node.BlkAddr) (node.SummaryEntry, error)

	// CurrentSegmentSummary reads the in-memory summary block for a hot,
	// warm, or cold current data segment, when segno names one.
	CurrentSegmentSummary(segno uint32) (node.SummaryEntry, bool)

	// NodeInfo resolves (ino, ofsInNodeTree, version) for a live nid without
	// going through an inode handle (spec.md §4.E slow path; §4.F step 6
	// consumes version — f2fs's struct node_info.version — as the value a
	// replaced block's summary entry is stamped with).
	NodeInfo(ctx context.Context, nid uint32) (ino uint32, ofs uint32, version uint8, err error)

	// Readahead issues a fire-and-forget metadata prefetch of window
	// blocks starting at blkaddr (spec.md §4.D step 8, §5 "Background I/O
	// (readahead) is fire-and-forget").
	Readahead(ctx context.Context, blkaddr node.BlkAddr, window int)
}

// NodePage is a node block as read by NodeReader: the raw footer plus
// either inode contents or a dnode's data block addresses.
type NodePage struct {
	Footer node.Footer
	Inode  *node.RawInode // non-nil iff Footer.IsInode
	// DataBlkAddr holds the dnode's per-slot addresses when this page is
	// not an inode block.
	DataBlkAddr []node.BlkAddr
}

// InodeStore is the node/inode page cache's iget surface.
type InodeStore interface {
	// IgetRetry resolves a live inode handle by ino, retrying internally
	// on transient allocation failure. Returns KindNotFound if no inode
	// table entry exists for ino.
	IgetRetry(ctx context.Context, ino uint32, initQuota bool) (*node.Handle, error)

	// RecoverInodePage pre-installs an inode into the node-info table from
	// a raw inode page so a subsequent IgetRetry can find it (spec.md
	// §4.D step 5, recover_inode_page).
	RecoverInodePage(ctx context.Context, page *NodePage) error

	// Release drops the caller's reference to h.
	Release(h *node.Handle)
}

// DirLayer is the directory layer's find/add/delete surface (spec.md §1).
type DirLayer interface {
	FindEntry(ctx context.Context, dirIno uint32, name FileName) (targetIno uint32, found bool, err error)
	AddDentry(ctx context.Context, dirIno uint32, name FileName, targetIno uint32) error
	DeleteEntry(ctx context.Context, dirIno uint32, name FileName) error
	// Orphan places an unreferenced inode on the orphan list for later
	// reclaim, used when a displaced dentry target has no other links.
	Orphan(ctx context.Context, ino uint32) error
}

// IndexStore resolves the live dnode cursor addressing an (inode, node
// tree offset) slot, the node/inode page cache's get_dnode_of_data
// surface.
type IndexStore interface {
	// GetDnode opens a cursor on the live node identified by nid/ofs. When
	// alloc is true, missing indirect nodes along the way are created
	// (ALLOC_NODE semantics, spec.md §4.F step 3); when false, a missing
	// node returns KindNotFound (LOOKUP_NODE semantics, spec.md §4.E
	// step 4).
	GetDnode(ctx context.Context, h *node.Handle, nid uint32, ofs uint32, alloc bool) (*DnodeCursor, error)
	// ReleaseDnode releases resources held by cur.
	ReleaseDnode(cur *DnodeCursor)
	// WaitOnPageWriteback blocks until cur's node page has finished any
	// in-flight writeback (spec.md §4.F step 4).
	WaitOnPageWriteback(ctx context.Context, cur *DnodeCursor)
}

// Allocator is the block allocator and segment manager surface.
type Allocator interface {
	// ReserveNewBlock reserves a fresh block address for dn's slot,
	// marking it in-flight in the segment bitmap.
	ReserveNewBlock(ctx context.Context, cur *DnodeCursor, slot int) (node.BlkAddr, error)
	// ReplaceBlock rewrites dn's slot to dest and updates the summary
	// with the given version, without setting the recover bit and
	// without touching GC accounting (spec.md §4.F step 6).
	ReplaceBlock(ctx context.Context, cur *DnodeCursor, slot int, dest node.BlkAddr, version uint8) error
	// InvalidateBlock marks src no longer indexed by anyone (truncate-out,
	// spec.md §4.E step 5, and the NULL_ADDR case of §4.F step 6).
	InvalidateBlock(ctx context.Context, src node.BlkAddr) error
	// AllocateNewSegments rotates write frontiers past the replayed
	// region once a pass completes successfully (spec.md §4.H step 8).
	AllocateNewSegments(ctx context.Context) error
	// TruncateDataBlocksRange truncates a range of data block indices
	// above a size boundary.
	TruncateDataBlocksRange(ctx context.Context, ino uint32, fromIdx uint64) error
}

// QuotaService is the quota/xattr subsystem's transfer surface
// (spec.md §4.C).
type QuotaService interface {
	// TransferQuota moves block/inode usage from (fromUID, fromGID) to
	// (toUID, toGID), or the project id, and reports whether it failed.
	TransferQuota(ctx context.Context, ino uint32, fromUID, toUID, fromGID, toGID uint32) error
	TransferProjectQuota(ctx context.Context, ino uint32, fromProjID, toProjID uint32) error
	// NeedsRepair tags the superblock SBI_QUOTA_NEED_REPAIR flag.
	NeedsRepair(ctx context.Context)
	// Enable/Disable bracket the pass's duration (spec.md §4.H steps 2, 15).
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// FilenameCodec supplies the encryption/casefold subsystem's surface for
// the Filename Reconstructor (spec.md §4.A).
type FilenameCodec interface {
	DirEncrypted(dirIno uint32) bool
	DirCasefolded(dirIno uint32) bool
	// Casefold returns the casefolded form of raw.
	Casefold(raw []byte) []byte
	// Hash computes the lookup hash of name under dirIno's encoding.
	Hash(dirIno uint32, name []byte) uint64
}

// CheckpointLock is the checkpoint-serializing exclusive lock (spec.md §5).
type CheckpointLock interface {
	Lock(ctx context.Context) error
	Unlock()
}

// CheckpointWriter persists a new checkpoint (spec.md §4.H step 14).
type CheckpointWriter interface {
	WriteCheckpoint(ctx context.Context, reason string) error
}

// MountState exposes the small slice of superblock/mount state the
// orchestrator reads and temporarily mutates (spec.md §4.H steps 1, 10, 11,
// 12, 15).
type MountState interface {
	ReadOnly() bool
	SetReadOnly(ro bool)

	CheckpointEpoch() uint64
	NextFreeBlkAddr() node.BlkAddr

	LastValidBlockCount() uint64
	UserBlockCount() uint64
	PendingAllocCount() uint64
	RfNodeBlockCount() uint64

	FreeBlocksInMainArea() uint64

	ZonedDevice() bool
	FixCurSegWritePointer(ctx context.Context) error

	TruncateMetaAbove(ctx context.Context, blkaddr node.BlkAddr) error
	TruncateNodeAndMetaFully(ctx context.Context) error

	SetPorDoing(v bool)
	SetRecovered(v bool)
}
