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

// Package diskimage is a minimal, in-memory stand-in for the real
// node/inode page cache, segment summary area, block allocator, directory
// layer, and checkpoint writer that spec.md §1 keeps out of scope as
// "interfaces only". It exists so the rollforward CLI has something
// concrete to drive end to end; it is not a parser for any real on-disk
// layout. Images are gob-encoded snapshots built by tests or by the
// `rollforward` tooling that produces fixtures.
package diskimage

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sync"

	"github.com/scalelfs/rollforward/node"
	"github.com/scalelfs/rollforward/recovery"
)

// Snapshot is the serializable contents of a device image.
type Snapshot struct {
	Nodes    map[uint32]recovery.NodePage // keyed by blkaddr, the raw on-disk chain
	Inodes   map[uint32]node.Attributes   // ino -> attributes, pre-recovery
	Entries  map[uint32]map[string]uint32 // dirIno -> name -> target ino
	Summary  map[uint32]node.SummaryEntry // blkaddr -> summary

	// LiveNodes holds the currently-installed node page cache, keyed by
	// nid, distinct from Nodes: Nodes is what the fsync-chain scan reads
	// block by block, LiveNodes is what GetDnode opens a cursor on and
	// what the data replay diff compares the chain's recorded values
	// against. A nid absent here and requested with alloc=true is
	// synthesized as a fresh, all-NullAddr node.
	LiveNodes map[uint32]recovery.NodePage

	CheckpointEpoch  uint64
	NextFreeBlkAddr  node.BlkAddr
	UserBlockCount   uint64
	LastValidBlocks  uint64
	FreeBlocksInMain uint64
	ReadOnly         bool
	Zoned            bool
}

// Load decodes a gob-encoded Snapshot from path.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening device image: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding device image: %w", err)
	}
	return &snap, nil
}

// Save gob-encodes snap to path, for test fixture authoring.
func Save(path string, snap *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(snap)
}

// Image wires a Snapshot up as the full set of recovery collaborator
// interfaces, guarded by a single mutex since the recovery pass is
// single-threaded by contract (spec.md §5).
type Image struct {
	mu     sync.Mutex // guards snap/handles access
	ckptMu sync.Mutex // the checkpoint-serializing write lock (spec.md §5)
	snap   *Snapshot

	handles   map[uint32]*node.Handle
	porDoing  bool
	recovered bool

	invalidated []node.BlkAddr
	replaced    []node.BlkAddr
}

// New wraps snap as an Image.
func New(snap *Snapshot) *Image {
	return &Image{snap: snap, handles: make(map[uint32]*node.Handle)}
}

// --- recovery.NodeReader ---

func (img *Image) ReadNode(ctx context.Context, blkaddr node.BlkAddr) (*recovery.NodePage, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	page, ok := img.snap.Nodes[uint32(blkaddr)]
	if !ok {
		return nil, fmt.Errorf("no node at blkaddr %d", blkaddr)
	}
	cp := page
	return &cp, nil
}

func (img *Image) ValidPOR(ctx context.Context, blkaddr node.BlkAddr) bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	_, ok := img.snap.Nodes[uint32(blkaddr)]
	return ok
}

func (img *Image) ReadSummary(ctx context.Context, blkaddr node.BlkAddr) (node.SummaryEntry, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	s, ok := img.snap.Summary[uint32(blkaddr)]
	if !ok {
		return node.SummaryEntry{}, fmt.Errorf("no summary at blkaddr %d", blkaddr)
	}
	return s, nil
}

func (img *Image) CurrentSegmentSummary(segno uint32) (node.SummaryEntry, bool) {
	return node.SummaryEntry{}, false
}

func (img *Image) NodeInfo(ctx context.Context, nid uint32) (ino uint32, ofs uint32, version uint8, err error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	page, ok := img.snap.Nodes[nid]
	if !ok {
		return 0, 0, 0, fmt.Errorf("no node for nid %d", nid)
	}
	return page.Footer.Ino, page.Footer.OfsInNodeTree, uint8(page.Footer.CpVersion), nil
}

func (img *Image) Readahead(ctx context.Context, blkaddr node.BlkAddr, window int) {}

// --- recovery.InodeStore ---

func (img *Image) IgetRetry(ctx context.Context, ino uint32, initQuota bool) (*node.Handle, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if h, ok := img.handles[ino]; ok {
		h.Get()
		return h, nil
	}
	attrs, ok := img.snap.Inodes[ino]
	if !ok {
		return nil, &recovery.Error{Kind: recovery.KindNotFound, Op: "diskimage.iget_retry"}
	}
	h := node.NewHandle(ino)
	h.Attrs = attrs
	img.handles[ino] = h
	return h, nil
}

func (img *Image) RecoverInodePage(ctx context.Context, page *recovery.NodePage) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if _, ok := img.snap.Inodes[page.Footer.Ino]; !ok {
		img.snap.Inodes[page.Footer.Ino] = node.Attributes{}
	}
	return nil
}

// Release writes h's attributes back into the image when dirty, mirroring
// a real page cache's write-back on the last reference drop, then drops
// the caller's reference.
func (img *Image) Release(h *node.Handle) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if h.Dirty {
		img.snap.Inodes[h.Ino()] = h.Attrs
	}
	if h.Put() {
		delete(img.handles, h.Ino())
	}
}

// --- recovery.DirLayer ---

func (img *Image) FindEntry(ctx context.Context, dirIno uint32, name recovery.FileName) (uint32, bool, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	entries, ok := img.snap.Entries[dirIno]
	if !ok {
		return 0, false, nil
	}
	target, ok := entries[name.String()]
	return target, ok, nil
}

func (img *Image) AddDentry(ctx context.Context, dirIno uint32, name recovery.FileName, targetIno uint32) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	entries, ok := img.snap.Entries[dirIno]
	if !ok {
		entries = make(map[string]uint32)
		img.snap.Entries[dirIno] = entries
	}
	entries[name.String()] = targetIno
	return nil
}

func (img *Image) DeleteEntry(ctx context.Context, dirIno uint32, name recovery.FileName) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	delete(img.snap.Entries[dirIno], name.String())
	return nil
}

func (img *Image) Orphan(ctx context.Context, ino uint32) error { return nil }

// --- recovery.IndexStore ---

func (img *Image) GetDnode(ctx context.Context, h *node.Handle, nid uint32, ofs uint32, alloc bool) (*recovery.DnodeCursor, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.snap.LiveNodes == nil {
		img.snap.LiveNodes = make(map[uint32]recovery.NodePage)
	}

	page, ok := img.snap.LiveNodes[nid]
	if !ok {
		if !alloc {
			return nil, &recovery.Error{Kind: recovery.KindNotFound, Op: "diskimage.get_dnode"}
		}
		// A freshly allocated indirect node starts zero-filled; Replay
		// grows the slot slice to the width it needs.
		page = recovery.NodePage{Footer: node.Footer{Ino: h.Ino(), OfsInNodeTree: ofs}}
	}
	cp := page
	return &recovery.DnodeCursor{Inode: h, Nid: nid, OfsInNode: ofs, NodePage: &cp}, nil
}

// ReleaseDnode commits the cursor's (possibly mutated) live node page back
// into the image before releasing it.
func (img *Image) ReleaseDnode(cur *recovery.DnodeCursor) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.snap.LiveNodes == nil {
		img.snap.LiveNodes = make(map[uint32]recovery.NodePage)
	}
	img.snap.LiveNodes[cur.Nid] = *cur.NodePage
}

func (img *Image) WaitOnPageWriteback(ctx context.Context, cur *recovery.DnodeCursor) {}

// --- recovery.Allocator ---

func (img *Image) ReserveNewBlock(ctx context.Context, cur *recovery.DnodeCursor, slot int) (node.BlkAddr, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.snap.NextFreeBlkAddr++
	return img.snap.NextFreeBlkAddr, nil
}

func (img *Image) ReplaceBlock(ctx context.Context, cur *recovery.DnodeCursor, slot int, dest node.BlkAddr, version uint8) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.replaced = append(img.replaced, dest)
	return nil
}

func (img *Image) InvalidateBlock(ctx context.Context, src node.BlkAddr) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.invalidated = append(img.invalidated, src)
	return nil
}

// Invalidated returns the block addresses passed to InvalidateBlock so far,
// for tests asserting a prior owner's slot was reclaimed.
func (img *Image) Invalidated() []node.BlkAddr {
	img.mu.Lock()
	defer img.mu.Unlock()
	return append([]node.BlkAddr(nil), img.invalidated...)
}

// Replaced returns the destination addresses passed to ReplaceBlock so far.
func (img *Image) Replaced() []node.BlkAddr {
	img.mu.Lock()
	defer img.mu.Unlock()
	return append([]node.BlkAddr(nil), img.replaced...)
}

func (img *Image) AllocateNewSegments(ctx context.Context) error { return nil }

func (img *Image) TruncateDataBlocksRange(ctx context.Context, ino uint32, fromIdx uint64) error {
	return nil
}

// --- recovery.QuotaService ---

func (img *Image) TransferQuota(ctx context.Context, ino uint32, fromUID, toUID, fromGID, toGID uint32) error {
	return nil
}

func (img *Image) TransferProjectQuota(ctx context.Context, ino uint32, fromProjID, toProjID uint32) error {
	return nil
}

func (img *Image) NeedsRepair(ctx context.Context) {}
func (img *Image) Enable(ctx context.Context) error  { return nil }
func (img *Image) Disable(ctx context.Context) error { return nil }

// --- recovery.FilenameCodec ---

func (img *Image) DirEncrypted(dirIno uint32) bool  { return false }
func (img *Image) DirCasefolded(dirIno uint32) bool { return false }
func (img *Image) Casefold(raw []byte) []byte       { return raw }
func (img *Image) Hash(dirIno uint32, name []byte) uint64 {
	var h uint64 = 14695981039346656037
	for _, c := range name {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// --- recovery.CheckpointLock / CheckpointWriter ---

func (img *Image) Lock(ctx context.Context) error { img.ckptMu.Lock(); return nil }
func (img *Image) Unlock()                        { img.ckptMu.Unlock() }

func (img *Image) WriteCheckpoint(ctx context.Context, reason string) error { return nil }

// --- recovery.MountState ---

func (img *Image) ReadOnly() bool      { return img.snap.ReadOnly }
func (img *Image) SetReadOnly(ro bool) { img.snap.ReadOnly = ro }

func (img *Image) CheckpointEpoch() uint64      { return img.snap.CheckpointEpoch }
func (img *Image) NextFreeBlkAddr() node.BlkAddr { return img.snap.NextFreeBlkAddr }

func (img *Image) LastValidBlockCount() uint64 { return img.snap.LastValidBlocks }
func (img *Image) UserBlockCount() uint64      { return img.snap.UserBlockCount }
func (img *Image) PendingAllocCount() uint64   { return 0 }
func (img *Image) RfNodeBlockCount() uint64    { return uint64(len(img.snap.Nodes)) }

func (img *Image) FreeBlocksInMainArea() uint64 { return img.snap.FreeBlocksInMain }

func (img *Image) ZonedDevice() bool { return img.snap.Zoned }
func (img *Image) FixCurSegWritePointer(ctx context.Context) error { return nil }

func (img *Image) TruncateMetaAbove(ctx context.Context, blkaddr node.BlkAddr) error { return nil }
func (img *Image) TruncateNodeAndMetaFully(ctx context.Context) error                { return nil }

func (img *Image) SetPorDoing(v bool)   { img.porDoing = v }
func (img *Image) SetRecovered(v bool)  { img.recovered = v }

// --- recovery.XattrHandler ---

func (img *Image) ReplayInlineXattr(ctx context.Context, ino uint32, raw *node.RawInode) error {
	return nil
}
func (img *Image) ReplayXattrBlock(ctx context.Context, page *recovery.NodePage) error { return nil }
func (img *Image) ReplayInlineData(ctx context.Context, ino uint32, raw *node.RawInode) (bool, error) {
	return false, nil
}
