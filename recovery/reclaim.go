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
	"strconv"
	"time"

	"github.com/scalelfs/rollforward/clock"
	"github.com/scalelfs/rollforward/common"
	"github.com/scalelfs/rollforward/internal/lrucache"
	"github.com/scalelfs/rollforward/node"
)

// Reclaimer disentangles a prior owner's claim on a destination block
// before the fsync chain rewrites it (spec.md §4.E, component E,
// check_index_in_prev_nodes). SegmentOf/ValidInBitmap and the addrs-per-node
// constants are supplied by the allocator/segment manager collaborator
// through the small closures below, since spec.md keeps that subsystem
// out of scope.
type Reclaimer struct {
	Nodes     NodeReader
	Inodes    InodeStore
	Allocator Allocator
	Metrics   common.ReplayMetricHandle

	SegmentOf     func(blkaddr node.BlkAddr) (segno uint32, blkoff uint32)
	ValidInBitmap func(segno, blkoff uint32) bool
	AddrsPerInode uint32
	AddrsPerBlock uint32

	// Summaries caches resolveSummary's ReadSummary fallback, avoiding a
	// repeat read of the same segment summary block for every data block
	// in a dense fsync chain (and on every -ENOMEM retry of the same
	// blkaddr). Nil disables caching.
	Summaries lrucache.Cache

	// Clock is the time source the -ENOMEM retry loop backs off against
	// (spec.md §4.E: "retried with a cooperative back-off wait"). Nil
	// defaults to clock.RealClock, letting tests swap in a FakeClock.
	Clock clock.Clock

	// memRetryWait, when set, overrides the wait entirely; used by tests
	// that want to assert on retry counts without driving a fake clock.
	memRetryWait func(ctx context.Context) error
}

func (r *Reclaimer) wait(ctx context.Context) error {
	if r.memRetryWait != nil {
		return r.memRetryWait(ctx)
	}
	c := r.Clock
	if c == nil {
		c = clock.RealClock{}
	}
	select {
	case <-c.After(time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reclaim implements spec.md §4.E steps 1-5 for a destination blkaddr
// about to be claimed by dn.
func (r *Reclaimer) Reclaim(ctx context.Context, dn *DnodeCursor, blkaddr node.BlkAddr) error {
	for {
		err := r.reclaimOnce(ctx, dn, blkaddr)
		if err == nil {
			return nil
		}
		if !Is(err, KindOutOfMemory) {
			return err
		}
		if waitErr := r.wait(ctx); waitErr != nil {
			return waitErr
		}
	}
}

func (r *Reclaimer) reclaimOnce(ctx context.Context, dn *DnodeCursor, blkaddr node.BlkAddr) error {
	segno, blkoff := r.SegmentOf(blkaddr)
	if !r.ValidInBitmap(segno, blkoff) {
		return nil // step 1: no prior claim
	}

	summary, err := r.resolveSummary(ctx, segno, blkaddr)
	if err != nil {
		return err
	}

	tdn, bidx, err := r.resolvePriorOwner(ctx, dn, summary)
	if err != nil {
		return err
	}
	if tdn == nil {
		return nil // resolved to "nothing to truncate"
	}
	if tdn.ownsInode {
		defer r.Inodes.Release(tdn.inode)
	}

	target, err := r.lookupNode(ctx, tdn, bidx) // step 4
	if err != nil {
		if Is(err, KindNotFound) {
			return nil // hole: nothing to truncate
		}
		return err
	}

	if target == blkaddr { // step 5: truncate-out
		if err := r.Allocator.InvalidateBlock(ctx, target); err != nil {
			return err
		}
		r.Metrics.BlocksReclaimed(ctx, 1)
	}
	return nil
}

func (r *Reclaimer) resolveSummary(ctx context.Context, segno uint32, blkaddr node.BlkAddr) (node.SummaryEntry, error) {
	if s, ok := r.Nodes.CurrentSegmentSummary(segno); ok {
		return s, nil
	}

	key := strconv.FormatUint(uint64(blkaddr), 10)
	if r.Summaries != nil {
		if v := r.Summaries.LookUp(key); v != nil {
			return v.(summaryCacheEntry).summary, nil
		}
	}

	s, err := r.Nodes.ReadSummary(ctx, blkaddr)
	if err != nil {
		return node.SummaryEntry{}, newErr(KindIOError, "reclaim.read_summary", err)
	}

	if r.Summaries != nil {
		r.Summaries.Insert(key, summaryCacheEntry{summary: s})
	}

	return s, nil
}

// summaryCacheEntry adapts a resolved summary entry to lrucache's
// ValueType, weighting every entry equally.
type summaryCacheEntry struct {
	summary node.SummaryEntry
}

func (summaryCacheEntry) Size() uint64 { return 1 }

// priorOwner is the fully resolved prior-owner dnode cursor, lazily
// opened on the nid/bidx the summary points at (step 3/4).
type priorOwner struct {
	inode *node.Handle
	nid   uint32
	// ownsInode is true only when inode was freshly obtained via
	// IgetRetry in the slow path's cross-inode branch, mirroring
	// check_index_in_prev_nodes's out: label ("if (ino != dn->inode->i_ino)
	// iput(inode)"). Fast paths A/B and the slow path's same-inode branch
	// reuse a handle the caller already owns a reference to and must not
	// be released here.
	ownsInode bool
}

func (r *Reclaimer) resolvePriorOwner(ctx context.Context, dn *DnodeCursor, summary node.SummaryEntry) (*priorOwner, uint64, error) {
	// Fast path A: the prior owner is the same inode whose dnode we are
	// already holding.
	if dn.Inode != nil && dn.Inode.Ino() == summary.Nid {
		return &priorOwner{inode: dn.Inode, nid: summary.Nid}, uint64(summary.OfsInNode), nil
	}
	// Fast path B: the prior owner's node is the dnode page we already
	// hold.
	if dn.Nid == summary.Nid {
		return &priorOwner{inode: dn.Inode, nid: summary.Nid}, uint64(summary.OfsInNode), nil
	}

	// Slow path: fetch the node at summary.Nid to learn its owner.
	ino, ofs, _, err := r.Nodes.NodeInfo(ctx, summary.Nid)
	if err != nil {
		return nil, 0, newErr(KindIOError, "reclaim.node_info", err)
	}

	var priorInode *node.Handle
	droppedLock := false
	if dn.Inode != nil && ino == dn.Inode.Ino() {
		priorInode = dn.Inode
		if dn.InodePageLocked {
			dn.Inode.DropLockForReuse()
			droppedLock = true
		}
	}

	ownsInode := false
	if priorInode == nil {
		h, err := r.Inodes.IgetRetry(ctx, ino, true)
		if Is(err, KindNotFound) {
			return nil, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		priorInode = h
		ownsInode = true
	}

	bidx := StartBidxOfNode(ofs, r.AddrsPerInode, r.AddrsPerBlock) + uint64(summary.OfsInNode)

	if droppedLock {
		defer dn.Inode.RestoreLock()
	}

	return &priorOwner{inode: priorInode, nid: summary.Nid, ownsInode: ownsInode}, bidx, nil
}

// lookupNode opens a fresh cursor on the prior owner at bidx in
// non-allocating (LOOKUP_NODE) mode and returns the data block address
// currently stored there (step 4).
func (r *Reclaimer) lookupNode(ctx context.Context, owner *priorOwner, bidx uint64) (node.BlkAddr, error) {
	page, err := r.Nodes.ReadNode(ctx, node.BlkAddr(owner.nid))
	if err != nil {
		return 0, newErr(KindNotFound, "reclaim.lookup_node", err)
	}
	idx := bidx - StartBidxOfNode(page.Footer.OfsInNodeTree, r.AddrsPerInode, r.AddrsPerBlock)
	if idx >= uint64(len(page.DataBlkAddr)) {
		return 0, newErr(KindNotFound, "reclaim.lookup_node", nil)
	}
	return page.DataBlkAddr[idx], nil
}
