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
	"testing"

	"github.com/scalelfs/rollforward/internal/lrucache"
	"github.com/scalelfs/rollforward/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reclaimFakeWorld backs the cross-inode slow path: the dnode cursor's own
// inode (ino 1) differs from the summary's prior owner (ino 2), so
// resolvePriorOwner must fetch a fresh handle via IgetRetry and reclaimOnce
// must release exactly that handle, never the caller's dn.Inode.
type reclaimFakeWorld struct {
	nodes   map[uint32]*NodePage // keyed by nid
	summary map[node.BlkAddr]node.SummaryEntry

	igetCount int
	released  []*node.Handle

	readSummaryCalls int
}

func (w *reclaimFakeWorld) ReadNode(ctx context.Context, blkaddr node.BlkAddr) (*NodePage, error) {
	return w.nodes[uint32(blkaddr)], nil
}
func (w *reclaimFakeWorld) ValidPOR(ctx context.Context, blkaddr node.BlkAddr) bool { return true }
func (w *reclaimFakeWorld) ReadSummary(ctx context.Context, blkaddr node.BlkAddr) (node.SummaryEntry, error) {
	w.readSummaryCalls++
	return w.summary[blkaddr], nil
}
func (w *reclaimFakeWorld) CurrentSegmentSummary(segno uint32) (node.SummaryEntry, bool) {
	return node.SummaryEntry{}, false
}
func (w *reclaimFakeWorld) NodeInfo(ctx context.Context, nid uint32) (uint32, uint32, uint8, error) {
	p := w.nodes[nid]
	return p.Footer.Ino, p.Footer.OfsInNodeTree, 0, nil
}
func (w *reclaimFakeWorld) Readahead(ctx context.Context, blkaddr node.BlkAddr, window int) {}

func (w *reclaimFakeWorld) IgetRetry(ctx context.Context, ino uint32, initQuota bool) (*node.Handle, error) {
	w.igetCount++
	return node.NewHandle(ino), nil
}
func (w *reclaimFakeWorld) RecoverInodePage(ctx context.Context, page *NodePage) error { return nil }
func (w *reclaimFakeWorld) Release(h *node.Handle)                                     { w.released = append(w.released, h) }

func (w *reclaimFakeWorld) ReserveNewBlock(ctx context.Context, cur *DnodeCursor, slot int) (node.BlkAddr, error) {
	return 0, nil
}
func (w *reclaimFakeWorld) ReplaceBlock(ctx context.Context, cur *DnodeCursor, slot int, dest node.BlkAddr, version uint8) error {
	return nil
}
func (w *reclaimFakeWorld) InvalidateBlock(ctx context.Context, src node.BlkAddr) error { return nil }
func (w *reclaimFakeWorld) AllocateNewSegments(ctx context.Context) error               { return nil }
func (w *reclaimFakeWorld) TruncateDataBlocksRange(ctx context.Context, ino uint32, fromIdx uint64) error {
	return nil
}

func TestReclaimOnce_CrossInodeSlowPath_ReleasesOnlyFreshInode(t *testing.T) {
	w := &reclaimFakeWorld{
		nodes:   map[uint32]*NodePage{},
		summary: map[node.BlkAddr]node.SummaryEntry{},
	}
	// The prior-owner dnode, nid 20, belongs to ino 2 and holds a single
	// slot pointing at block 999 (not the block being reclaimed).
	w.nodes[20] = &NodePage{
		Footer:      node.Footer{Ino: 2, Nid: 20, OfsInNodeTree: 0},
		DataBlkAddr: []node.BlkAddr{999},
	}
	w.summary[node.BlkAddr(42)] = node.SummaryEntry{Nid: 20, OfsInNode: 0}

	r := &Reclaimer{
		Nodes:         w,
		Inodes:        w,
		Allocator:     w,
		Metrics:       &fakeReplayMetrics{},
		SegmentOf:     func(b node.BlkAddr) (uint32, uint32) { return 0, uint32(b) },
		ValidInBitmap: func(segno, blkoff uint32) bool { return true },
		AddrsPerInode: 10,
		AddrsPerBlock: 10,
	}

	callerInode := node.NewHandle(1)
	dn := &DnodeCursor{Inode: callerInode, Nid: 10, NodePage: &NodePage{}}

	err := r.reclaimOnce(context.Background(), dn, node.BlkAddr(42))
	require.NoError(t, err)

	require.Equal(t, 1, w.igetCount)
	require.Len(t, w.released, 1)
	assert.NotSame(t, callerInode, w.released[0])
	assert.Equal(t, uint32(2), w.released[0].Ino())
}

func TestReclaimOnce_SameInodeSlowPath_ReleasesNothing(t *testing.T) {
	w := &reclaimFakeWorld{
		nodes:   map[uint32]*NodePage{},
		summary: map[node.BlkAddr]node.SummaryEntry{},
	}
	w.nodes[20] = &NodePage{
		Footer:      node.Footer{Ino: 1, Nid: 20, OfsInNodeTree: 0},
		DataBlkAddr: []node.BlkAddr{999},
	}
	w.summary[node.BlkAddr(42)] = node.SummaryEntry{Nid: 20, OfsInNode: 0}

	r := &Reclaimer{
		Nodes:         w,
		Inodes:        w,
		Allocator:     w,
		Metrics:       &fakeReplayMetrics{},
		SegmentOf:     func(b node.BlkAddr) (uint32, uint32) { return 0, uint32(b) },
		ValidInBitmap: func(segno, blkoff uint32) bool { return true },
		AddrsPerInode: 10,
		AddrsPerBlock: 10,
	}

	callerInode := node.NewHandle(1)
	dn := &DnodeCursor{Inode: callerInode, Nid: 10, NodePage: &NodePage{}}

	err := r.reclaimOnce(context.Background(), dn, node.BlkAddr(42))
	require.NoError(t, err)

	assert.Equal(t, 0, w.igetCount)
	assert.Empty(t, w.released)
}

func TestResolveSummary_CachesReadSummaryAcrossCalls(t *testing.T) {
	w := &reclaimFakeWorld{
		nodes:   map[uint32]*NodePage{},
		summary: map[node.BlkAddr]node.SummaryEntry{42: {Nid: 20, OfsInNode: 0}},
	}
	r := &Reclaimer{Nodes: w, Summaries: lrucache.New(16)}

	s1, err := r.resolveSummary(context.Background(), 0, node.BlkAddr(42))
	require.NoError(t, err)
	s2, err := r.resolveSummary(context.Background(), 0, node.BlkAddr(42))
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.Equal(t, 1, w.readSummaryCalls)
}

func TestResolveSummary_NoCacheReadsEveryTime(t *testing.T) {
	w := &reclaimFakeWorld{
		nodes:   map[uint32]*NodePage{},
		summary: map[node.BlkAddr]node.SummaryEntry{42: {Nid: 20, OfsInNode: 0}},
	}
	r := &Reclaimer{Nodes: w}

	_, err := r.resolveSummary(context.Background(), 0, node.BlkAddr(42))
	require.NoError(t, err)
	_, err = r.resolveSummary(context.Background(), 0, node.BlkAddr(42))
	require.NoError(t, err)

	assert.Equal(t, 2, w.readSummaryCalls)
}
