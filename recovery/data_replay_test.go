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

	"github.com/scalelfs/rollforward/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndexWorld backs a Reclaimer/DataReplayer pair with a tiny in-memory
// model: a single segment whose valid bitmap and summary are controlled
// directly by the test, plus a map of nid -> live node page standing in
// for the node/inode page cache.
type fakeIndexWorld struct {
	valid    map[node.BlkAddr]bool
	summary  map[node.BlkAddr]node.SummaryEntry
	liveNode map[uint32]*NodePage

	invalidated []node.BlkAddr
	replaced    []node.BlkAddr
	reserved    []node.BlkAddr
	nextReserve node.BlkAddr
}

func newFakeIndexWorld() *fakeIndexWorld {
	return &fakeIndexWorld{
		valid:    map[node.BlkAddr]bool{},
		summary:  map[node.BlkAddr]node.SummaryEntry{},
		liveNode: map[uint32]*NodePage{},
	}
}

func (w *fakeIndexWorld) ReadNode(ctx context.Context, blkaddr node.BlkAddr) (*NodePage, error) {
	return w.liveNode[uint32(blkaddr)], nil
}
func (w *fakeIndexWorld) ValidPOR(ctx context.Context, blkaddr node.BlkAddr) bool { return true }
func (w *fakeIndexWorld) ReadSummary(ctx context.Context, blkaddr node.BlkAddr) (node.SummaryEntry, error) {
	return w.summary[blkaddr], nil
}
func (w *fakeIndexWorld) CurrentSegmentSummary(segno uint32) (node.SummaryEntry, bool) {
	return node.SummaryEntry{}, false
}
func (w *fakeIndexWorld) NodeInfo(ctx context.Context, nid uint32) (uint32, uint32, uint8, error) {
	p := w.liveNode[nid]
	return p.Footer.Ino, p.Footer.OfsInNodeTree, uint8(p.Footer.CpVersion), nil
}
func (w *fakeIndexWorld) Readahead(ctx context.Context, blkaddr node.BlkAddr, window int) {}

func (w *fakeIndexWorld) IgetRetry(ctx context.Context, ino uint32, initQuota bool) (*node.Handle, error) {
	return node.NewHandle(ino), nil
}
func (w *fakeIndexWorld) RecoverInodePage(ctx context.Context, page *NodePage) error { return nil }
func (w *fakeIndexWorld) Release(h *node.Handle)                                    {}

func (w *fakeIndexWorld) ReserveNewBlock(ctx context.Context, cur *DnodeCursor, slot int) (node.BlkAddr, error) {
	w.nextReserve++
	w.reserved = append(w.reserved, w.nextReserve)
	return w.nextReserve, nil
}
func (w *fakeIndexWorld) ReplaceBlock(ctx context.Context, cur *DnodeCursor, slot int, dest node.BlkAddr, version uint8) error {
	w.replaced = append(w.replaced, dest)
	return nil
}
func (w *fakeIndexWorld) InvalidateBlock(ctx context.Context, src node.BlkAddr) error {
	w.invalidated = append(w.invalidated, src)
	w.valid[src] = false
	return nil
}
func (w *fakeIndexWorld) AllocateNewSegments(ctx context.Context) error { return nil }
func (w *fakeIndexWorld) TruncateDataBlocksRange(ctx context.Context, ino uint32, fromIdx uint64) error {
	return nil
}

func TestDataReplayer_ReplaceReclaimsPriorOwner(t *testing.T) {
	w := newFakeIndexWorld()

	priorOwnerNid := uint32(200)
	w.liveNode[priorOwnerNid] = &NodePage{
		Footer:      node.Footer{Ino: 99, Nid: priorOwnerNid, OfsInNodeTree: 0},
		DataBlkAddr: []node.BlkAddr{55},
	}
	w.valid[node.BlkAddr(55)] = true
	w.summary[node.BlkAddr(55)] = node.SummaryEntry{Nid: priorOwnerNid, OfsInNode: 0}
	w.liveNode[300] = &NodePage{Footer: node.Footer{Nid: 300, CpVersion: 7}}

	reclaimer := &Reclaimer{
		Nodes:     w,
		Inodes:    w,
		Allocator: w,
		Metrics:   &fakeReplayMetrics{},
		SegmentOf: func(b node.BlkAddr) (uint32, uint32) { return 0, uint32(b) },
		ValidInBitmap: func(segno, blkoff uint32) bool {
			return w.valid[node.BlkAddr(blkoff)]
		},
		AddrsPerInode: 10,
		AddrsPerBlock: 10,
	}

	replayer := &DataReplayer{
		Reclaimer:     reclaimer,
		Nodes:         w,
		Allocator:     w,
		Metrics:       &fakeReplayMetrics{},
		AddrsPerInode: 10,
		AddrsPerBlock: 10,
	}

	h := node.NewHandle(1)
	h.Attrs.Size = 0
	dn := &DnodeCursor{
		Inode: h,
		Nid:   300,
		NodePage: &NodePage{
			Footer:      node.Footer{Ino: 1, Nid: 300},
			DataBlkAddr: []node.BlkAddr{node.NullAddr},
		},
	}
	raw := &node.RawInode{DataBlkAddr: []node.BlkAddr{55}}
	footer := node.Footer{Ino: 1, OfsInNodeTree: 0, CpVersion: 7}

	err := replayer.Replay(context.Background(), dn, raw, footer)
	require.NoError(t, err)

	assert.Contains(t, w.invalidated, node.BlkAddr(55)) // prior owner truncated
	assert.Contains(t, w.replaced, node.BlkAddr(55))     // new owner's slot set
	assert.Equal(t, node.BlkAddr(55), dn.NodePage.DataBlkAddr[0])
	assert.Equal(t, uint64(4096), h.Attrs.Size) // P6: size grew to cover offset 0
}

func TestDataReplayer_NullDestInvalidatesSource(t *testing.T) {
	w := newFakeIndexWorld()
	reclaimer := &Reclaimer{Nodes: w, Inodes: w, Allocator: w, Metrics: &fakeReplayMetrics{},
		SegmentOf: func(b node.BlkAddr) (uint32, uint32) { return 0, uint32(b) },
		ValidInBitmap: func(segno, blkoff uint32) bool { return false }}
	replayer := &DataReplayer{Reclaimer: reclaimer, Allocator: w, Metrics: &fakeReplayMetrics{}}

	h := node.NewHandle(1)
	dn := &DnodeCursor{Inode: h, NodePage: &NodePage{DataBlkAddr: []node.BlkAddr{42}}}
	raw := &node.RawInode{DataBlkAddr: []node.BlkAddr{node.NullAddr}}

	err := replayer.Replay(context.Background(), dn, raw, node.Footer{})
	require.NoError(t, err)

	assert.Contains(t, w.invalidated, node.BlkAddr(42))
	assert.Equal(t, node.NullAddr, dn.NodePage.DataBlkAddr[0])
}

func TestDataReplayer_NoopWhenSlotsMatch(t *testing.T) {
	w := newFakeIndexWorld()
	reclaimer := &Reclaimer{Nodes: w, Inodes: w, Allocator: w, Metrics: &fakeReplayMetrics{},
		SegmentOf: func(b node.BlkAddr) (uint32, uint32) { return 0, 0 }, ValidInBitmap: func(uint32, uint32) bool { return false }}
	replayer := &DataReplayer{Reclaimer: reclaimer, Allocator: w, Metrics: &fakeReplayMetrics{}}

	h := node.NewHandle(1)
	dn := &DnodeCursor{Inode: h, NodePage: &NodePage{DataBlkAddr: []node.BlkAddr{7}}}
	raw := &node.RawInode{DataBlkAddr: []node.BlkAddr{7}}

	err := replayer.Replay(context.Background(), dn, raw, node.Footer{})
	require.NoError(t, err)
	assert.Empty(t, w.invalidated)
	assert.Empty(t, w.replaced)
}
