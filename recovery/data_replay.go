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

	"github.com/scalelfs/rollforward/common"
	"github.com/scalelfs/rollforward/node"
)

// PageSize is the filesystem block/page size recovery uses for the
// inode-size growth law (spec.md §4.F step 6, P6).
const PageSize = 4096

// DataReplayer applies the per-page index diff between a raw node block
// and the live node that will be written (spec.md §4.F, component F,
// do_recover_data). Its core loop walks slot-by-slot comparing the raw
// and live addresses the same way a dirty-region diff walks byte ranges:
// unchanged slots are skipped, a NULL destination invalidates, a fresh
// destination reserves-then-reclaims-then-replaces.
type DataReplayer struct {
	Reclaimer *Reclaimer
	Nodes     NodeReader
	Allocator Allocator
	Metrics   common.ReplayMetricHandle

	AddrsPerInode uint32
	AddrsPerBlock uint32

	// AddrSane is the allocator/segment manager's POR validity check for an
	// individual slot address (spec.md §1, out of scope): a block address
	// the bitmap disagrees with fails the chain walk rather than being
	// replayed. Nil accepts every address.
	AddrSane func(addr node.BlkAddr) bool

	// FaultInjectRetry is consulted after ReserveNewBlock fails: when it
	// returns true the reservation is retried, otherwise the failure is
	// returned as KindNoSpace. Nil never retries.
	FaultInjectRetry func() bool
}

func (d *DataReplayer) addrSane(a node.BlkAddr) bool {
	if d.AddrSane == nil {
		return true
	}
	return d.AddrSane(a)
}

// XattrHandler replays inline and block-form extended attributes, the
// out-of-scope xattr subsystem's surface for step 1.
type XattrHandler interface {
	ReplayInlineXattr(ctx context.Context, ino uint32, raw *node.RawInode) error
	ReplayXattrBlock(ctx context.Context, page *NodePage) error
	// ReplayInlineData attempts inline-data recovery, returning true if
	// inline data was applied (no index work needed).
	ReplayInlineData(ctx context.Context, ino uint32, raw *node.RawInode) (applied bool, err error)
}

// ReplayXattrAndInline implements spec.md §4.F steps 1-2. It reports
// whether the caller must still run the index diff (Replay): false means
// this page was entirely handled as an xattr block or fully-inline file.
func ReplayXattrAndInline(ctx context.Context, xattr XattrHandler, metrics common.ReplayMetricHandle, page *NodePage, raw *node.RawInode) (needIndex bool, err error) {
	if page.Footer.IsInode {
		if err := xattr.ReplayInlineXattr(ctx, page.Footer.Ino, raw); err != nil {
			return false, err
		}
	} else if page.Footer.HasXattrBlock {
		if err := xattr.ReplayXattrBlock(ctx, page); err != nil {
			return false, err
		}
		metrics.BlocksReplaced(ctx, 1)
		return false, nil
	}

	applied, err := xattr.ReplayInlineData(ctx, page.Footer.Ino, raw)
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}
	return true, nil
}

// Replay implements spec.md §4.F steps 3-6: the index diff proper. Xattr
// and inline-data handling (steps 1-2) are invoked by the caller before
// Replay, since they can short-circuit index work entirely; Replay is
// only reached once the caller knows real index slots need reconciling.
func (d *DataReplayer) Replay(ctx context.Context, dn *DnodeCursor, raw *node.RawInode, rawFooter node.Footer) error {
	start := StartBidxOfNode(rawFooter.OfsInNodeTree, d.AddrsPerInode, d.AddrsPerBlock)
	end := start + uint64(len(raw.DataBlkAddr))

	if dn.NodePage.Footer.Ino != rawFooter.Ino {
		return newErr(KindCorrupted, "data_replay.ino_mismatch", nil)
	}
	if dn.NodePage.Footer.OfsInNodeTree != rawFooter.OfsInNodeTree {
		return newErr(KindCorrupted, "data_replay.ofs_mismatch", nil)
	}

	// A freshly allocated indirect node (GetDnode's alloc=true path for a
	// nid not yet in the live page cache) starts with no slots recorded;
	// grow it to the width this page's addresses need, all NullAddr.
	for len(dn.NodePage.DataBlkAddr) < int(end-start) {
		dn.NodePage.DataBlkAddr = append(dn.NodePage.DataBlkAddr, node.NullAddr)
	}

	for i := 0; i < int(end-start); i++ {
		src := dn.NodePage.DataBlkAddr[i]
		dest := raw.DataBlkAddr[i]

		if !d.addrSane(src) || !d.addrSane(dest) {
			return newErr(KindCorrupted, "data_replay.invalid_blkaddr", nil)
		}

		if src == dest {
			continue
		}

		if dest == node.NullAddr {
			if err := d.Allocator.InvalidateBlock(ctx, src); err != nil {
				return err
			}
			dn.NodePage.DataBlkAddr[i] = node.NullAddr
			continue
		}

		d.growSize(dn, raw, int(start)+i)

		if dest == node.NewAddr {
			if err := d.Allocator.InvalidateBlock(ctx, src); err != nil {
				return err
			}
			if _, err := d.reserve(ctx, dn, i); err != nil {
				return err
			}
			continue
		}

		// dest is a concrete, valid block address.
		if src == node.NullAddr {
			if _, err := d.reserve(ctx, dn, i); err != nil {
				return err
			}
		}

		if err := d.Reclaimer.Reclaim(ctx, dn, dest); err != nil {
			return err
		}

		_, _, version, err := d.Nodes.NodeInfo(ctx, dn.Nid)
		if err != nil {
			return err
		}
		if err := d.Allocator.ReplaceBlock(ctx, dn, i, dest, version); err != nil {
			return err
		}
		dn.NodePage.DataBlkAddr[i] = dest
		d.Metrics.BlocksReplaced(ctx, 1)
	}

	dn.NodePage.Footer = node.Footer{
		Ino:           rawFooter.Ino,
		Nid:           dn.Nid,
		OfsInNodeTree: rawFooter.OfsInNodeTree,
		IsInode:       rawFooter.IsInode,
		DentryMark:    false,
		CpVersion:     rawFooter.CpVersion,
	}
	return nil
}

// growSize implements spec.md §4.F step 6's size policy (P6): unless the
// inode carries KeepISize, grow i_size to cover the highest offset
// replayed so far.
func (d *DataReplayer) growSize(dn *DnodeCursor, raw *node.RawInode, bidx int) {
	if raw.KeepISize {
		return
	}
	want := uint64(bidx+1) * PageSize
	if dn.Inode.Attrs.Size < want {
		dn.Inode.Attrs.Size = want
	}
}

func (d *DataReplayer) reserve(ctx context.Context, dn *DnodeCursor, slot int) (node.BlkAddr, error) {
	for {
		addr, err := d.Allocator.ReserveNewBlock(ctx, dn, slot)
		if err == nil {
			return addr, nil
		}
		if d.FaultInjectRetry != nil && d.FaultInjectRetry() {
			continue
		}
		return 0, newErr(KindNoSpace, "data_replay.reserve", err)
	}
}

