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
	"github.com/scalelfs/rollforward/internal/workerpool"
	"github.com/scalelfs/rollforward/node"
)

// chainVisitor receives each (blkaddr, page) pair the chain walk reads,
// already epoch-filtered; the scan and the apply pass each supply their
// own visitor (spec.md §9: "factor the chain walk as a reusable
// iterator... the scan and apply phases consume it with different
// visitors").
type chainVisitor func(ctx context.Context, blkaddr node.BlkAddr, page *NodePage) error

// Scanner walks the fsync chain from the checkpoint frontier, component D.
type Scanner struct {
	Nodes   NodeReader
	Inodes  InodeStore
	Metrics common.ScanMetricHandle

	// RaPool dispatches the chain walk's readahead as fire-and-forget
	// background work instead of blocking the walk on it (spec.md §5,
	// "Background I/O (readahead) is fire-and-forget"). Nil runs the
	// readahead call inline, which tests rely on.
	RaPool *workerpool.Pool

	MinRaBlocks      int
	MaxRaBlocks      int
	MaxRfNodeBlocks  uint64
	BlocksPerSegment int
}

// walkChain drives the shared chain-walking loop (spec.md §4.D steps 1-9,
// §4.H step 7) starting at start, stopping at the first block outside the
// checkpoint's epoch, an invalid POR address, or maxIterations exhausted.
// visit is invoked once per recoverable (fsync_mark irrelevant) node page
// actually read; the scan and apply callers decide what to do with it.
func (s *Scanner) walkChain(ctx context.Context, start node.BlkAddr, epoch uint64, maxIterations uint64, visit chainVisitor) error {
	blkaddr := start
	ra := s.MaxRaBlocks // RECOVERY_MAX_RA_BLOCKS: the walk starts eager and backs off
	var iterations uint64

	for {
		if !s.Nodes.ValidPOR(ctx, blkaddr) {
			return nil
		}

		page, err := s.Nodes.ReadNode(ctx, blkaddr)
		if err != nil {
			return newErr(KindIOError, "scanner.read_node", err)
		}

		if page.Footer.CpVersion != epoch {
			return nil
		}

		if err := visit(ctx, blkaddr, page); err != nil {
			return err
		}

		iterations++
		next := page.Footer.NextBlkAddr
		if iterations >= maxIterations || blkaddr == next {
			return newErr(KindCorrupted, "scanner.loop_detected", nil)
		}

		ra = adjustReadaheadBlocks(blkaddr, next, ra, s.MinRaBlocks, s.MaxRaBlocks, s.BlocksPerSegment)
		s.Metrics.ReadaheadBlocks(ctx, int64(ra))
		raNext, raWindow := next, ra
		if s.RaPool != nil {
			s.RaPool.Submit(func() { s.Nodes.Readahead(ctx, raNext, raWindow) })
		} else {
			s.Nodes.Readahead(ctx, raNext, raWindow)
		}

		blkaddr = next
	}
}

// Scan builds the in-memory fsync set (spec.md §4.D steps 5-6). checkOnly
// suppresses the pre-install of not-yet-resident inodes (step 5's "If not
// in check_only mode").
func (s *Scanner) Scan(ctx context.Context, start node.BlkAddr, epoch uint64, maxIterations uint64, checkOnly bool) (*fsyncSet, error) {
	set := newFsyncSet()

	visit := func(ctx context.Context, blkaddr node.BlkAddr, page *NodePage) error {
		s.Metrics.NodesScanned(ctx, 1)

		if !page.Footer.FsyncMark {
			return nil
		}

		entry := set.Get(page.Footer.Ino)
		if entry == nil {
			quotaOwned := false
			if !checkOnly && page.Footer.IsInode && page.Footer.DentryMark {
				if err := s.Inodes.RecoverInodePage(ctx, page); err != nil {
					return err
				}
				quotaOwned = true
			}

			h, err := s.Inodes.IgetRetry(ctx, page.Footer.Ino, quotaOwned)
			if Is(err, KindNotFound) {
				// Scenario 3/7/8: an orphan dnode or a trailing inode
				// with no DF anchor. Skip silently, nothing to track.
				return nil
			}
			if err != nil {
				return err
			}

			entry = allocFsyncEntry()
			entry.Inode = h
			entry.QuotaOwned = quotaOwned
			set.Add(page.Footer.Ino, entry)
			s.Metrics.FsyncInodesFound(ctx, 1)
		}

		entry.FirstBlkAddr = blkaddr
		if page.Footer.IsInode && page.Footer.DentryMark {
			entry.LastDentryBlkAddr = blkaddr
			entry.HasLastDentry = true
		}
		return nil
	}

	if err := s.walkChain(ctx, start, epoch, maxIterations, visit); err != nil {
		return nil, err
	}
	return set, nil
}
