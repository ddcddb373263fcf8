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
	"time"

	"github.com/scalelfs/rollforward/common"
	"github.com/scalelfs/rollforward/internal/logger"
	"github.com/scalelfs/rollforward/node"
)

// Orchestrator is the two-pass recovery driver, component H
// (recover_fsync_data).
type Orchestrator struct {
	Mount      MountState
	Lock       CheckpointLock
	Quota      QuotaService
	CkptWriter CheckpointWriter
	Allocator  Allocator
	Index      IndexStore
	Xattr      XattrHandler

	Scanner  *Scanner
	Dentry   *DentryReplayer
	Data     *DataReplayer
	Metrics  common.MetricHandle

	EnableQuota bool
}

// SpaceForRollForward implements spec.md §6, space_for_roll_forward: the
// capacity guard the caller checks before invoking RecoverFsyncData.
func SpaceForRollForward(m MountState, pendingAlloc uint64, maxRfNodeBlocks uint64) bool {
	if m.LastValidBlockCount()+pendingAlloc > m.UserBlockCount() {
		return false
	}
	if m.RfNodeBlockCount() >= maxRfNodeBlocks {
		return false
	}
	return true
}

// RecoverFsyncData implements spec.md §4.H, the full sixteen-step pass.
// checkOnly mirrors the kernel's check_only argument: true asks only
// "does fsync data exist", without mutating anything. found is valid only
// when checkOnly is true (spec.md §6: "1 only when check_only=true and
// fsync data exists").
func (o *Orchestrator) RecoverFsyncData(ctx context.Context, checkOnly bool) (found bool, err error) {
	start := time.Now()

	wasRO := o.Mount.ReadOnly() // step 1
	if wasRO {
		o.Mount.SetReadOnly(false)
	}

	quotaTurnedOn := false
	if o.EnableQuota { // step 2
		if err := o.Quota.Enable(ctx); err != nil {
			o.Mount.SetReadOnly(wasRO)
			return false, err
		}
		quotaTurnedOn = true
	}

	inodeList := newFsyncSet()
	tmpInodeList := newFsyncSet()
	dirList := newDirSet() // step 3

	if err := o.Lock.Lock(ctx); err != nil { // step 4
		o.teardownQuota(ctx, quotaTurnedOn)
		o.Mount.SetReadOnly(wasRO)
		return false, err
	}

	passErr := o.runLocked(ctx, checkOnly, inodeList, tmpInodeList, dirList)

	o.Lock.Unlock() // step 13

	o.teardownQuota(ctx, quotaTurnedOn) // step 15
	o.Mount.SetReadOnly(wasRO)

	o.Metrics.PassCompleted(ctx, time.Since(start), passErr == nil)

	if checkOnly {
		return inodeList.Len() > 0 || tmpInodeList.Len() > 0, passErr
	}
	return false, passErr
}

func (o *Orchestrator) teardownQuota(ctx context.Context, turnedOn bool) {
	if !turnedOn {
		return
	}
	if err := o.Quota.Disable(ctx); err != nil {
		logger.Recovery(common.ComponentPass, 0, "<quota-teardown>", 0, err.Error())
	}
}

func (o *Orchestrator) runLocked(ctx context.Context, checkOnly bool, inodeList, tmpInodeList *fsyncSet, dirList *dirSet) error {
	epoch := o.Mount.CheckpointEpoch()
	start := o.Mount.NextFreeBlkAddr()
	maxIter := o.Mount.FreeBlocksInMainArea()

	scanned, err := o.Scanner.Scan(ctx, start, epoch, maxIter, checkOnly) // step 5
	if err != nil {
		o.teardown(ctx, inodeList, tmpInodeList, dirList, true)
		return err
	}
	scanned.Each(func(ino uint32, e *FsyncEntry) { inodeList.Add(ino, e) })

	if inodeList.Len() == 0 || checkOnly { // step 6
		o.teardown(ctx, inodeList, tmpInodeList, dirList, false)
		return nil
	}

	anyReplayed := false
	applyErr := o.apply(ctx, start, epoch, maxIter, inodeList, tmpInodeList, dirList, &anyReplayed) // step 7

	if applyErr == nil {
		if err := o.Allocator.AllocateNewSegments(ctx); err != nil { // step 8
			applyErr = err
		}
	}

	o.teardown(ctx, inodeList, tmpInodeList, dirList, applyErr != nil) // step 9, 13

	if err := o.Mount.TruncateMetaAbove(ctx, mainAreaStart); err != nil { // step 10
		if applyErr == nil {
			applyErr = err
		}
	}
	if applyErr != nil {
		if err := o.Mount.TruncateNodeAndMetaFully(ctx); err != nil {
			logger.Recovery(common.ComponentPass, 0, "<truncate>", 0, err.Error())
		}
	}

	if applyErr == nil && o.Mount.ZonedDevice() { // step 11
		if err := o.Mount.FixCurSegWritePointer(ctx); err != nil {
			applyErr = err
		}
	}

	if applyErr == nil {
		o.Mount.SetPorDoing(false) // step 12
	}

	if anyReplayed { // step 14
		o.Mount.SetRecovered(true)
		if applyErr == nil {
			if err := o.CkptWriter.WriteCheckpoint(ctx, "RECOVERY"); err != nil {
				applyErr = err
			}
		}
	}

	return applyErr
}

// mainAreaStart is the block address boundary above which the meta page
// cache is truncated on pass completion (spec.md §4.H step 10,
// MAIN_BLKADDR). Recovery never writes below it, so zero is sufficient for
// a recovery-pass-scoped truncate call; the real boundary lives in the
// superblock the out-of-scope mount layer owns.
const mainAreaStart = node.BlkAddr(0)

func (o *Orchestrator) apply(ctx context.Context, start node.BlkAddr, epoch uint64, maxIter uint64, inodeList, tmpInodeList *fsyncSet, dirList *dirSet, anyReplayed *bool) error {
	visit := func(ctx context.Context, blkaddr node.BlkAddr, page *NodePage) error {
		entry := inodeList.Get(page.Footer.Ino)
		if entry == nil {
			return nil // not part of this pass's fsync set
		}

		h := entry.Inode

		if page.Footer.IsInode {
			if err := ReplayInode(ctx, o.Quota, o.Metrics, h, page.Inode, o.EnableQuota); err != nil {
				return err
			}
		}

		if entry.HasLastDentry && entry.LastDentryBlkAddr == blkaddr {
			if err := o.Dentry.Replay(ctx, dirList, h, page.Inode); err != nil {
				return err
			}
		}

		if err := o.replayData(ctx, h, page); err != nil {
			return err
		}
		*anyReplayed = true

		if entry.FirstBlkAddr == blkaddr {
			inodeList.MoveTo(page.Footer.Ino, tmpInodeList)
		}
		return nil
	}

	return o.Scanner.walkChain(ctx, start, epoch, maxIter, visit)
}

func (o *Orchestrator) replayData(ctx context.Context, h *node.Handle, page *NodePage) error {
	var raw *node.RawInode
	if page.Footer.IsInode {
		raw = page.Inode
	} else {
		raw = &node.RawInode{DataBlkAddr: page.DataBlkAddr}
	}

	needIndex, err := ReplayXattrAndInline(ctx, o.Xattr, o.Metrics, page, raw)
	if err != nil {
		return err
	}
	if !needIndex {
		return nil
	}

	alloc := true
	cur, err := o.Index.GetDnode(ctx, h, page.Footer.Nid, page.Footer.OfsInNodeTree, alloc)
	if err != nil {
		return err
	}
	defer o.Index.ReleaseDnode(cur)

	o.Index.WaitOnPageWriteback(ctx, cur)

	// cur.NodePage is the live, currently-installed node GetDnode opened;
	// raw/page.Footer are the fsync-chain-recorded values being replayed
	// onto it. Replay diffs the two, it must not be handed the same page.
	return o.Data.Replay(ctx, cur, raw, page.Footer)
}

func (o *Orchestrator) teardown(ctx context.Context, inodeList, tmpInodeList *fsyncSet, dirList *dirSet, drop bool) {
	// The quota allocation a pre-installed entry owns (QuotaOwned) is
	// released along with its handle below; no separate call is needed
	// once the reference count reaches zero.
	releaseList := func(set entryIterator) {
		set.Each(func(_ uint32, e *FsyncEntry) {
			if drop {
				e.Inode.Dirty = false // "not to be written back"
			}
			o.Inodes().Release(e.Inode)
			freeFsyncEntry(e)
		})
	}
	releaseList(inodeList)
	releaseList(tmpInodeList)
	releaseList(dirList)
}

// Inodes exposes the InodeStore collaborator used to release entry
// references on teardown. The orchestrator holds it indirectly through
// the scanner so there is a single source of truth for the collaborator
// wiring.
func (o *Orchestrator) Inodes() InodeStore { return o.Scanner.Inodes }
