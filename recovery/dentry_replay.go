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
	"github.com/scalelfs/rollforward/internal/logger"
	"github.com/scalelfs/rollforward/node"
)

// DentryReplayer recreates or rebinds a directory entry pointing to a
// replayed inode (spec.md §4.G, component G, P5).
type DentryReplayer struct {
	Dirs    DirLayer
	Inodes  InodeStore
	Codec   FilenameCodec
	Metrics common.ReplayMetricHandle

	memRetryWait func(ctx context.Context) error
}

// Replay implements spec.md §4.G steps 1-4 for the replayed inode h,
// whose raw inode block carries pino and the name bytes. set is the
// directory list (dir_list); if the parent is absent it is added as a
// non-quota entry (step 1).
func (d *DentryReplayer) Replay(ctx context.Context, set *dirSet, h *node.Handle, raw *node.RawInode) error {
	pino := raw.Pino

	if set.Get(pino) == nil {
		parent, err := d.Inodes.IgetRetry(ctx, pino, false)
		if err != nil {
			logger.Recovery("directory_replayer", h.Ino(), "<unresolved>", 0, err.Error())
			return err
		}
		entry := allocFsyncEntry()
		entry.Inode = parent
		set.Add(pino, entry)
	}

	fname, err := ReconstructFilename(d.Codec, pino, raw)
	if err != nil {
		logger.Recovery(common.ComponentDentry, h.Ino(), "<error>", 0, err.Error())
		return err
	}

	err = d.bindEntry(ctx, pino, fname, h.Ino())
	logger.Recovery(common.ComponentDentry, h.Ino(), fname.String(), pino, errString(err))
	if err == nil {
		d.Metrics.DentriesRebound(ctx, 1)
	}
	return err
}

func (d *DentryReplayer) bindEntry(ctx context.Context, dirIno uint32, fname FileName, targetIno uint32) error {
	for {
		existing, found, err := d.Dirs.FindEntry(ctx, dirIno, fname)
		if err != nil {
			return newErr(KindIOError, "dentry_replay.find_entry", err)
		}

		if found && existing == targetIno {
			return nil
		}

		if found {
			displaced, err := d.Inodes.IgetRetry(ctx, existing, false)
			if err != nil {
				return err
			}
			if err := d.Dirs.DeleteEntry(ctx, dirIno, fname); err != nil {
				return newErr(KindIOError, "dentry_replay.delete_entry", err)
			}
			if destroyed := displaced.Put(); destroyed {
				if err := d.Dirs.Orphan(ctx, existing); err != nil {
					return err
				}
			}
			continue // retry from FindEntry per step 3
		}

		if err := d.Dirs.AddDentry(ctx, dirIno, fname, targetIno); err != nil {
			if !Is(err, KindOutOfMemory) {
				return err
			}
			if waitErr := d.wait(ctx); waitErr != nil {
				return waitErr
			}
			continue // retry on -ENOMEM
		}
		return nil
	}
}

func (d *DentryReplayer) wait(ctx context.Context) error {
	if d.memRetryWait != nil {
		return d.memRetryWait(ctx)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
