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

// ReplayQuota transfers ownership quotas on a uid/gid change (spec.md
// §4.C, component C). Only the valid bits that actually differ are
// carried into the transfer; a failure tags the superblock's
// quota-needs-repair flag before propagating.
func ReplayQuota(ctx context.Context, quota QuotaService, h *node.Handle, raw *node.RawInode) error {
	if h.Attrs.UID == raw.UID && h.Attrs.GID == raw.GID {
		return nil
	}
	if err := quota.TransferQuota(ctx, h.Ino(), h.Attrs.UID, raw.UID, h.Attrs.GID, raw.GID); err != nil {
		quota.NeedsRepair(ctx)
		return newErr(KindQuotaError, "quota.replay", err)
	}
	return nil
}

// ReplayProjectQuota transfers project quota on a projid change, the
// EXTRA_ATTR branch of the Inode Replayer (spec.md §4.B step 4).
func ReplayProjectQuota(ctx context.Context, quota QuotaService, h *node.Handle, raw *node.RawInode) error {
	if !raw.ExtraAttr || !raw.HasProjID || h.Attrs.ProjID == raw.ProjID {
		return nil
	}
	if err := quota.TransferProjectQuota(ctx, h.Ino(), h.Attrs.ProjID, raw.ProjID); err != nil {
		quota.NeedsRepair(ctx)
		return newErr(KindQuotaError, "quota.replay_project", err)
	}
	h.Attrs.ProjID = raw.ProjID
	return nil
}
