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
	"github.com/scalelfs/rollforward/node"
)

// ReplayInode applies a raw inode block's attributes to a live inode
// handle previously obtained via IgetRetry (spec.md §4.B, component B).
// Any error aborts before later steps; steps already applied to h are not
// rolled back (the handle is discarded by the caller on error, matching
// the apply loop's "earlier successful slots are not rolled back" policy
// for the enclosing node).
func ReplayInode(ctx context.Context, quota QuotaService, metrics common.ReplayMetricHandle, h *node.Handle, raw *node.RawInode, enableQuota bool) error {
	h.Attrs.Mode = raw.Mode // step 1

	if enableQuota { // step 2
		if err := ReplayQuota(ctx, quota, h, raw); err != nil {
			return err
		}
	}

	h.Attrs.UID = raw.UID // step 3
	h.Attrs.GID = raw.GID // step 3

	if raw.ExtraAttr && enableQuota { // step 4
		if err := ReplayProjectQuota(ctx, quota, h, raw); err != nil {
			return err
		}
	}

	h.Attrs.Size = raw.Size // step 5, regardless of KeepISize

	h.Attrs.Atime = time.Unix(raw.Atime, int64(raw.AtimeNsec)) // step 6
	h.Attrs.Ctime = time.Unix(raw.Ctime, int64(raw.CtimeNsec))
	h.Attrs.Mtime = time.Unix(raw.Mtime, int64(raw.MtimeNsec))

	h.Attrs.Advise = raw.Advise // step 7
	h.Attrs.Flags = raw.Flags
	h.Attrs.GCFailures = raw.GCFailures

	h.Attrs.PinFile = raw.PinFile     // step 8, inline flag projection (P7)
	h.Attrs.DataExist = raw.DataExist

	h.MarkDirty() // step 9

	metrics.InodesRecovered(ctx, 1)
	return nil
}
