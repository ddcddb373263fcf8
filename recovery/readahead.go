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

import "github.com/scalelfs/rollforward/node"

// adjustReadaheadBlocks implements spec.md §4.D step 8 / §12
// adjust_por_ra_blocks: the chain walk's readahead window doubles while
// the chain is laid out sequentially, halves on a non-sequential step to
// a block that is not the first of its segment, and otherwise (a jump to
// a segment's first block) holds steady. minRa
// and maxRa come from cfg.RecoveryConfig (RECOVERY_MIN/MAX_RA_BLOCKS).
func adjustReadaheadBlocks(cur, next node.BlkAddr, curRa, minRa, maxRa int, blocksPerSegment int) int {
	if next == node.BlkAddr(uint32(cur)+1) {
		ra := curRa * 2
		if ra > maxRa {
			ra = maxRa
		}
		return ra
	}
	if !segmentAligned(next, blocksPerSegment) {
		ra := curRa / 2
		if ra < minRa {
			ra = minRa
		}
		return ra
	}
	return curRa
}

// segmentAligned reports whether blkaddr falls on a segment boundary,
// i.e. the first block of a segment.
func segmentAligned(blkaddr node.BlkAddr, blocksPerSegment int) bool {
	if blocksPerSegment <= 0 {
		return true
	}
	return uint32(blkaddr)%uint32(blocksPerSegment) == 0
}
