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
	"testing"

	"github.com/scalelfs/rollforward/node"
	"github.com/stretchr/testify/assert"
)

func TestAdjustReadaheadBlocks_DoublesOnSequential(t *testing.T) {
	got := adjustReadaheadBlocks(10, 11, 4, 1, 128, 512)
	assert.Equal(t, 8, got)
}

func TestAdjustReadaheadBlocks_ClampsAtMax(t *testing.T) {
	got := adjustReadaheadBlocks(10, 11, 100, 1, 128, 512)
	assert.Equal(t, 128, got)
}

func TestAdjustReadaheadBlocks_HalvesOffSegmentBoundary(t *testing.T) {
	// next is neither sequential nor segment-aligned.
	got := adjustReadaheadBlocks(10, 777, 64, 1, 128, 512)
	assert.Equal(t, 32, got)
}

func TestAdjustReadaheadBlocks_ClampsAtMin(t *testing.T) {
	got := adjustReadaheadBlocks(10, 777, 1, 1, 128, 512)
	assert.Equal(t, 1, got)
}

func TestAdjustReadaheadBlocks_UnchangedOnSegmentAlignedJump(t *testing.T) {
	got := adjustReadaheadBlocks(10, 1024, 16, 1, 128, 512)
	assert.Equal(t, 16, got)
}

func TestSegmentAligned(t *testing.T) {
	assert.True(t, segmentAligned(node.BlkAddr(1024), 512))
	assert.False(t, segmentAligned(node.BlkAddr(1025), 512))
}
