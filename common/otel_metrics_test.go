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

package common_test

import (
	"context"
	"testing"
	"time"

	"github.com/scalelfs/rollforward/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOTelMetrics_RecordsWithoutError(t *testing.T) {
	handle, err := common.NewOTelMetrics("")
	require.NoError(t, err)
	require.NotNil(t, handle)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		handle.NodesScanned(ctx, 3)
		handle.FsyncInodesFound(ctx, 1)
		handle.ReadaheadBlocks(ctx, 8)
		handle.InodesRecovered(ctx, 1)
		handle.BlocksReclaimed(ctx, 2)
		handle.BlocksReplaced(ctx, 2)
		handle.DentriesRebound(ctx, 1)
		handle.QuotaRepairs(ctx, 1)
		handle.PassCompleted(ctx, 5*time.Millisecond, true)
		handle.PassCompleted(ctx, 50*time.Millisecond, false)
	})
}

func TestNewOTelMetrics_ServesPrometheusEndpoint(t *testing.T) {
	handle, err := common.NewOTelMetrics("127.0.0.1:0")
	require.NoError(t, err)
	require.NotNil(t, handle)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		handle.NodesScanned(ctx, 1)
		handle.PassCompleted(ctx, time.Millisecond, true)
	})
}

func TestNoopMetrics_DoesNotPanic(t *testing.T) {
	handle := common.NewNoopMetrics()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		handle.NodesScanned(ctx, 1)
		handle.PassCompleted(ctx, time.Millisecond, true)
	})
}

func TestMockMetricHandle_RecordsCalls(t *testing.T) {
	m := new(common.MockMetricHandle)
	m.On("NodesScanned", context.Background(), int64(4)).Return()

	m.NodesScanned(context.Background(), 4)

	m.AssertExpectations(t)
}
