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

package common

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMetricHandle struct {
	mock.Mock
}

func (m *MockMetricHandle) NodesScanned(ctx context.Context, inc int64) { m.Called(ctx, inc) }
func (m *MockMetricHandle) FsyncInodesFound(ctx context.Context, inc int64) { m.Called(ctx, inc) }
func (m *MockMetricHandle) ReadaheadBlocks(ctx context.Context, window int64) { m.Called(ctx, window) }

func (m *MockMetricHandle) InodesRecovered(ctx context.Context, inc int64) { m.Called(ctx, inc) }
func (m *MockMetricHandle) BlocksReclaimed(ctx context.Context, inc int64) { m.Called(ctx, inc) }
func (m *MockMetricHandle) BlocksReplaced(ctx context.Context, inc int64)  { m.Called(ctx, inc) }
func (m *MockMetricHandle) DentriesRebound(ctx context.Context, inc int64) { m.Called(ctx, inc) }
func (m *MockMetricHandle) QuotaRepairs(ctx context.Context, inc int64)    { m.Called(ctx, inc) }

func (m *MockMetricHandle) PassCompleted(ctx context.Context, latency time.Duration, success bool) {
	m.Called(ctx, latency, success)
}
