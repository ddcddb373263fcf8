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
)

func NewNoopMetrics() MetricHandle {
	var n noopMetrics
	return &n
}

type noopMetrics struct{}

func (*noopMetrics) NodesScanned(_ context.Context, _ int64)      {}
func (*noopMetrics) FsyncInodesFound(_ context.Context, _ int64) {}
func (*noopMetrics) ReadaheadBlocks(_ context.Context, _ int64)  {}

func (*noopMetrics) InodesRecovered(_ context.Context, _ int64) {}
func (*noopMetrics) BlocksReclaimed(_ context.Context, _ int64) {}
func (*noopMetrics) BlocksReplaced(_ context.Context, _ int64)  {}
func (*noopMetrics) DentriesRebound(_ context.Context, _ int64) {}
func (*noopMetrics) QuotaRepairs(_ context.Context, _ int64)    {}

func (*noopMetrics) PassCompleted(_ context.Context, _ time.Duration, _ bool) {}
