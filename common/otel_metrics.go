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
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scalelfs/rollforward/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	// OutcomeKey annotates a recovery pass as succeeded or aborted.
	OutcomeKey = "outcome"
)

var (
	scanMeter    = otel.Meter("recovery/scan")
	replayMeter  = otel.Meter("recovery/replay")
	passMeter    = otel.Meter("recovery/pass")

	outcomeAttributeSet sync.Map
)

func getOutcomeAttributeSet(success bool) metric.MeasurementOption {
	key := "aborted"
	if success {
		key = "succeeded"
	}
	if v, ok := outcomeAttributeSet.Load(key); ok {
		return v.(metric.MeasurementOption)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(attribute.String(OutcomeKey, key)))
	v, _ := outcomeAttributeSet.LoadOrStore(key, opt)
	return v.(metric.MeasurementOption)
}

// otelMetrics maintains every metric computed by a recovery pass.
type otelMetrics struct {
	nodesScanned     metric.Int64Counter
	fsyncInodesFound metric.Int64Counter
	readaheadBlocks  metric.Int64Histogram

	inodesRecovered metric.Int64Counter
	blocksReclaimed metric.Int64Counter
	blocksReplaced  metric.Int64Counter
	dentriesRebound metric.Int64Counter
	quotaRepairs    metric.Int64Counter

	passLatency metric.Float64Histogram
}

func (o *otelMetrics) NodesScanned(ctx context.Context, inc int64)     { o.nodesScanned.Add(ctx, inc) }
func (o *otelMetrics) FsyncInodesFound(ctx context.Context, inc int64) { o.fsyncInodesFound.Add(ctx, inc) }
func (o *otelMetrics) ReadaheadBlocks(ctx context.Context, window int64) {
	o.readaheadBlocks.Record(ctx, window)
}

func (o *otelMetrics) InodesRecovered(ctx context.Context, inc int64) { o.inodesRecovered.Add(ctx, inc) }
func (o *otelMetrics) BlocksReclaimed(ctx context.Context, inc int64) { o.blocksReclaimed.Add(ctx, inc) }
func (o *otelMetrics) BlocksReplaced(ctx context.Context, inc int64)  { o.blocksReplaced.Add(ctx, inc) }
func (o *otelMetrics) DentriesRebound(ctx context.Context, inc int64) { o.dentriesRebound.Add(ctx, inc) }
func (o *otelMetrics) QuotaRepairs(ctx context.Context, inc int64)    { o.quotaRepairs.Add(ctx, inc) }

func (o *otelMetrics) PassCompleted(ctx context.Context, latency time.Duration, success bool) {
	o.passLatency.Record(ctx, float64(latency.Milliseconds()), getOutcomeAttributeSet(success))
}

// setupMeterProvider registers a Prometheus-backed SDK MeterProvider as the
// global otel MeterProvider and, when addr is non-empty, serves /metrics on
// it for scraping. Called once from NewOTelMetrics; the returned error wraps
// an exporter construction failure, while a failure to serve /metrics is
// logged rather than returned.
func setupMeterProvider(addr string) error {
	exporter, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// The recovery pass itself does not depend on the scrape
			// endpoint; a bind failure here should not abort recovery.
			logger.Errorf("metrics server on %s: %v", addr, err)
		}
	}()
	return nil
}

// NewOTelMetrics wires an otel-backed MetricHandle, joining setup errors the
// way the teacher's NewOTelMetrics does. prometheusAddr, when non-empty,
// serves a Prometheus scrape endpoint for the recorded metrics; an empty
// address still registers the SDK MeterProvider so readers (e.g. tests) can
// observe recorded values, just without an HTTP listener.
func NewOTelMetrics(prometheusAddr string) (MetricHandle, error) {
	if err := setupMeterProvider(prometheusAddr); err != nil {
		return nil, err
	}

	nodesScanned, err1 := scanMeter.Int64Counter("recovery/nodes_scanned", metric.WithDescription("Node blocks visited by the fsync-chain scanner."))
	fsyncInodesFound, err2 := scanMeter.Int64Counter("recovery/fsync_inodes_found", metric.WithDescription("Distinct inodes added to the fsync set."))
	readaheadBlocks, err3 := scanMeter.Int64Histogram("recovery/readahead_window", metric.WithDescription("Adaptive readahead window size, in blocks."))

	inodesRecovered, err4 := replayMeter.Int64Counter("recovery/inodes_recovered", metric.WithDescription("Inodes whose attributes were replayed."))
	blocksReclaimed, err5 := replayMeter.Int64Counter("recovery/blocks_reclaimed", metric.WithDescription("Data blocks reclaimed from a previous owner's index."))
	blocksReplaced, err6 := replayMeter.Int64Counter("recovery/blocks_replaced", metric.WithDescription("Data block slots replaced by the data index replayer."))
	dentriesRebound, err7 := replayMeter.Int64Counter("recovery/dentries_rebound", metric.WithDescription("Directory entries added, removed, or relinked."))
	quotaRepairs, err8 := replayMeter.Int64Counter("recovery/quota_repairs", metric.WithDescription("Quota usage transfers applied by the quota replayer."))

	passLatency, err9 := passMeter.Float64Histogram("recovery/pass_latency", metric.WithDescription("Wall-clock duration of a whole recovery pass."), metric.WithUnit("ms"), defaultLatencyDistribution)

	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7, err8, err9); err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodesScanned:     nodesScanned,
		fsyncInodesFound: fsyncInodesFound,
		readaheadBlocks:  readaheadBlocks,
		inodesRecovered:  inodesRecovered,
		blocksReclaimed:  blocksReclaimed,
		blocksReplaced:   blocksReplaced,
		dentriesRebound:  dentriesRebound,
		quotaRepairs:     quotaRepairs,
		passLatency:      passLatency,
	}, nil
}
