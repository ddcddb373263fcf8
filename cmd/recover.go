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

package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/scalelfs/rollforward/common"
	"github.com/scalelfs/rollforward/internal/diskimage"
	"github.com/scalelfs/rollforward/internal/logger"
	"github.com/scalelfs/rollforward/internal/lrucache"
	"github.com/scalelfs/rollforward/internal/workerpool"
	"github.com/scalelfs/rollforward/node"
	"github.com/scalelfs/rollforward/recovery"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// passReport is the shape written to RecoveryConfig.Recovery.ReportPath, one
// per invocation, tagged with a fresh run ID for correlating it against the
// structured log lines emitted during the same pass.
type passReport struct {
	RunID     string `yaml:"run-id"`
	ImagePath string `yaml:"image-path"`
	Replayed  bool   `yaml:"replayed"`
	Error     string `yaml:"error,omitempty"`
}

func writeReport(path string, report passReport) error {
	if path == "" {
		return nil
	}
	out, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// Fixed geometry constants for the demo disk-image backend. A real mount
// reads these out of the superblock; spec.md keeps that layer out of
// scope, so the CLI driver pins plausible defaults instead.
const (
	segmentBlocks = 512
	addrsPerInode = 923
	addrsPerBlock = 1018

	// summaryCacheCapacity bounds the Reclaimer's segno/blkaddr-summary
	// lookup cache; each entry is weighted 1, so this is an entry count.
	summaryCacheCapacity = 4096

	raPriorityWorkers = 1
	raNormalWorkers   = 3
)

// runRecover loads a device image and runs the roll-forward recovery
// pass against it, the CLI's sole operation.
func runRecover(cmd *cobra.Command, imagePath string, metricHandle common.MetricHandle) error {
	ctx := cmd.Context()
	runID := uuid.NewString()
	logger.Infof("recovery pass %s starting against %s", runID, imagePath)

	recovery.CreateRecoveryCache()
	defer recovery.DestroyRecoveryCache()

	snap, err := diskimage.Load(imagePath)
	if err != nil {
		return err
	}

	img := diskimage.New(snap)

	if !recovery.SpaceForRollForward(img, img.PendingAllocCount(), uint64(RecoveryConfig.Recovery.MaxRfNodeBlocks)) {
		return fmt.Errorf("insufficient space for roll-forward recovery")
	}

	raPool, err := workerpool.NewStaticWorkerPool(raPriorityWorkers, raNormalWorkers)
	if err != nil {
		return fmt.Errorf("starting readahead worker pool: %w", err)
	}
	defer raPool.Stop()

	validInBitmap := func(segno, blkoff uint32) bool { return true }

	orch := &recovery.Orchestrator{
		Mount:      img,
		Lock:       img,
		Quota:      img,
		CkptWriter: img,
		Allocator:  img,
		Index:      img,
		Xattr:      img,
		Scanner: &recovery.Scanner{
			Nodes:            img,
			Inodes:           img,
			Metrics:          metricHandle,
			RaPool:           raPool,
			MinRaBlocks:      RecoveryConfig.Recovery.MinRaBlocks,
			MaxRaBlocks:      RecoveryConfig.Recovery.MaxRaBlocks,
			MaxRfNodeBlocks:  uint64(RecoveryConfig.Recovery.MaxRfNodeBlocks),
			BlocksPerSegment: 512,
		},
		Dentry: &recovery.DentryReplayer{
			Dirs:    img,
			Inodes:  img,
			Codec:   img,
			Metrics: metricHandle,
		},
		Data: &recovery.DataReplayer{
			Reclaimer: &recovery.Reclaimer{
				Nodes:     img,
				Inodes:    img,
				Allocator: img,
				Metrics:   metricHandle,
				SegmentOf: func(b node.BlkAddr) (uint32, uint32) {
					return uint32(b) / segmentBlocks, uint32(b) % segmentBlocks
				},
				ValidInBitmap: validInBitmap,
				AddrsPerInode: addrsPerInode,
				AddrsPerBlock: addrsPerBlock,
				Summaries:     lrucache.New(summaryCacheCapacity),
			},
			Nodes:     img,
			Allocator: img,
			Metrics:   metricHandle,
			AddrsPerInode: addrsPerInode,
			AddrsPerBlock: addrsPerBlock,
			AddrSane: func(addr node.BlkAddr) bool {
				segno := uint32(addr) / segmentBlocks
				blkoff := uint32(addr) % segmentBlocks
				return validInBitmap(segno, blkoff)
			},
		},
		Metrics:     metricHandle,
		EnableQuota: RecoveryConfig.Recovery.EnableQuota,
	}

	found, err := orch.RecoverFsyncData(ctx, false)
	report := passReport{RunID: runID, ImagePath: imagePath, Replayed: found}
	if err != nil {
		report.Error = err.Error()
		if repErr := writeReport(string(RecoveryConfig.Recovery.ReportPath), report); repErr != nil {
			logger.Errorf("writing recovery report: %v", repErr)
		}
		return fmt.Errorf("recovery pass failed: %w", err)
	}

	if found {
		logger.Infof("recovery pass %s replayed fsync data from %s", runID, imagePath)
	} else {
		logger.Infof("recovery pass %s found nothing to replay in %s", runID, imagePath)
	}
	if err := writeReport(string(RecoveryConfig.Recovery.ReportPath), report); err != nil {
		return fmt.Errorf("writing recovery report: %w", err)
	}
	return nil
}
