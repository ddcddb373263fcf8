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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for a recovery pass, decoded from a
// YAML config file merged with flag and default values via viper.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`

	Recovery RecoveryConfig `yaml:"recovery"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the internal/logger package.
type LoggingConfig struct {
	Severity  LogSeverity             `yaml:"severity"`
	Format    string                  `yaml:"format"`
	FilePath  ResolvedPath            `yaml:"file-path"`
	LogRotate LogRotateLoggingConfig  `yaml:"log-rotate"`
}

// LogRotateLoggingConfig mirrors gopkg.in/natefinch/lumberjack.v2's rotation
// knobs one-to-one.
type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// RecoveryConfig carries the knobs spec.md names directly: readahead
// clamps, the node-block scan budget, and the optional subsystems (quota,
// casefold/unicode-normalized names, zoned-device write pointers) that the
// pass either exercises or explicitly skips.
type RecoveryConfig struct {
	// MinRaBlocks / MaxRaBlocks clamp the adaptive readahead window computed
	// by the fsync-chain scanner (spec.md §4.D, "adjust_por_ra_blocks").
	MinRaBlocks int `yaml:"min-ra-blocks"`
	MaxRaBlocks int `yaml:"max-ra-blocks"`

	// MaxRfNodeBlocks is the soft cap on the recoverable chain checked by
	// the capacity guard (recovery.SpaceForRollForward): the pass is refused
	// up front once the mount's roll-forward node block count reaches it.
	// The chain walk's own iteration limit is the main area's free block
	// count, not this value.
	MaxRfNodeBlocks int `yaml:"max-rf-node-blocks"`

	// EnableQuota turns on the Quota Replayer (component C). When false,
	// quota deltas recorded in fsync chains are skipped, matching a
	// filesystem mounted without quota accounting.
	EnableQuota bool `yaml:"enable-quota"`

	// EnableUnicodeNormalization is accepted and bound to a flag, but the
	// recovery pass does not read it: the Filename Reconstructor (component
	// A) takes casefolding from the directory codec, not from this setting.
	EnableUnicodeNormalization bool `yaml:"enable-unicode-normalization"`

	// FaultInjectionRate must lie in [0,1] (ValidateConfig rejects other
	// values). Nothing else reads it; no collaborator injects faults from it.
	FaultInjectionRate float64 `yaml:"fault-injection-rate"`

	// ZonedDevice is accepted and bound to a flag, but the recovery pass
	// does not read it: the write-pointer fix-up (orchestrator step 11)
	// follows MountState.ZonedDevice, which the image reports itself.
	ZonedDevice bool `yaml:"zoned-device"`

	// ReportPath, when set, receives a YAML summary of the pass (run ID,
	// counts, and outcome) once recovery completes.
	ReportPath ResolvedPath `yaml:"report-path"`
}

// MetricsConfig controls whether the recovery pass exports OpenTelemetry
// metrics and where.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	PrometheusAddr string `yaml:"prometheus-addr"`
}

// BindFlags registers the CLI flags below and binds them into viper under
// the same keys used for YAML config-file decoding. Fields without a flag
// (fault-injection-rate and the log-rotate settings) are set only from the
// config file.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("log-severity", "", string(DefaultLoggingConfig().Severity), "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", DefaultLoggingConfig().Format, "Log rendering: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the rotated recovery log file. Empty logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("min-ra-blocks", "", DefaultRecoveryConfig().MinRaBlocks, "Minimum adaptive readahead window, in blocks.")
	if err = viper.BindPFlag("recovery.min-ra-blocks", flagSet.Lookup("min-ra-blocks")); err != nil {
		return err
	}

	flagSet.IntP("max-ra-blocks", "", DefaultRecoveryConfig().MaxRaBlocks, "Maximum adaptive readahead window, in blocks.")
	if err = viper.BindPFlag("recovery.max-ra-blocks", flagSet.Lookup("max-ra-blocks")); err != nil {
		return err
	}

	flagSet.IntP("max-rf-node-blocks", "", DefaultRecoveryConfig().MaxRfNodeBlocks, "Refuse the pass once this many roll-forward node blocks are recorded.")
	if err = viper.BindPFlag("recovery.max-rf-node-blocks", flagSet.Lookup("max-rf-node-blocks")); err != nil {
		return err
	}

	flagSet.BoolP("enable-quota", "", DefaultRecoveryConfig().EnableQuota, "Replay quota deltas recorded in fsync chains.")
	if err = viper.BindPFlag("recovery.enable-quota", flagSet.Lookup("enable-quota")); err != nil {
		return err
	}

	flagSet.BoolP("enable-unicode-normalization", "", DefaultRecoveryConfig().EnableUnicodeNormalization, "Accepted for configuration compatibility; not read by the recovery pass.")
	if err = viper.BindPFlag("recovery.enable-unicode-normalization", flagSet.Lookup("enable-unicode-normalization")); err != nil {
		return err
	}

	flagSet.BoolP("zoned-device", "", DefaultRecoveryConfig().ZonedDevice, "Backing store is a zoned block device.")
	if err = viper.BindPFlag("recovery.zoned-device", flagSet.Lookup("zoned-device")); err != nil {
		return err
	}

	flagSet.StringP("report-path", "", "", "Write a YAML summary of the pass to this path.")
	if err = viper.BindPFlag("recovery.report-path", flagSet.Lookup("report-path")); err != nil {
		return err
	}

	flagSet.BoolP("metrics-enabled", "", DefaultMetricsConfig().Enabled, "Export OpenTelemetry metrics for the recovery pass.")
	if err = viper.BindPFlag("metrics.enabled", flagSet.Lookup("metrics-enabled")); err != nil {
		return err
	}

	flagSet.StringP("metrics-prometheus-addr", "", DefaultMetricsConfig().PrometheusAddr, "Address to serve /metrics on, when metrics are enabled.")
	if err = viper.BindPFlag("metrics.prometheus-addr", flagSet.Lookup("metrics-prometheus-addr")); err != nil {
		return err
	}

	return nil
}
