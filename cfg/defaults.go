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

// DefaultLoggingConfig returns the configuration used before a config file
// or flags have been parsed.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: INFO,
		Format:   "json",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// DefaultRecoveryConfig returns the recovery knobs' defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MinRaBlocks:                DefaultMinRaBlocks,
		MaxRaBlocks:                DefaultMaxRaBlocks,
		MaxRfNodeBlocks:            DefaultMaxRfNodeBlocks,
		EnableQuota:                true,
		EnableUnicodeNormalization: true,
		FaultInjectionRate:         0,
		ZonedDevice:                false,
	}
}

// DefaultMetricsConfig returns the metrics knobs' defaults: off by default,
// since a recovery pass is usually a short-lived CLI invocation rather than
// a long-running service worth scraping.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:        false,
		PrometheusAddr: ":9090",
	}
}

// DefaultConfig returns a fully populated Config using the defaults above.
func DefaultConfig() Config {
	return Config{
		Logging:  DefaultLoggingConfig(),
		Recovery: DefaultRecoveryConfig(),
		Metrics:  DefaultMetricsConfig(),
	}
}
