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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (retain all backups) or positive")
	}
	return nil
}

func isValidRecoveryConfig(config *RecoveryConfig) error {
	if config.MinRaBlocks <= 0 {
		return fmt.Errorf("min-ra-blocks must be positive")
	}
	if config.MaxRaBlocks < config.MinRaBlocks {
		return fmt.Errorf("max-ra-blocks (%d) must be >= min-ra-blocks (%d)", config.MaxRaBlocks, config.MinRaBlocks)
	}
	if config.MaxRfNodeBlocks <= 0 {
		return fmt.Errorf("max-rf-node-blocks must be positive")
	}
	if config.FaultInjectionRate < 0 || config.FaultInjectionRate > 1 {
		return fmt.Errorf("fault-injection-rate must be within [0, 1]")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err := isValidRecoveryConfig(&config.Recovery); err != nil {
		return fmt.Errorf("error parsing recovery config: %w", err)
	}

	return nil
}
