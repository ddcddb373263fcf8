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

	"github.com/mitchellh/mapstructure"
	"github.com/scalelfs/rollforward/cfg"
	"github.com/scalelfs/rollforward/common"
	"github.com/scalelfs/rollforward/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	RecoveryConfig cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "rollforward recover [device-image]",
	Short: "Replay fsync'd writes against a log-structured filesystem image after an unclean shutdown",
	Long: `rollforward performs the roll-forward recovery pass a log-structured
filesystem runs at mount time after power loss: it walks the checkpoint's
fsync chains and reapplies the inode, quota, data, and directory changes
they recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.ValidateConfig(&RecoveryConfig); err != nil {
			return err
		}

		if err := logger.InitLogFile(RecoveryConfig.Logging); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		metricHandle := common.NewNoopMetrics()
		if RecoveryConfig.Metrics.Enabled {
			otelHandle, err := common.NewOTelMetrics(RecoveryConfig.Metrics.PrometheusAddr)
			if err != nil {
				return fmt.Errorf("initializing metrics: %w", err)
			}
			metricHandle = otelHandle
		}

		return runRecover(cmd, args[0], metricHandle)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	RecoveryConfig = cfg.DefaultConfig()

	decodeOpt := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(cfg.DecodeHook()))
	tagOpt := func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }

	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&RecoveryConfig, decodeOpt, tagOpt)
		return
	}

	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&RecoveryConfig, decodeOpt, tagOpt)
}
