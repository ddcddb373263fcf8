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

package cfg_test

import (
	"testing"

	"github.com/scalelfs/rollforward/cfg"
	"github.com/stretchr/testify/assert"
)

func TestValidateConfig_DefaultIsValid(t *testing.T) {
	c := cfg.DefaultConfig()
	assert.NoError(t, cfg.ValidateConfig(&c))
}

func TestValidateConfig_BadLogRotate(t *testing.T) {
	c := cfg.DefaultConfig()
	c.Logging.LogRotate.MaxFileSizeMb = 0
	assert.Error(t, cfg.ValidateConfig(&c))
}

func TestValidateConfig_BadRaBlocks(t *testing.T) {
	c := cfg.DefaultConfig()
	c.Recovery.MinRaBlocks = 10
	c.Recovery.MaxRaBlocks = 5
	assert.Error(t, cfg.ValidateConfig(&c))
}

func TestValidateConfig_BadFaultInjectionRate(t *testing.T) {
	c := cfg.DefaultConfig()
	c.Recovery.FaultInjectionRate = 2
	assert.Error(t, cfg.ValidateConfig(&c))
}
