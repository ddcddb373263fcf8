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
	"errors"
	"testing"

	"github.com/scalelfs/rollforward/common"
	"github.com/stretchr/testify/assert"
)

func TestJoinShutdownFunc_JoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	fn := common.JoinShutdownFunc(
		func(context.Context) error { return errA },
		nil,
		func(context.Context) error { return errB },
	)

	err := fn(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestJoinShutdownFunc_NoErrors(t *testing.T) {
	fn := common.JoinShutdownFunc(
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
	)

	assert.NoError(t, fn(context.Background()))
}

func TestMetricAttr_String(t *testing.T) {
	a := common.MetricAttr{Key: "ino", Value: "42"}
	assert.Equal(t, "Key: ino, Value: 42", a.String())
}
