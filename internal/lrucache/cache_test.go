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

package lrucache_test

import (
	"testing"

	"github.com/scalelfs/rollforward/internal/lrucache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const capacity = 50

type testData struct {
	value int64
	size  uint64
}

func (td testData) Size() uint64 { return td.size }

func newInvariantsCache() lrucache.Cache {
	return lrucache.New(capacity)
}

func TestLookUpInEmptyCache(t *testing.T) {
	c := newInvariantsCache()
	assert.Nil(t, c.LookUp(""))
	assert.Nil(t, c.LookUp("taco"))
	c.CheckInvariants()
}

func TestInsertNilValuePanics(t *testing.T) {
	c := newInvariantsCache()
	assert.Panics(t, func() { c.Insert("taco", nil) })
}

func TestLookUpUnknownKey(t *testing.T) {
	c := newInvariantsCache()
	c.Insert("burrito", testData{value: 23, size: 4})
	c.Insert("taco", testData{value: 23, size: 8})

	assert.Nil(t, c.LookUp(""))
	assert.Nil(t, c.LookUp("enchilada"))
	c.CheckInvariants()
}

func TestFillUpToCapacity(t *testing.T) {
	c := newInvariantsCache()
	c.Insert("burrito", testData{value: 23, size: 4})
	c.Insert("taco", testData{value: 26, size: 20})
	c.Insert("enchilada", testData{value: 28, size: 26})

	require.Equal(t, int64(23), c.LookUp("burrito").(testData).value)
	require.Equal(t, int64(26), c.LookUp("taco").(testData).value)
	require.Equal(t, int64(28), c.LookUp("enchilada").(testData).value)
	c.CheckInvariants()
}

func TestExpiresLeastRecentlyUsed(t *testing.T) {
	c := newInvariantsCache()
	c.Insert("burrito", testData{value: 23, size: 4})
	c.Insert("taco", testData{value: 26, size: 20})      // least recent
	c.Insert("enchilada", testData{value: 28, size: 26}) // second most recent
	require.Equal(t, int64(23), c.LookUp("burrito").(testData).value)

	c.Insert("queso", testData{value: 34, size: 5})

	assert.Nil(t, c.LookUp("taco"))
	assert.Equal(t, int64(23), c.LookUp("burrito").(testData).value)
	assert.Equal(t, int64(28), c.LookUp("enchilada").(testData).value)
	assert.Equal(t, int64(34), c.LookUp("queso").(testData).value)
	c.CheckInvariants()
}

func TestOverwrite(t *testing.T) {
	c := newInvariantsCache()
	assert.Len(t, c.Insert("burrito", testData{value: 23, size: 4}), 0)
	assert.Len(t, c.Insert("taco", testData{value: 26, size: 20}), 0)
	assert.Len(t, c.Insert("enchilada", testData{value: 28, size: 20}), 0)
	assert.Len(t, c.Insert("burrito", testData{value: 33, size: 6}), 0)

	evicted := c.Insert("burrito", testData{value: 33, size: 12})
	require.Len(t, evicted, 1)
	assert.Equal(t, int64(26), evicted[0].(testData).value)

	assert.Nil(t, c.LookUp("taco"))
	assert.Equal(t, int64(33), c.LookUp("burrito").(testData).value)
	assert.Equal(t, int64(28), c.LookUp("enchilada").(testData).value)
	c.CheckInvariants()
}
