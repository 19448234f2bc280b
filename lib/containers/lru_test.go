// SPDX-License-Identifier: GPL-2.0-or-later

package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCacheAddGet(t *testing.T) {
	c := NewLRUCache[int64, string](4)
	c.Add(1, "one")
	c.Add(2, "two")

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func TestLRUCacheOverwriteUpdatesValue(t *testing.T) {
	c := NewLRUCache[int64, string](4)
	c.Add(1, "one")
	c.Add(1, "uno")

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "uno", v)
}
