// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/drivertest"
)

func TestPoolReusesMatchingTexture(t *testing.T) {
	dev := drivertest.New(image.Pt(800, 600))
	p := NewPool(4)

	a, err := Allocate(dev, image.Pt(64, 32), driver.FormatBGRA, WithPool(p))
	require.NoError(t, err)
	a.Release()
	assert.Equal(t, 1, p.Len())
	assert.False(t, dev.Textures[0].Released, "pooled texture must stay alive")

	b, err := Allocate(dev, image.Pt(64, 32), driver.FormatBGRA, WithPool(p))
	require.NoError(t, err)
	assert.Len(t, dev.Textures, 1, "second allocation should be served from the pool")
	assert.Same(t, dev.Textures[0], b.Texture())

	_, err = Allocate(dev, image.Pt(64, 32), driver.FormatRGBA, WithPool(p))
	require.NoError(t, err)
	assert.Len(t, dev.Textures, 2, "different format must not match")

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
}

func TestPoolEvictsOldest(t *testing.T) {
	dev := drivertest.New(image.Pt(800, 600))
	p := NewPool(4)
	var hs []*Handle
	for i := 0; i < 5; i++ {
		h, err := Allocate(dev, image.Pt(8+i, 8), driver.FormatRGBA, WithPool(p))
		require.NoError(t, err)
		hs = append(hs, h)
	}
	for _, h := range hs {
		h.Release()
	}
	// Fifth put exceeds the limit and trims to 3.
	assert.Equal(t, 3, p.Len())
	assert.True(t, dev.Textures[0].Released)
	assert.True(t, dev.Textures[1].Released)
	assert.False(t, dev.Textures[4].Released)
	assert.Equal(t, uint64(2), p.Stats().Evictions)

	p.Purge()
	assert.Zero(t, p.Len())
	assert.Empty(t, dev.LiveTextures())
}
