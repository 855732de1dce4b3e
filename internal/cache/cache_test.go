package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hoony8355/searcap/internal/models"
)

func TestNewWithoutAddrReturnsNil(t *testing.T) {
	c := New(Config{SeenTTL: time.Hour, BlockTTL: time.Minute})
	assert.Nil(t, c)
}

func TestNilCacheIsInert(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	assert.NotPanics(t, func() {
		assert.False(t, c.SeenRecently(ctx, models.SurfaceSearch, "키보드", models.SectionPowerLink))
		c.MarkSeen(ctx, models.SurfaceSearch, "키보드", models.SectionPowerLink)
		assert.False(t, c.IsBlocked(ctx, models.SurfaceSearch))
		c.MarkBlocked(ctx, models.SurfaceSearch)
		assert.NoError(t, c.Close())
	})
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t,
		"searcap:seen:search:powerlink:무선 키보드",
		seenKey(models.SurfaceSearch, "무선 키보드", models.SectionPowerLink))

	assert.Equal(t, "searcap:blocked:shopping", blockKey(models.SurfaceShopping))
}
