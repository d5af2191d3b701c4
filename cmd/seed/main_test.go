package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockkeeper/internal/domain"
	"stockkeeper/internal/testing/memstore"
	"stockkeeper/pkg/logger"
)

func TestSeedProducts(t *testing.T) {
	env := memstore.NewEnv(false)
	ctx := context.Background()

	n, err := seedProducts(ctx, env.Products, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, len(demoProducts), n)

	res, err := env.Products.List(ctx, domain.ListFilter{Limit: 50})
	require.NoError(t, err)
	assert.EqualValues(t, len(demoProducts), res.TotalCount)

	var withStock int
	for _, in := range demoProducts {
		if in.InitialStock > 0 {
			withStock++
		}
	}
	assert.Len(t, env.Store.Movements(), withStock)

	again, err := seedProducts(ctx, env.Products, logger.NewNop())
	require.NoError(t, err)
	assert.Zero(t, again)
}
