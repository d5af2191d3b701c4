package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockkeeper/internal/domain"
)

func TestProductListQuery(t *testing.T) {
	repo := NewProductRepo(nil)

	sql, args, err := repo.listQuery(domain.ListFilter{Search: " flour "}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM products WHERE (code ILIKE $1 OR name ILIKE $2)")
	assert.Equal(t, []any{"%flour%", "%flour%"}, args)

	sql, args, err = repo.listQuery(domain.ListFilter{}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, args)
}

func TestProductColumns(t *testing.T) {
	for _, col := range []string{"id", "version", "code", "name", "unit", "cost", "price", "current_stock", "created_at", "updated_at"} {
		assert.Contains(t, productCols, col)
	}
}
