package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/boyong/internal/catalog"
	_ "github.com/yusufsyaifudin/boyong/migrations"
)

func TestUnitsRegister(t *testing.T) {
	cat, err := catalog.Load(catalog.DefaultRegistry())
	require.NoError(t, err)
	require.GreaterOrEqual(t, cat.Len(), 3)

	def, ok := cat.ByVersion("20240101090000")
	require.True(t, ok)
	assert.Equal(t, "20240101090000_create_users_collection.go", def.Filename)
	assert.NotEmpty(t, def.SourcePath)

	// filename order and version order agree across all units
	assert.Empty(t, cat.OutOfOrder())
}
