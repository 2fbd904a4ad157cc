package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/collection-engine/catalog"
	"github.com/warp/collection-engine/generic"
)

func TestDefault(t *testing.T) {
	c := catalog.Default()

	paper, ok := c.Get("paper")
	require.True(t, ok)
	assert.Equal(t, "Paper", paper.Name)
	assert.Equal(t, generic.UnitLiters, c.UnitFor("cooking_oil"))
	assert.Equal(t, generic.UnitKilograms, c.UnitFor("unknown"))
	assert.Equal(t, "paper", c.All()[0].ID)
}

func TestNew_Rejects(t *testing.T) {
	_, err := catalog.New([]catalog.Material{{ID: " "}})
	assert.Error(t, err)

	_, err = catalog.New([]catalog.Material{{ID: "glass"}, {ID: "glass"}})
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "materials.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "batteries", "name": "Batteries", "default_unit": "un"},
		{"id": "textiles"}
	]`), 0o644))

	c, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Len(t, c.All(), 2)
	assert.Equal(t, generic.UnitUnits, c.UnitFor("batteries"))

	textiles, ok := c.Get("textiles")
	require.True(t, ok)
	assert.Equal(t, "textiles", textiles.Name)
	assert.Equal(t, generic.UnitKilograms, textiles.DefaultUnit)

	_, err = catalog.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
