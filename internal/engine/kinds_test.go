package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructKind_RoundTrip(t *testing.T) {
	for _, k := range []ConstructKind{ConstructUntracked, ConstructCreate, ConstructClone, ConstructMove} {
		got, err := ParseConstructKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseConstructKind("clone")
	require.NoError(t, err)
	assert.Equal(t, ConstructClone, got, "parsing ignores case")

	_, err = ParseConstructKind("teleport")
	assert.Error(t, err)
}

func TestUpdateKind_Declarable(t *testing.T) {
	assert.False(t, UpdateNone.Declarable())
	assert.True(t, UpdatePreserve.Declarable())
	assert.True(t, UpdateMerge.Declarable())
	assert.True(t, UpdateDrop.Declarable())
	assert.False(t, UpdateAny.Declarable())
}

func TestUpdateKind_Parse(t *testing.T) {
	got, err := ParseUpdateKind("drop")
	require.NoError(t, err)
	assert.Equal(t, UpdateDrop, got)

	_, err = ParseUpdateKind("keep")
	assert.Error(t, err)
}
