package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeHash(t *testing.T) {
	a := CodeHash("export default function W() {}")
	b := CodeHash("export default function W() {}")
	c := CodeHash("export default function X() {}")

	assert.Equal(t, a, b, "identical code must hash identically")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestLineHashesKeys(t *testing.T) {
	hashes := LineHashes("one\ntwo\nthree")
	require.Len(t, hashes, 3)

	// 1-based keys
	assert.Contains(t, hashes, 1)
	assert.Contains(t, hashes, 3)
	assert.NotContains(t, hashes, 0)

	// Equal lines hash equally regardless of position
	dup := LineHashes("one\none")
	assert.Equal(t, dup[1], dup[2])
}

func TestConcernHelpers(t *testing.T) {
	global := Concern{ID: "DATA.1"}
	scoped := Concern{ID: "PRESENTATION.3", Location: []int{4, 9}}

	assert.True(t, global.IsGlobal())
	assert.False(t, scoped.IsGlobal())
	assert.Equal(t, "DATA", global.Category())
	assert.Equal(t, "PRESENTATION", scoped.Category())

	bare := Concern{ID: "MISC"}
	assert.Equal(t, "MISC", bare.Category())
}
