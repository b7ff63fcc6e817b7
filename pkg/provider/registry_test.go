package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry[func() int]("backend")
	r.Register("b", func() int { return 2 })
	r.Register("a", func() int { return 1 })

	f, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, f())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, r.List())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry[int]("backend")
	r.Register("a", 1)
	assert.PanicsWithValue(t, "backend a already registered", func() {
		r.Register("a", 2)
	})
}

func TestInfo_String(t *testing.T) {
	assert.Equal(t, "csv", Info{Name: "csv"}.String())
	assert.Equal(t, "sqlite/1.0", Info{Name: "sqlite", Version: "1.0"}.String())
}
