package searchcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	c := New(2)
	c.Put("poem", []string{"poem.txt"})

	got, ok := c.Get("poem")
	require.True(t, ok)
	assert.Equal(t, []string{"poem.txt"}, got)
}

func TestMissOnUnknownPattern(t *testing.T) {
	c := New(2)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Put("a", []string{"a.txt"})
	c.Put("b", []string{"b.txt"})
	c.Put("c", []string{"c.txt"}) // evicts "a", the LRU entry

	_, ok := c.Get("a")
	assert.False(t, ok)

	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestGetPromotesToFront(t *testing.T) {
	c := New(2)
	c.Put("a", []string{"a.txt"})
	c.Put("b", []string{"b.txt"})

	c.Get("a") // now "b" is LRU
	c.Put("c", []string{"c.txt"})

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestInvalidateAllClearsEverything(t *testing.T) {
	c := New(4)
	c.Put("a", []string{"a.txt"})
	c.Put("b", []string{"b.txt"})

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}
