package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPutBasic(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touch a, making b the LRU entry
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestPeekDoesNotAffectOrder(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Peek("a")
	c.Put("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "peek must not protect a from eviction")
}

func TestEvictAndClear(t *testing.T) {
	c := New[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Evict("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCapacityNormalized(t *testing.T) {
	c := New[string, int](0)
	assert.Equal(t, 1, c.Cap())
}

func TestNewWithEvictCallsHookOnCapacityEviction(t *testing.T) {
	var evictedKey string
	var evictedValue int
	c := NewWithEvict(2, func(k string, v int) {
		evictedKey = k
		evictedValue = v
	})
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	assert.Equal(t, "a", evictedKey)
	assert.Equal(t, 1, evictedValue)
}

func TestNewWithEvictNotCalledOnExplicitEvictOrClear(t *testing.T) {
	called := false
	c := NewWithEvict(4, func(string, int) { called = true })
	c.Put("a", 1)
	c.Evict("a")
	c.Put("b", 2)
	c.Clear()

	assert.False(t, called)
}
