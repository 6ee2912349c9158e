package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPutThenGet(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	want := payload{Name: "closure", Count: 7}
	require.NoError(t, c.Put("project:/p/src", want, time.Minute))

	var got payload
	assert.True(t, c.Get("project:/p/src", &got))
	assert.Equal(t, want, got)
}

func TestGetMiss(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	var got payload
	assert.False(t, c.Get("absent", &got))
}

func TestExpiredEntryDiscarded(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Put("short", payload{Name: "x"}, -time.Second))

	var got payload
	assert.False(t, c.Get("short", &got))
	// The stale file is gone, so a second read also misses.
	assert.False(t, c.Get("short", &got))
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Put("a", payload{Name: "a"}, time.Minute))
	require.NoError(t, c.Put("b", payload{Name: "b"}, time.Minute))

	var got payload
	require.True(t, c.Get("a", &got))
	assert.Equal(t, "a", got.Name)
	require.True(t, c.Get("b", &got))
	assert.Equal(t, "b", got.Name)
}

func TestPutOverwrites(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Put("k", payload{Count: 1}, time.Minute))
	require.NoError(t, c.Put("k", payload{Count: 2}, time.Minute))

	var got payload
	require.True(t, c.Get("k", &got))
	assert.Equal(t, 2, got.Count)
}
