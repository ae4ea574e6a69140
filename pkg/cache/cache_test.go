package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	c := New[string, []string]()
	assert.Zero(t, c.Size())

	_, ok := c.Get("/media")
	assert.False(t, ok)

	c.Set("/media", []string{"Show A", "Show B"})
	c.Set("/media/Show A", []string{"Season 1"})
	assert.Equal(t, 2, c.Size())
	assert.ElementsMatch(t, []string{"/media", "/media/Show A"}, c.Keys())

	got, ok := c.Get("/media")
	require.True(t, ok)
	assert.Equal(t, []string{"Show A", "Show B"}, got)

	c.Set("/media", nil)
	got, ok = c.Get("/media")
	assert.True(t, ok)
	assert.Nil(t, got)

	c.Delete("/media")
	c.Delete("/missing")
	assert.Equal(t, 1, c.Size())
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string, int]()

	loads := 0
	load := func() (int, error) {
		loads++
		return 42, nil
	}

	v, err := c.GetOrLoad("answer", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrLoad("answer", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, loads)

	t.Run("errors are not cached", func(t *testing.T) {
		wantErr := errors.New("listing failed")
		_, err := c.GetOrLoad("broken", func() (int, error) {
			return 0, wantErr
		})
		assert.ErrorIs(t, err, wantErr)

		_, ok := c.Get("broken")
		assert.False(t, ok)
	})
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int, int]()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := range 100 {
				c.Set(id*100+j, j)
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := range 100 {
				_, _ = c.GetOrLoad(id*100+j, func() (int, error) { return j, nil })
				_ = c.Keys()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5000, c.Size())
}
