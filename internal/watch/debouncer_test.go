package watch

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesPaths(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var (
			mu    sync.Mutex
			calls [][]string
		)
		d := NewDebouncer(100*time.Millisecond, func(paths []string) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, paths)
		})

		d.Add("/data/cfg/b.yml")
		d.Add("/data/cfg/a.yml")
		d.Add("/data/cfg/b.yml")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"/data/cfg/a.yml", "/data/cfg/b.yml"}, calls[0])
	})
}

func TestDebouncerResetsWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var count int
		d := NewDebouncer(100*time.Millisecond, func([]string) { count++ })

		d.Add("/data/cfg/a.yml")
		time.Sleep(60 * time.Millisecond)
		d.Add("/data/cfg/a.yml")
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 0, count)

		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 1, count)
	})
}

func TestDebouncerFlush(t *testing.T) {
	var got []string
	d := NewDebouncer(time.Hour, func(paths []string) { got = paths })

	d.Flush()
	assert.Nil(t, got)

	d.Add("/data/cfg/a.yml")
	d.Flush()
	assert.Equal(t, []string{"/data/cfg/a.yml"}, got)

	got = nil
	d.Flush()
	assert.Nil(t, got)
}
