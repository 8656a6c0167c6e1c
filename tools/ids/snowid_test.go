package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_UniqueAndMonotonic(t *testing.T) {
	g := NewGenerator(7)

	var last int64
	for i := 0; i < 10000; i++ {
		id := g.Next()
		require.Greater(t, id, last)
		last = id
	}
	assert.Equal(t, int64(7), NodeOf(last))
}

func TestGenerator_Concurrent(t *testing.T) {
	g := NewGenerator(3)
	seen := sync.Map{}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_, dup := seen.LoadOrStore(g.Next(), struct{}{})
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
}

func TestNewGenerator_OutOfRangeNode(t *testing.T) {
	assert.Equal(t, int64(1), NodeOf(NewGenerator(5000).Next()))
	assert.Equal(t, int64(1), NodeOf(NewGenerator(-1).Next()))
}
