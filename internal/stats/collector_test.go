package stats_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swarmcp/swarmcp/internal/stats"
)

func TestCollector_ConcurrentAdds(t *testing.T) {
	c := stats.NewCollector()

	var wg sync.WaitGroup
	for n := 0; n < 10; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := 0; m < 100; m++ {
				c.AddDirsExpanded(1)
				c.AddEntriesFound(3)
				c.AddChunksEmitted(2)
				c.AddBytesPlanned(512)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.EqualValues(t, 1000, snap.DirsExpanded)
	assert.EqualValues(t, 3000, snap.EntriesFound)
	assert.EqualValues(t, 2000, snap.ChunksEmitted)
	assert.EqualValues(t, 512000, snap.BytesPlanned)
}

func TestSnapshot_String(t *testing.T) {
	c := stats.NewCollector()
	c.AddDirsExpanded(2)
	c.AddFilesChunked(5)
	c.AddChunksEmitted(9)
	c.AddBytesPlanned(3 * 1024 * 1024)

	s := c.Snapshot().String()
	assert.Contains(t, s, "2 dirs")
	assert.Contains(t, s, "5 files")
	assert.Contains(t, s, "9 chunks")
	assert.Contains(t, s, "3.0 MiB")
	assert.NotContains(t, s, "retries", "zero retries stay out of the summary")

	c.AddRetries(1)
	assert.Contains(t, c.Snapshot().String(), "1 retries")
}
