package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsFromManyWorkers(t *testing.T) {
	c := NewCollector()
	const workers, filesEach = 32, 500

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range filesEach {
				c.AddFilesDiscovered(1)
				c.AddBytesTotal(64)
				if (w+i)%5 == 0 {
					c.AddFilesFailed(1)
					continue
				}
				c.AddFilesHashed(1)
				c.AddBytesHashed(64)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	total := int64(workers * filesEach)
	assert.Equal(t, total, snap.FilesDiscovered)
	assert.Equal(t, total, snap.FilesHashed+snap.FilesFailed)
	assert.Equal(t, total*64, snap.BytesTotal)
	assert.Equal(t, snap.FilesHashed*64, snap.BytesHashed)
}

func TestInFlightPeakIsHighWaterMark(t *testing.T) {
	c := NewCollector()
	for range 4 {
		c.StartFile()
	}
	for range 3 {
		c.FinishFile()
	}
	c.StartFile()

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.InFlight)
	assert.EqualValues(t, 4, snap.PeakInFlight)
}

func TestInFlightPeakUnderContention(t *testing.T) {
	const n = 12
	c := NewCollector()

	var opened, done sync.WaitGroup
	opened.Add(n)
	done.Add(n)
	gate := make(chan struct{})
	for range n {
		go func() {
			defer done.Done()
			c.StartFile()
			opened.Done()
			<-gate
			c.FinishFile()
		}()
	}
	opened.Wait()
	require.EqualValues(t, n, c.Snapshot().InFlight)
	close(gate)
	done.Wait()

	snap := c.Snapshot()
	assert.Zero(t, snap.InFlight)
	assert.EqualValues(t, n, snap.PeakInFlight)
}

func TestSnapshotStringForLogs(t *testing.T) {
	s := Snapshot{FilesDiscovered: 7, FilesHashed: 6, FilesFailed: 1, BytesHashed: 3 << 20, PeakInFlight: 3}
	assert.Equal(t, "files=6/7 failed=1 read=3.0 MiB peak_inflight=3", s.String())
}

func TestFormatBytesUnits(t *testing.T) {
	cases := map[int64]string{
		0:              "0 B",
		1023:           "1023 B",
		1024:           "1.0 KiB",
		3 << 19:        "1.5 MiB",
		5 << 30:        "5.0 GiB",
		int64(2) << 40: "2.0 TiB",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatBytes(in), "FormatBytes(%d)", in)
	}
}

func TestRollingSpeed(t *testing.T) {
	t.Run("no ticks", func(t *testing.T) {
		assert.Zero(t, NewCollector().RollingSpeed(5))
	})

	t.Run("steady rate", func(t *testing.T) {
		c := NewCollector()
		for range 8 {
			c.AddBytesHashed(2048)
			c.Tick()
		}
		assert.InDelta(t, 2048, c.RollingSpeed(5), 0.001)
	})

	t.Run("fewer ticks than requested", func(t *testing.T) {
		c := NewCollector()
		c.AddBytesHashed(300)
		c.Tick()
		c.AddBytesHashed(100)
		c.Tick()
		assert.InDelta(t, 200, c.RollingSpeed(30), 0.001)
	})

	t.Run("only recent samples count", func(t *testing.T) {
		c := NewCollector()
		c.AddBytesHashed(1 << 20)
		c.Tick()
		for range windowLen {
			c.AddBytesHashed(10)
			c.Tick()
		}
		assert.InDelta(t, 10, c.RollingSpeed(windowLen), 0.001)
	})
}

func TestElapsedAdvances(t *testing.T) {
	c := NewCollector()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, c.Snapshot().Elapsed, 5*time.Millisecond)
}
