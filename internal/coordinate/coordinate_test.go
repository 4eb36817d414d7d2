package coordinate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipActiveDefaultFalse(t *testing.T) {
	c := New(4)
	assert.False(t, c.ZipActive.Load())
	c.ZipActive.Store(true)
	assert.True(t, c.ZipActive.Load())
}

func TestStateIsolatedPerStream(t *testing.T) {
	c := New(2)
	c.Lock()
	c.State(0).PendingCompress = true
	c.State(0).TerminalPath = "/var/log/ipstrc.log.5"
	c.Unlock()

	c.Lock()
	assert.True(t, c.State(0).PendingCompress)
	assert.False(t, c.State(1).PendingCompress)
	assert.Equal(t, "", c.State(1).TerminalPath)
	c.Unlock()
}

func TestSignalAndWaitCompression(t *testing.T) {
	c := New(2)
	c.SignalCompression(1)

	select {
	case id, ok := <-waitAsChan(c):
		require.True(t, ok)
		assert.Equal(t, 1, id)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for compression signal")
	}
}

func TestCloseUnblocksWait(t *testing.T) {
	c := New(1)
	c.Close()

	_, ok := c.WaitCompression()
	assert.False(t, ok)
}

// waitAsChan adapts WaitCompression's (id, ok) pair onto a channel so it
// can participate in a select with a timeout in the test above.
func waitAsChan(c *Coordinator) <-chan int {
	ch := make(chan int, 1)
	go func() {
		id, ok := c.WaitCompression()
		if ok {
			ch <- id
		}
	}()
	return ch
}
