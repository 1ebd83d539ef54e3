package signals

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeFlagsAreIndependent(t *testing.T) {
	b := NewBridge()
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		b.Listen(ch)
		close(done)
	}()

	ch <- syscall.SIGWINCH
	awaitWake(t, b)

	assert.False(t, b.CheckAndClearTerminate())
	assert.True(t, b.CheckAndClearResize())
	assert.False(t, b.CheckAndClearResize(), "resize must be cleared after check")

	ch <- syscall.SIGTERM
	awaitWake(t, b)

	assert.False(t, b.CheckAndClearResize())
	assert.True(t, b.CheckAndClearTerminate())
	assert.False(t, b.CheckAndClearTerminate())

	close(ch)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after channel close")
	}
}

func TestBridgeInterruptRequestsTerminate(t *testing.T) {
	b := NewBridge()
	ch := make(chan os.Signal, 1)
	go b.Listen(ch)
	t.Cleanup(func() { close(ch) })

	ch <- syscall.SIGINT
	awaitWake(t, b)
	assert.True(t, b.CheckAndClearTerminate())
}

func TestBridgeWakeDoesNotBlock(t *testing.T) {
	b := NewBridge()
	ch := make(chan os.Signal, 3)
	ch <- syscall.SIGWINCH
	ch <- syscall.SIGWINCH
	ch <- syscall.SIGTERM
	close(ch)

	// Nobody drains Wake; Listen must still consume everything.
	b.Listen(ch)

	assert.True(t, b.CheckAndClearResize())
	assert.True(t, b.CheckAndClearTerminate())
	require.Len(t, b.Wake(), 1)
}

func awaitWake(t *testing.T, b *Bridge) {
	t.Helper()
	select {
	case <-b.Wake():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wake")
	}
}
