// Package signals folds asynchronous OS notifications into flags the
// dashboard loop polls once per iteration.
package signals

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Bridge holds the terminate and resize requests. Only Listen writes them.
type Bridge struct {
	terminate atomic.Bool
	resize    atomic.Bool
	wake      chan struct{}
}

// NewBridge returns a bridge with both flags cleared.
func NewBridge() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1)}
}

// Install subscribes the bridge to SIGINT, SIGTERM and SIGWINCH until ctx
// is done.
func Install(ctx context.Context) *Bridge {
	b := NewBridge()
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGWINCH)
	go func() {
		<-ctx.Done()
		signal.Stop(ch)
		close(ch)
	}()
	go b.Listen(ch)
	return b
}

// Listen records every signal received on ch until ch is closed.
func (b *Bridge) Listen(ch <-chan os.Signal) {
	for sig := range ch {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			b.terminate.Store(true)
		case syscall.SIGWINCH:
			b.resize.Store(true)
		default:
			continue
		}
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
}

// CheckAndClearTerminate reports and resets a pending terminate request.
func (b *Bridge) CheckAndClearTerminate() bool {
	return b.terminate.Swap(false)
}

// CheckAndClearResize reports and resets a pending resize request.
func (b *Bridge) CheckAndClearResize() bool {
	return b.resize.Swap(false)
}

// Wake receives a value after a signal was recorded, so a blocked wait can
// go back and check the flags.
func (b *Bridge) Wake() <-chan struct{} {
	return b.wake
}
