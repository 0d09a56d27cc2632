package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type closeRecorder struct {
	running *atomic.Bool
	closed  atomic.Bool
	early   atomic.Bool
}

func (c *closeRecorder) Close() error {
	if c.running.Load() {
		c.early.Store(true)
	}
	c.closed.Store(true)
	return nil
}

func TestBackgroundClosesAfterWorkerReturns(t *testing.T) {
	var running atomic.Bool
	closer := &closeRecorder{running: &running}
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	wait := startBackground(ctx, func(ctx context.Context) {
		running.Store(true)
		close(started)
		<-ctx.Done()
		// воркер дописывает последнюю пачку уже после отмены
		time.Sleep(20 * time.Millisecond)
		running.Store(false)
	}, closer)

	<-started
	cancel()
	wait()

	if !closer.closed.Load() {
		t.Fatalf("closer was not closed")
	}
	if closer.early.Load() {
		t.Fatalf("closer was closed while the worker was still running")
	}
}
