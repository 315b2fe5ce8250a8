// Package frames holds the latest encoded camera frame and wakes every
// waiting consumer when a new one is published.
package frames

import (
	"context"
	"sync"
)

// Frame is one encoded image. Seq increases by one on every Publish and is
// only meaningful for comparing which of two frames is newer.
type Frame struct {
	Data []byte
	Seq  uint64
}

// Broadcaster is a single-slot buffer with wake-all notification.
//
// There is no queue: a consumer that falls behind skips straight to the
// newest frame. Publish never blocks on consumers.
type Broadcaster struct {
	mu     sync.Mutex
	cond   *sync.Cond
	latest Frame
	onPub  func(size int)
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// OnPublish sets a hook that runs after each Publish, outside the lock.
func (b *Broadcaster) OnPublish(fn func(size int)) {
	b.mu.Lock()
	b.onPub = fn
	b.mu.Unlock()
}

// Publish stores data as the latest frame and releases all waiters.
// The broadcaster keeps a reference to data; the caller must not modify it
// afterwards.
func (b *Broadcaster) Publish(data []byte) {
	b.mu.Lock()
	b.latest = Frame{Data: data, Seq: b.latest.Seq + 1}
	hook := b.onPub
	b.mu.Unlock()
	b.cond.Broadcast()

	if hook != nil {
		hook(len(data))
	}
}

// WriteFrame implements capture.FrameSink.
func (b *Broadcaster) WriteFrame(data []byte) {
	b.Publish(data)
}

// Latest returns the most recent frame. Seq is zero if nothing was published.
func (b *Broadcaster) Latest() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// WaitNext blocks until a frame with Seq greater than after is available and
// returns it. Pass the Seq of the last frame you consumed, or zero to get
// whatever is published first.
//
// It returns ctx.Err() if ctx ends first. Frame.Data is shared with other
// consumers and must be treated as read-only.
func (b *Broadcaster) WaitNext(ctx context.Context, after uint64) (Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		// Taking the lock orders this Broadcast after the waiter's ctx check,
		// so the wake-up cannot be lost.
		b.mu.Lock()
		b.mu.Unlock()
		b.cond.Broadcast()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.latest.Seq <= after {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		b.cond.Wait()
	}
	return b.latest, nil
}

// Subscriber tracks the last frame one consumer has seen.
type Subscriber struct {
	b    *Broadcaster
	last uint64
}

// Subscribe returns a consumer that will receive frames published after
// this call.
func (b *Broadcaster) Subscribe() *Subscriber {
	return &Subscriber{b: b, last: b.Latest().Seq}
}

// Next blocks until a frame newer than the previous one returned is available.
func (s *Subscriber) Next(ctx context.Context) (Frame, error) {
	f, err := s.b.WaitNext(ctx, s.last)
	if err != nil {
		return Frame{}, err
	}
	s.last = f.Seq
	return f, nil
}
