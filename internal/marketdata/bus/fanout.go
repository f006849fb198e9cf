// Package bus broadcasts one bar stream to several consumers.
package bus

import (
	"context"
	"log"
	"sync"
)

type subscriber[T any] struct {
	ch       chan T
	lossless bool
}

// FanOut broadcasts values from a single input channel to N output channels.
// Lossy subscribers drop values when full so a slow recorder cannot stall
// the pipeline; lossless subscribers (the strategy engine) block it instead.
type FanOut[T any] struct {
	mu   sync.RWMutex
	subs []subscriber[T]

	// OnDrop is called when a value is dropped for a lossy subscriber.
	// idx is the 0-based subscription index.
	OnDrop func(idx int)
}

// New creates an empty FanOut.
func New[T any]() *FanOut[T] {
	return &FanOut[T]{}
}

// Subscribe adds a lossy output channel with the given buffer size.
func (f *FanOut[T]) Subscribe(buf int) <-chan T {
	return f.add(buf, false)
}

// SubscribeLossless adds an output channel that never drops values.
func (f *FanOut[T]) SubscribeLossless(buf int) <-chan T {
	return f.add(buf, true)
}

func (f *FanOut[T]) add(buf int, lossless bool) <-chan T {
	ch := make(chan T, buf)
	f.mu.Lock()
	f.subs = append(f.subs, subscriber[T]{ch: ch, lossless: lossless})
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to all subscribers. Output channels are
// closed on return. Blocks until ctx is cancelled or input is closed.
func (f *FanOut[T]) Run(ctx context.Context, input <-chan T) {
	defer func() {
		f.mu.RLock()
		for _, s := range f.subs {
			close(s.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			if !f.broadcast(ctx, v) {
				return
			}
		}
	}
}

func (f *FanOut[T]) broadcast(ctx context.Context, v T) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, s := range f.subs {
		if s.lossless {
			select {
			case s.ch <- v:
			case <-ctx.Done():
				return false
			}
			continue
		}
		select {
		case s.ch <- v:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				log.Printf("[bus] output channel %d full, dropping value", i)
			}
		}
	}
	return true
}

// ChannelStat reports the fill level of one subscriber channel.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns (length, capacity) for each subscriber channel.
func (f *FanOut[T]) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.subs))
	for i, s := range f.subs {
		stats[i] = ChannelStat{Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
