// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultMailbox is the subscriber buffer size used when Subscribe is called
// with a non-positive buffer.
const DefaultMailbox = 64

type subscriber struct {
	ch        chan Event
	closeOnce sync.Once
}

func (s *subscriber) closeChan() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Bus is a per-agent publish/subscribe hub. One Bus is created at agent
// start and shared by every component that emits or observes events.
//
// Channel closes happen only under the write lock and sends only under the
// read lock, so a publisher can never send on a closed mailbox.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[*subscriber]struct{}
	all    map[*subscriber]struct{}
	closed bool
	seq    atomic.Uint64
	logger *zap.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the bus logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[Topic]map[*subscriber]struct{}),
		all:    make(map[*subscriber]struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a mailbox for the given topics, or for every topic
// when none are named. The returned channel is closed when ctx is cancelled
// or the bus shuts down. A non-positive buffer selects DefaultMailbox.
func (b *Bus) Subscribe(ctx context.Context, buffer int, topics ...Topic) <-chan Event {
	if buffer <= 0 {
		buffer = DefaultMailbox
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.closeChan()
		return sub.ch
	}
	if len(topics) == 0 {
		b.all[sub] = struct{}{}
	} else {
		for _, t := range topics {
			if b.subs[t] == nil {
				b.subs[t] = make(map[*subscriber]struct{})
			}
			b.subs[t][sub] = struct{}{}
		}
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(sub, topics)
	}()

	return sub.ch
}

func (b *Bus) remove(sub *subscriber, topics []Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(topics) == 0 {
		delete(b.all, sub)
	} else {
		for _, t := range topics {
			if set := b.subs[t]; set != nil {
				delete(set, sub)
				if len(set) == 0 {
					delete(b.subs, t)
				}
			}
		}
	}
	sub.closeChan()
}

// Publish delivers an event to every mailbox subscribed to the topic.
// Publishing is non-blocking: a full mailbox loses its oldest entry.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	ev := Event{
		Topic:   topic,
		Seq:     b.seq.Add(1),
		Time:    time.Now(),
		Payload: payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs[topic] {
		b.deliver(sub, ev)
	}
	for sub := range b.all {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *subscriber, ev Event) {
	select {
	case sub.ch <- ev:
		return
	default:
	}
	// Mailbox full: shed the oldest entry and try once more. If another
	// reader races us in between, the event is dropped instead.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- ev:
	default:
		b.logger.Debug("event dropped on full mailbox", zap.String("topic", string(ev.Topic)))
	}
}

// Close shuts the bus down and closes every mailbox. Publish becomes a
// no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			sub.closeChan()
		}
	}
	for sub := range b.all {
		sub.closeChan()
	}
	b.subs = make(map[Topic]map[*subscriber]struct{})
	b.all = make(map[*subscriber]struct{})
}
