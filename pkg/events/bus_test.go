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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Event, n int, timeout time.Duration) []Event {
	out := make([]Event, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestBus_PublishToTopicSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 8, TopicResponse)
	bus.Publish(TopicResponse, Response{SessionID: "s1", Text: "done"})
	bus.Publish(TopicThinking, Thinking{SessionID: "s1"}) // not subscribed

	got := collect(ch, 1, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, TopicResponse, got[0].Topic)
	payload, ok := got[0].Payload.(Response)
	require.True(t, ok)
	assert.Equal(t, "done", payload.Text)
}

func TestBus_WildcardSubscriberSeesEverything(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 8)
	bus.Publish(TopicThinking, Thinking{SessionID: "s1"})
	bus.Publish(TopicResponse, Response{SessionID: "s1", Text: "hi"})

	got := collect(ch, 2, time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, TopicThinking, got[0].Topic)
	assert.Equal(t, TopicResponse, got[1].Topic)
}

func TestBus_SequenceIsMonotonic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 16, TopicChunk)
	for i := 0; i < 5; i++ {
		bus.Publish(TopicChunk, Chunk{SessionID: "s1", Delta: "x"})
	}

	got := collect(ch, 5, time.Second)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
	}
}

func TestBus_DropOldestOnOverflow(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 2, TopicChunk)
	for i := 0; i < 5; i++ {
		bus.Publish(TopicChunk, Chunk{SessionID: "s1", Delta: string(rune('a' + i))})
	}

	// Mailbox holds two entries; the survivors are the two newest.
	got := collect(ch, 2, time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].Payload.(Chunk).Delta)
	assert.Equal(t, "e", got[1].Payload.(Chunk).Delta)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = bus.Subscribe(ctx, 1, TopicChunk) // never read

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(TopicChunk, Chunk{SessionID: "s1", Delta: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full mailbox")
	}
}

func TestBus_UnsubscribeOnContextCancel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := bus.Subscribe(ctx, 4, TopicResponse)
	cancel()

	// The mailbox closes once the cancellation is observed.
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Publishing after unsubscribe must not panic.
	bus.Publish(TopicResponse, Response{SessionID: "s1", Text: "late"})
}

func TestBus_CloseClosesMailboxes(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 4, TopicResponse)
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// Publish after close is a no-op.
	bus.Publish(TopicResponse, Response{SessionID: "s1", Text: "late"})

	// Subscribing after close yields a closed channel.
	ch2 := bus.Subscribe(ctx, 4, TopicResponse)
	_, ok = <-ch2
	assert.False(t, ok)
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 1024, TopicChunk)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				bus.Publish(TopicChunk, Chunk{SessionID: "s", Delta: "d"})
			}
		}()
	}
	wg.Wait()

	got := collect(ch, 400, 2*time.Second)
	assert.Len(t, got, 400)
}

func TestEmitter_BindsSessionID(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 16)
	em := NewEmitter(bus, "sess-42")

	em.Thinking()
	em.Chunk("par")
	em.ToolCall("echo", map[string]interface{}{"message": "banana"})
	em.ToolResult("echo", "banana", nil)
	em.Response("final")
	em.ConversationReset()

	got := collect(ch, 6, time.Second)
	require.Len(t, got, 6)

	assert.Equal(t, "sess-42", got[0].Payload.(Thinking).SessionID)
	assert.Equal(t, "par", got[1].Payload.(Chunk).Delta)
	tc := got[2].Payload.(ToolCallStarted)
	assert.Equal(t, "echo", tc.ToolName)
	tr := got[3].Payload.(ToolCallFinished)
	assert.Equal(t, "banana", tr.Result)
	assert.Empty(t, tr.Err)
	assert.Equal(t, "final", got[4].Payload.(Response).Text)
	assert.Equal(t, "sess-42", got[5].Payload.(ConversationReset).SessionID)
}

func TestEmitter_ToolResultCarriesError(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, 4, TopicToolResult)
	em := NewEmitter(bus, "s")
	em.ToolResult("broken", nil, assert.AnError)

	got := collect(ch, 1, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, assert.AnError.Error(), got[0].Payload.(ToolCallFinished).Err)
}
