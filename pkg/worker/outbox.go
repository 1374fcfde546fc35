// Copyright 2025 Croupier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// ErrOutboxClosed is returned by Enqueue after Close.
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox serializes outbound messages onto a single writer.
//
// Usage:
//  1. Start Run on one goroutine with the channel's Send as the sink
//  2. Call Enqueue from any goroutine
//  3. Call Close to stop accepting messages; Run drains what is queued and returns
//
// Example:
//
//	out := worker.NewOutbox()
//	go out.Run(ctx, ch.Send)
//
//	// From any handler goroutine
//	out.Enqueue(&rpc.StreamingMessage{RpcLog: entry})
type Outbox struct {
	mu       sync.Mutex
	queue    []*rpc.StreamingMessage
	notify   chan struct{}
	closed   atomic.Bool
	done     chan struct{}
	maxBatch int
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		queue:    make([]*rpc.StreamingMessage, 0, 64),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		maxBatch: 256,
	}
}

// Enqueue adds a message to be sent. Messages from one goroutine are sent in
// the order they were enqueued.
func (o *Outbox) Enqueue(msg *rpc.StreamingMessage) error {
	if msg == nil {
		return nil
	}
	o.mu.Lock()
	if o.closed.Load() {
		o.mu.Unlock()
		return ErrOutboxClosed
	}
	o.queue = append(o.queue, msg)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// take removes up to maxCount queued messages.
func (o *Outbox) take(maxCount int) []*rpc.StreamingMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return nil
	}

	// Take at most maxCount items
	count := min(len(o.queue), maxCount)
	batch := make([]*rpc.StreamingMessage, count)
	copy(batch, o.queue[:count])
	o.queue = o.queue[count:]
	return batch
}

// Run sends queued messages through send until ctx is cancelled, send fails,
// or the outbox is closed and drained.
func (o *Outbox) Run(ctx context.Context, send func(*rpc.StreamingMessage) error) error {
	for {
		for batch := o.take(o.maxBatch); batch != nil; batch = o.take(o.maxBatch) {
			for _, msg := range batch {
				if err := send(msg); err != nil {
					return err
				}
			}
		}
		if o.closed.Load() && o.Pending() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.notify:
		case <-o.done:
		}
	}
}

// Pending returns the number of messages waiting to be sent.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close stops accepting messages. Already queued messages are still sent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed.CompareAndSwap(false, true) {
		close(o.done)
	}
}
