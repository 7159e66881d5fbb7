// buffer.go: Unbounded MPSC event queue and the ticker-driven consumer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// queueNode is a link of the intrusive queue. The zero node is the stub.
type queueNode struct {
	next  atomic.Pointer[queueNode]
	event Event
}

// eventQueue is an unbounded Multi-Producer Single-Consumer FIFO.
//
// Producers never block: push reserves its position with a single atomic
// swap of the tail and then links the previous tail to the new node.
// Between those two steps the queue reports a pending event that pop cannot
// yet reach; callers treat that as a transient dequeue failure and retry on
// the next cycle.
//
// pop must only be called by the current drain owner (see pump).
type eventQueue struct {
	head *queueNode // consumer side, guarded by the drain flag
	tail atomic.Pointer[queueNode]
	size atomic.Int64
}

func newEventQueue() *eventQueue {
	stub := &queueNode{}
	q := &eventQueue{head: stub}
	q.tail.Store(stub)
	return q
}

// push appends ev. Safe for any number of concurrent producers.
func (q *eventQueue) push(ev Event) {
	n := &queueNode{event: ev}
	// Count first so that empty() never hides a linked node.
	q.size.Add(1)
	prev := q.tail.Swap(n)
	prev.next.Store(n)
}

// pop removes the oldest event. It returns false if nothing is reachable,
// which can happen while size is still positive (producer mid-push).
func (q *eventQueue) pop() (Event, bool) {
	next := q.head.next.Load()
	if next == nil {
		return Event{}, false
	}
	ev := next.event
	next.event = Event{} // release the payload, next becomes the new stub
	q.head = next
	q.size.Add(-1)
	return ev, true
}

// empty reports whether no event is pending.
func (q *eventQueue) empty() bool {
	return q.size.Load() <= 0
}

// len returns the number of pending events.
func (q *eventQueue) len() int {
	return int(q.size.Load())
}

// consumer runs a drain function on every tick until stopped.
type consumer struct {
	ctx    context.Context
	cancel context.CancelFunc
	ticker *time.Ticker
	wg     sync.WaitGroup
	drain  func()
}

// newConsumer starts the background goroutine.
func newConsumer(interval time.Duration, drain func()) *consumer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &consumer{
		ctx:    ctx,
		cancel: cancel,
		ticker: time.NewTicker(interval),
		drain:  drain,
	}

	c.wg.Add(1)
	go c.run()

	return c
}

func (c *consumer) run() {
	defer c.ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.ticker.C:
			c.drain()
		}
	}
}

// stop cancels the loop and waits for an in-flight drain to finish.
func (c *consumer) stop() {
	c.cancel()
	c.wg.Wait()
}
