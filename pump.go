// pump.go: Drain engine shared by every sink
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kleio

import (
	"fmt"
	"sync/atomic"
	"time"
)

// cycle is the per-drain delivery state of a sink. It owns whatever handle
// the sink needs (file, database) for the duration of one drain only.
type cycle interface {
	// deliver persists one event. A non-nil error ends the cycle; the
	// remaining events stay queued for the next one.
	deliver(ev Event) error
	// finish releases the handles. Called exactly once per cycle.
	finish()
}

// pump owns a sink's queue and serialises its drain cycles.
type pump struct {
	name     string
	queue    *eventQueue
	draining atomic.Bool // try-once drain lock
	failures int         // consecutive dequeue failures, guarded by draining
	consumer *consumer

	// report receives internal failures (dequeue races, delivery errors).
	report func(operation string, err error)
}

func newPump(name string, report func(string, error)) *pump {
	return &pump{
		name:   name,
		queue:  newEventQueue(),
		report: report,
	}
}

// start launches the periodic drain.
func (p *pump) start(interval time.Duration, begin func() cycle) {
	p.consumer = newConsumer(interval, func() { p.drain(begin) })
}

// stop halts the periodic drain, waiting for an in-flight cycle.
func (p *pump) stop() {
	if p.consumer != nil {
		p.consumer.stop()
	}
}

func (p *pump) enqueue(ev Event) {
	p.queue.push(ev)
}

func (p *pump) pending() int {
	return p.queue.len()
}

// drain runs one cycle. It returns immediately when the queue is empty or
// when another goroutine already holds the drain; it never waits for it.
func (p *pump) drain(begin func() cycle) {
	if p.queue.empty() {
		return
	}
	if !p.draining.CompareAndSwap(false, true) {
		return
	}
	defer p.draining.Store(false)

	defer func() {
		if r := recover(); r != nil {
			p.report("drain_panic", fmt.Errorf("%s drain panicked: %v", p.name, r))
		}
	}()

	c := begin()
	defer c.finish()

	for !p.queue.empty() {
		ev, ok := p.queue.pop()
		if !ok {
			p.failures++
			if shouldWarnDequeue(p.failures) {
				p.report("dequeue", newError(ErrCodeDequeue,
					fmt.Sprintf("%s queue reported pending events but dequeue failed (%d consecutive)", p.name, p.failures)))
			}
			return
		}
		p.failures = 0

		if err := c.deliver(ev); err != nil {
			p.report("deliver", err)
			return
		}
	}
}

// shouldWarnDequeue thins out warnings as a failure streak grows: every one
// of the first four, then only when failures is a multiple of
// 10*ceil(log10(failures)).
func shouldWarnDequeue(failures int) bool {
	if failures < 5 {
		return true
	}
	digits := 0 // ceil(log10(failures)), exact for integers
	for p := 1; p < failures; p *= 10 {
		digits++
	}
	return failures%(10*digits) == 0
}
