/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package task

import (
	"sync"
	"time"
)

// Work is a delayable, cancelable unit of work.  When its timer fires, the
// work function is enqueued onto the owning queue rather than executed in the
// timer context, so it runs serialized with every other job on that queue.
//
// Rescheduling and cancellation invalidate any earlier arming: a job that was
// already enqueued when the generation changed runs as a no-op.
type Work struct {
	q  *Queue
	fn func()

	mtx    sync.Mutex
	timer  *time.Timer
	gen    uint64
	doneCh chan struct{} // non-nil while fn executes
}

// NewWork binds a delayable work item to the queue.
func (q *Queue) NewWork(fn func()) *Work {
	return &Work{
		q:  q,
		fn: fn,
	}
}

// Reschedule arms the work to run after the specified delay, replacing any
// previous arming.
func (w *Work) Reschedule(delay time.Duration) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	w.gen++
	gen := w.gen

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(delay, func() {
		w.q.Enqueue(func() error {
			w.execute(gen)
			return nil
		})
	})
}

func (w *Work) execute(gen uint64) {
	w.mtx.Lock()
	if gen != w.gen {
		// Canceled or rescheduled after this job was enqueued.
		w.mtx.Unlock()
		return
	}
	ch := make(chan struct{})
	w.doneCh = ch
	w.mtx.Unlock()

	w.fn()

	w.mtx.Lock()
	w.doneCh = nil
	w.mtx.Unlock()
	close(ch)
}

// Cancel disarms the work.  A fire that was already enqueued becomes a no-op.
func (w *Work) Cancel() {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	w.gen++
	if w.timer != nil {
		w.timer.Stop()
	}
}

// CancelSync cancels the work and waits for an in-flight execution of the
// work function to complete.  Safe to call from a job on the owning queue:
// there the work function cannot be executing concurrently, so no wait
// occurs.
func (w *Work) CancelSync() {
	w.mtx.Lock()
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
	}
	ch := w.doneCh
	w.mtx.Unlock()

	if ch != nil {
		<-ch
	}
}
