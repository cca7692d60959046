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

// Package task provides the serialized execution context the profile engines
// run on: a job loop that owns all engine state, plus delayable work items
// with cancel-and-wait teardown semantics for the per-peer transmit
// scheduling.
package task

import (
	"fmt"
	"sync"
)

// One submitted unit of work and the channel its result is reported on.
type job struct {
	fn    func() error
	errCh chan error
}

// A Queue executes submitted jobs one at a time on a dedicated goroutine.
// Engine state confined to a queue needs no locking of its own: transport
// callbacks and public API calls are all funneled through the owning queue.
type Queue struct {
	name string

	mtx      sync.Mutex
	jobs     chan job
	quit     chan struct{}
	stopErr  error
	loopDone chan struct{}
}

// NewQueue creates a queue and starts its job loop.  depth bounds the
// backlog of jobs waiting to execute; submission blocks while the backlog is
// full.
func NewQueue(name string, depth int) *Queue {
	q := &Queue{
		name:     name,
		jobs:     make(chan job, depth),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go q.loop()

	return q
}

func (q *Queue) loop() {
	defer close(q.loopDone)

	for {
		select {
		case j := <-q.jobs:
			j.errCh <- j.fn()
			close(j.errCh)

		case <-q.quit:
			// The stop cause is set before quit is closed, and submissions
			// fail once it is set, so whatever is buffered now is all there
			// is.
			for {
				select {
				case j := <-q.jobs:
					j.errCh <- q.stopErr
					close(j.errCh)
				default:
					return
				}
			}
		}
	}
}

// Enqueue submits a job.  Its result is delivered on the returned channel;
// jobs submitted to a stopped queue fail with the stop cause.
func (q *Queue) Enqueue(fn func() error) chan error {
	errCh := make(chan error, 1)

	q.mtx.Lock()
	defer q.mtx.Unlock()

	if q.stopErr != nil {
		errCh <- q.stopErr
		close(errCh)
		return errCh
	}

	q.jobs <- job{fn: fn, errCh: errCh}
	return errCh
}

// Run submits a job and waits for its result.
func (q *Queue) Run(fn func() error) error {
	return <-q.Enqueue(fn)
}

// Stop shuts the queue down: jobs not yet executing fail with the given
// cause, as does every later submission.  Stop blocks until the job loop has
// exited, so it must not be called from a job.
func (q *Queue) Stop(cause error) error {
	q.mtx.Lock()
	if q.stopErr != nil {
		q.mtx.Unlock()
		return fmt.Errorf("task queue \"%s\" stopped twice", q.name)
	}
	q.stopErr = cause
	close(q.quit)
	q.mtx.Unlock()

	<-q.loopDone
	return nil
}
