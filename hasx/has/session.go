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

package has

import (
	"github.com/hearsys/hasmgr/hasx/gatt"
	"github.com/hearsys/hasmgr/hasx/hasp"
	"github.com/hearsys/hasmgr/hasx/task"
)

// changeSet is the per-peer coalescing queue of pending preset-changed
// events: at most one pending change kind per preset.
type changeSet struct {
	m map[uint8]hasp.ChangeID
}

func newChangeSet() *changeSet {
	return &changeSet{m: map[uint8]hasp.ChangeID{}}
}

func (cs *changeSet) set(id uint8, change hasp.ChangeID) {
	cs.m[id] = change
}

func (cs *changeSet) get(id uint8) (hasp.ChangeID, bool) {
	c, ok := cs.m[id]
	return c, ok
}

func (cs *changeSet) clear(id uint8) {
	delete(cs.m, id)
}

func (cs *changeSet) clearAll() {
	cs.m = map[uint8]hasp.ChangeID{}
}

func (cs *changeSet) len() int {
	return len(cs.m)
}

// first returns the pending entry with the lowest preset id.
func (cs *changeSet) first() (uint8, hasp.ChangeID, bool) {
	var minID uint8
	found := false
	for id := range cs.m {
		if !found || id < minID {
			minID = id
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}
	return minID, cs.m[minID], true
}

// readPresetRsp tracks an in-progress multi-preset read reply sequence.
type readPresetRsp struct {
	// Next preset to send.
	pending *preset

	// Remaining count of the original request.
	num uint8
}

// session is the per-peer Control Point state.  A bonded peer's session
// survives disconnection so queued preset-changed events are delivered after
// reconnection.
type session struct {
	conn gatt.Conn

	encrypted  bool
	mtuValid   bool
	indEnabled bool
	nfyEnabled bool

	// busy is set while a Control Point transmission is outstanding; it is
	// cleared by the transmit completion callback or a synchronous failure.
	busy bool

	pending *changeSet
	readRsp readPresetRsp

	// Single-slot transmit scheduler bound 1:1 to the session.
	txWork *task.Work
}

func (sess *session) subscribed() bool {
	return sess.indEnabled || sess.nfyEnabled
}

func (sess *session) readPending() bool {
	return sess.readRsp.pending != nil && sess.readRsp.num > 0
}

func (sess *session) changePending() bool {
	return sess.pending.len() > 0
}

// dropLinkState clears everything derived from the live link while keeping
// the pending change queue, so state survives a bonded peer's disconnect.
func (sess *session) dropLinkState() {
	sess.encrypted = false
	sess.mtuValid = false
	sess.indEnabled = false
	sess.nfyEnabled = false
	sess.busy = false
	sess.readRsp = readPresetRsp{}
}
