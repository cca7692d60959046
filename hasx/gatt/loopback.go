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

package gatt

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Attribute handles of the in-process service table.
const (
	LoopbackHandleFeatures uint16 = 0x0003
	LoopbackHandleCP       uint16 = 0x0005
	LoopbackHandleActive   uint16 = 0x0007
)

const loopbackDfltMtu = 64

// LoopbackConfig tunes the characteristic table the loopback exposes.
type LoopbackConfig struct {
	// CPNotifyOnly strips the indicate property from the preset control
	// point, leaving write + notify.  Simulates a degraded server whose
	// clients must fall back to notifications.
	CPNotifyOnly bool
}

// peerState is the per-peer attribute state.  For bonded peers it survives
// disconnection, mirroring CCC persistence in a bonded link.
type peerState struct {
	bonded bool
	ccc    map[uuid.UUID]CCC
	subs   map[uuid.UUID]*Subscription
}

// LoopbackConn is one simulated peer link.
type LoopbackConn struct {
	lb *Loopback
	id string

	mtx       sync.RWMutex
	bonded    bool
	connected bool
	mtu       int
	sec       SecLevel

	// Ordered delivery queue toward the peer's client role.
	deliverCh chan func()
	doneCh    chan struct{}
}

func (c *LoopbackConn) ID() string {
	return c.id
}

func (c *LoopbackConn) IsConnected() bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.connected
}

func (c *LoopbackConn) IsBonded() bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.bonded
}

func (c *LoopbackConn) MTU() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.mtu
}

func (c *LoopbackConn) SecLevel() SecLevel {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.sec
}

// deliver queues fn onto the connection's delivery goroutine, preserving
// submission order.  Returns false once the link is down.  The read lock is
// held across the send so a concurrent Disconnect cannot close the channel
// out from under a blocked sender.
func (c *LoopbackConn) deliver(fn func()) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if !c.connected {
		return false
	}
	c.deliverCh <- fn
	return true
}

func (c *LoopbackConn) deliverLoop(ch chan func(), done chan struct{}) {
	for fn := range ch {
		fn()
	}
	close(done)
}

// Loopback is an in-process attribute transport connecting a server-role
// Service to client-role procedures, for tools and tests that run both ends
// in one process.  It implements Bearer and Central.
type Loopback struct {
	cfg LoopbackConfig
	svc Service

	mtx   sync.Mutex
	conns map[string]*LoopbackConn
	peers map[string]*peerState
}

func NewLoopback(cfg LoopbackConfig) *Loopback {
	return &Loopback{
		cfg:   cfg,
		conns: map[string]*LoopbackConn{},
		peers: map[string]*peerState{},
	}
}

// Attach binds the server-role event sink.  Must precede any Connect.
func (lb *Loopback) Attach(svc Service) {
	lb.svc = svc
}

func (lb *Loopback) chrTable() []Characteristic {
	cpProps := uint8(ChrPropWrite | ChrPropIndicate | ChrPropNotify)
	if lb.cfg.CPNotifyOnly {
		cpProps &^= ChrPropIndicate
	}

	return []Characteristic{
		{UUID: ChrHearingAidFeatures, ValueHandle: LoopbackHandleFeatures,
			Properties: ChrPropRead | ChrPropNotify},
		{UUID: ChrPresetControlPoint, ValueHandle: LoopbackHandleCP,
			Properties: cpProps},
		{UUID: ChrActivePresetIndex, ValueHandle: LoopbackHandleActive,
			Properties: ChrPropRead | ChrPropNotify},
	}
}

func (lb *Loopback) chrByUUID(u uuid.UUID) *Characteristic {
	for _, chr := range lb.chrTable() {
		if chr.UUID == u {
			c := chr
			return &c
		}
	}
	return nil
}

func (lb *Loopback) chrByHandle(h uint16) *Characteristic {
	for _, chr := range lb.chrTable() {
		if chr.ValueHandle == h {
			c := chr
			return &c
		}
	}
	return nil
}

/////////////////////////////////////////////////////////////////////////////
// Link management

// Connect establishes a simulated link.  A bonded peer reconnecting under the
// same id gets its stored CCC state and subscriptions back.
func (lb *Loopback) Connect(id string, bonded bool) (*LoopbackConn, error) {
	lb.mtx.Lock()

	if lb.svc == nil {
		lb.mtx.Unlock()
		return nil, fmt.Errorf("loopback: no service attached")
	}
	if lb.conns[id] != nil {
		lb.mtx.Unlock()
		return nil, fmt.Errorf("loopback: %s already connected", id)
	}

	peer := lb.peers[id]
	if peer == nil || !peer.bonded {
		peer = &peerState{
			bonded: bonded,
			ccc:    map[uuid.UUID]CCC{},
			subs:   map[uuid.UUID]*Subscription{},
		}
		lb.peers[id] = peer
	}
	peer.bonded = bonded

	conn := &LoopbackConn{
		lb:        lb,
		id:        id,
		bonded:    bonded,
		connected: true,
		mtu:       loopbackDfltMtu,
		sec:       SecLevelNone,
		deliverCh: make(chan func(), 64),
		doneCh:    make(chan struct{}),
	}
	go conn.deliverLoop(conn.deliverCh, conn.doneCh)

	lb.conns[id] = conn
	lb.mtx.Unlock()

	log.Debugf("loopback: %s connected (bonded=%v)", id, bonded)
	lb.svc.Connected(conn)

	return conn, nil
}

// Disconnect tears the link down and waits for queued deliveries to drain.
// Bonded peer state is retained for the next Connect under the same id.
func (lb *Loopback) Disconnect(conn *LoopbackConn) {
	lb.mtx.Lock()
	if lb.conns[conn.id] != conn {
		lb.mtx.Unlock()
		return
	}
	delete(lb.conns, conn.id)
	if !conn.bonded {
		delete(lb.peers, conn.id)
	}
	lb.mtx.Unlock()

	conn.mtx.Lock()
	conn.connected = false
	conn.mtx.Unlock()

	close(conn.deliverCh)
	<-conn.doneCh

	log.Debugf("loopback: %s disconnected", conn.id)
	lb.svc.Disconnected(conn)
}

// ForgetBond drops a peer's persisted state, simulating bond removal.
func (lb *Loopback) ForgetBond(id string) {
	lb.mtx.Lock()
	defer lb.mtx.Unlock()
	delete(lb.peers, id)
}

// Encrypt raises the link to the encrypted security level.
func (lb *Loopback) Encrypt(conn *LoopbackConn) {
	conn.mtx.Lock()
	conn.sec = SecLevelEncrypted
	conn.mtx.Unlock()

	lb.svc.SecurityChanged(conn, SecLevelEncrypted)
}

// SetMTU renegotiates the simulated ATT MTU.
func (lb *Loopback) SetMTU(conn *LoopbackConn, mtu int) {
	conn.mtx.Lock()
	conn.mtu = mtu
	conn.mtx.Unlock()

	lb.svc.MTUUpdated(conn, mtu)
}

func (lb *Loopback) peerFor(c Conn) *peerState {
	lb.mtx.Lock()
	defer lb.mtx.Unlock()
	return lb.peers[c.ID()]
}

/////////////////////////////////////////////////////////////////////////////
// Bearer (server role)

func (lb *Loopback) push(c Conn, chr uuid.UUID, value []byte, ack bool,
	done func(err error)) error {

	conn, ok := c.(*LoopbackConn)
	if !ok || !conn.IsConnected() {
		return fmt.Errorf("loopback: peer not connected")
	}

	peer := lb.peerFor(c)
	if peer == nil {
		return fmt.Errorf("loopback: unknown peer %s", c.ID())
	}

	buf := append([]byte(nil), value...)
	delivered := conn.deliver(func() {
		lb.mtx.Lock()
		sub := peer.subs[chr]
		lb.mtx.Unlock()

		if sub != nil && sub.Notify != nil {
			sub.Notify(buf)
		} else if ack {
			// An indication with nobody listening still completes; the
			// simulated peer acked at the ATT layer.
			log.Debugf("loopback: dropping value for %s on %s", chr, c.ID())
		}
		if done != nil {
			done(nil)
		}
	})
	if !delivered {
		return fmt.Errorf("loopback: peer not connected")
	}

	return nil
}

func (lb *Loopback) Indicate(c Conn, chr uuid.UUID, value []byte,
	done func(err error)) error {

	if !lb.IsSubscribed(c, chr, CCCIndicate) {
		return fmt.Errorf("loopback: %s not subscribed for indications", c.ID())
	}
	return lb.push(c, chr, value, true, done)
}

func (lb *Loopback) Notify(c Conn, chr uuid.UUID, value []byte,
	done func(err error)) error {

	if !lb.IsSubscribed(c, chr, CCCNotify) {
		return fmt.Errorf("loopback: %s not subscribed for notifications",
			c.ID())
	}
	return lb.push(c, chr, value, false, done)
}

func (lb *Loopback) NotifySubscribed(chr uuid.UUID, value []byte) {
	lb.mtx.Lock()
	var conns []*LoopbackConn
	for _, conn := range lb.conns {
		peer := lb.peers[conn.id]
		if peer != nil && peer.ccc[chr]&CCCNotify != 0 {
			conns = append(conns, conn)
		}
	}
	lb.mtx.Unlock()

	for _, conn := range conns {
		lb.push(conn, chr, value, false, nil)
	}
}

func (lb *Loopback) IsSubscribed(c Conn, chr uuid.UUID, value CCC) bool {
	lb.mtx.Lock()
	defer lb.mtx.Unlock()

	peer := lb.peers[c.ID()]
	return peer != nil && peer.ccc[chr]&value != 0
}

/////////////////////////////////////////////////////////////////////////////
// Central (client role)

// complete hands a procedure result to the peer's delivery queue so the
// callback never runs before the initiating call returns.
func (lb *Loopback) complete(c Conn, fn func()) error {
	conn, ok := c.(*LoopbackConn)
	if !ok {
		return fmt.Errorf("loopback: foreign conn")
	}
	if !conn.deliver(fn) {
		return fmt.Errorf("loopback: peer not connected")
	}
	return nil
}

func (lb *Loopback) DiscoverCharacteristic(c Conn, u uuid.UUID,
	f func(*Characteristic, error)) error {

	return lb.complete(c, func() {
		chr := lb.chrByUUID(u)
		if chr == nil {
			f(nil, fmt.Errorf("loopback: characteristic %s not found", u))
			return
		}
		f(chr, nil)
	})
}

func (lb *Loopback) ReadCharacteristic(c Conn, handle uint16,
	f func(value []byte, err error)) error {

	return lb.complete(c, func() {
		chr := lb.chrByHandle(handle)
		if chr == nil {
			f(nil, AttErrUnlikely)
			return
		}
		if c.SecLevel() < SecLevelEncrypted {
			f(nil, AttErrInsufficientEncrypt)
			return
		}
		f(lb.svc.Read(c, chr.UUID))
	})
}

func (lb *Loopback) WriteCharacteristic(c Conn, handle uint16, value []byte,
	f func(err error)) error {

	buf := append([]byte(nil), value...)
	return lb.complete(c, func() {
		chr := lb.chrByHandle(handle)
		if chr == nil {
			f(AttErrUnlikely)
			return
		}
		if chr.Properties&ChrPropWrite == 0 {
			f(AttErrUnlikely)
			return
		}
		if c.SecLevel() < SecLevelEncrypted {
			f(AttErrInsufficientEncrypt)
			return
		}
		f(lb.svc.Write(c, chr.UUID, buf))
	})
}

func (lb *Loopback) Subscribe(c Conn, sub *Subscription, f func(err error)) error {
	return lb.complete(c, func() {
		chr := lb.chrByHandle(sub.ValueHandle)
		if chr == nil {
			f(AttErrUnlikely)
			return
		}
		if c.SecLevel() < SecLevelEncrypted {
			f(AttErrInsufficientEncrypt)
			return
		}

		switch sub.Value {
		case CCCNotify:
			if chr.Properties&ChrPropNotify == 0 {
				f(AttErrValueNotAllowed)
				return
			}
		case CCCIndicate:
			if chr.Properties&ChrPropIndicate == 0 {
				f(AttErrValueNotAllowed)
				return
			}
		default:
			f(AttErrValueNotAllowed)
			return
		}

		if err := lb.svc.CCCChanged(c, chr.UUID, sub.Value); err != nil {
			f(err)
			return
		}

		lb.mtx.Lock()
		if peer := lb.peers[c.ID()]; peer != nil {
			peer.ccc[chr.UUID] = sub.Value
			peer.subs[chr.UUID] = sub
		}
		lb.mtx.Unlock()

		f(nil)
	})
}
