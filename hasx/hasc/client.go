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

// Package hasc implements the client role of the Hearing Access Service:
// characteristic discovery, preset reads and Control Point commands against a
// remote server.
package hasc

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/hearsys/hasmgr/hasx/gatt"
	"github.com/hearsys/hasmgr/hasx/hasp"
	"github.com/hearsys/hasmgr/hasx/hxutil"
	"github.com/hearsys/hasmgr/hasx/task"
)

// Preset is a client-side view of one remote preset record.
type Preset struct {
	ID         uint8
	Properties hasp.Properties
	Name       string
}

// ChangeEvent is a decoded preset-changed indication.
type ChangeEvent struct {
	ChangeID hasp.ChangeID
	IsLast   bool

	// ID of the affected preset (deleted/available/unavailable changes).
	ID uint8

	// Generic carries the full record for generic-update changes; PrevID is
	// the id of the visible preset preceding it, or 0.
	Generic *Preset
	PrevID  uint8
}

// Handlers are the application callbacks for unsolicited server events.  They
// run on the client's event loop, so they must not call back into the client
// synchronously.
type Handlers struct {
	// ActivePreset runs when the server's active preset index changes.  It
	// does not repeat unchanged values.
	ActivePreset func(id uint8)

	// PresetChanged runs for every preset-changed event the server pushes.
	PresetChanged func(ev ChangeEvent)
}

// discovery FSM states
type discState int

const (
	discIdle discState = iota
	discFeaturesChr
	discFeaturesSub
	discFeaturesRead
	discCPChr
	discCPSub
	discActiveChr
	discActiveRead
	discActiveSub
	discDone
)

// op kinds for the single in-flight Control Point procedure
type opKind int

const (
	opNone opKind = iota
	opRead
	opWrite
)

type clientOp struct {
	kind opKind

	// Read-sequence state.
	readFn   func(p Preset, isLast bool) bool
	expectID uint8
	exact    bool
	matched  bool

	doneCh chan error
}

// Client drives the Hearing Access client procedures for one peer
// connection.  Public methods are synchronous and must not be called from the
// Handlers callbacks.  A single Control Point procedure may be in flight at a
// time.
type Client struct {
	central  gatt.Central
	conn     gatt.Conn
	handlers Handlers
	tq       *task.Queue

	state  discState
	discCh chan error

	chrFeatures *gatt.Characteristic
	chrCP       *gatt.Characteristic
	chrActive   *gatt.Characteristic

	features    hasp.Features
	featuresSet bool
	activeID    uint8
	activeSet   bool

	op *clientOp
}

func NewClient(central gatt.Central, conn gatt.Conn, handlers Handlers) (*Client, error) {
	if central == nil || conn == nil {
		return nil, hxutil.NewInvalidArgError("hasc: nil transport")
	}

	c := &Client{
		central:  central,
		conn:     conn,
		handlers: handlers,
		tq:       task.NewQueue("has-client", 32),
	}

	return c, nil
}

func (c *Client) Close() error {
	return c.tq.Stop(fmt.Errorf("client closed"))
}

/////////////////////////////////////////////////////////////////////////////
// Discovery

// Discover locates the service characteristics, subscribes to them and primes
// the feature and active-preset caches.  It blocks until the whole chain
// completes.
func (c *Client) Discover() error {
	ch := make(chan error, 1)

	err := c.tq.Run(func() error {
		if c.state == discDone {
			return hxutil.NewAlreadyError("hasc: already discovered")
		}
		if c.state != discIdle {
			return hxutil.NewBusyError("hasc: discovery in progress")
		}

		c.discCh = ch
		c.discStep(discFeaturesChr)
		return nil
	})
	if err != nil {
		return err
	}

	return <-ch
}

// discStep advances the discovery chain.  Runs on the event loop.
func (c *Client) discStep(next discState) {
	c.state = next

	var err error

	switch next {
	case discFeaturesChr:
		err = c.central.DiscoverCharacteristic(c.conn, gatt.ChrHearingAidFeatures,
			func(chr *gatt.Characteristic, err error) {
				c.discContinue(err, func() {
					c.chrFeatures = chr
					if chr.Properties&gatt.ChrPropNotify != 0 {
						c.discStep(discFeaturesSub)
					} else {
						c.discStep(discFeaturesRead)
					}
				})
			})

	case discFeaturesSub:
		sub := &gatt.Subscription{
			ValueHandle: c.chrFeatures.ValueHandle,
			Value:       gatt.CCCNotify,
			Notify:      c.rxFeatures,
		}
		err = c.central.Subscribe(c.conn, sub, func(err error) {
			c.discContinue(err, func() { c.discStep(discFeaturesRead) })
		})

	case discFeaturesRead:
		err = c.central.ReadCharacteristic(c.conn, c.chrFeatures.ValueHandle,
			func(value []byte, err error) {
				c.discContinue(err, func() {
					c.rxFeatures(value)
					c.discStep(discCPChr)
				})
			})

	case discCPChr:
		err = c.central.DiscoverCharacteristic(c.conn, gatt.ChrPresetControlPoint,
			func(chr *gatt.Characteristic, err error) {
				c.discContinue(err, func() {
					c.chrCP = chr
					c.discStep(discCPSub)
				})
			})

	case discCPSub:
		// Preset read, rename and set-active-by-id are served over
		// indications only, so subscribe for indications whenever the server
		// offers them.  Notifications are a degraded fallback.
		ccc := gatt.CCCIndicate
		if c.chrCP.Properties&gatt.ChrPropIndicate == 0 {
			ccc = gatt.CCCNotify
		}
		sub := &gatt.Subscription{
			ValueHandle: c.chrCP.ValueHandle,
			Value:       ccc,
			Notify:      c.rxControlPoint,
		}
		err = c.central.Subscribe(c.conn, sub, func(err error) {
			c.discContinue(err, func() { c.discStep(discActiveChr) })
		})

	case discActiveChr:
		err = c.central.DiscoverCharacteristic(c.conn, gatt.ChrActivePresetIndex,
			func(chr *gatt.Characteristic, err error) {
				c.discContinue(err, func() {
					c.chrActive = chr
					c.discStep(discActiveRead)
				})
			})

	case discActiveRead:
		err = c.central.ReadCharacteristic(c.conn, c.chrActive.ValueHandle,
			func(value []byte, err error) {
				c.discContinue(err, func() {
					c.rxActivePreset(value)
					c.discStep(discActiveSub)
				})
			})

	case discActiveSub:
		sub := &gatt.Subscription{
			ValueHandle: c.chrActive.ValueHandle,
			Value:       gatt.CCCNotify,
			Notify:      c.rxActivePreset,
		}
		err = c.central.Subscribe(c.conn, sub, func(err error) {
			c.discContinue(err, func() { c.discStep(discDone) })
		})

	case discDone:
		log.Debugf("hasc: discovery complete; features 0x%02x active %d",
			uint8(c.features), c.activeID)
		c.discFinish(nil)
	}

	if err != nil {
		c.discFinish(err)
	}
}

// discContinue hops a procedure completion back onto the event loop and
// either aborts the chain or runs the next step.
func (c *Client) discContinue(err error, next func()) {
	c.tq.Enqueue(func() error {
		if err != nil {
			c.discFinish(err)
		} else {
			next()
		}
		return nil
	})
}

func (c *Client) discFinish(err error) {
	if err != nil {
		log.Debugf("hasc: discovery failed: %s", err)
		c.state = discIdle
	}
	if c.discCh != nil {
		c.discCh <- err
		c.discCh = nil
	}
}

/////////////////////////////////////////////////////////////////////////////
// Incoming values

func (c *Client) rxFeatures(value []byte) {
	c.tq.Enqueue(func() error {
		if len(value) < 1 {
			log.Debugf("hasc: discarding empty features value")
			return nil
		}
		c.features = hasp.Features(value[0])
		c.featuresSet = true
		return nil
	})
}

func (c *Client) rxActivePreset(value []byte) {
	c.tq.Enqueue(func() error {
		if len(value) < 1 {
			log.Debugf("hasc: discarding empty active preset value")
			return nil
		}

		id := value[0]
		if c.activeSet && id == c.activeID {
			return nil
		}
		c.activeID = id
		c.activeSet = true

		if c.state == discDone && c.handlers.ActivePreset != nil {
			c.handlers.ActivePreset(id)
		}
		return nil
	})
}

func (c *Client) rxControlPoint(value []byte) {
	c.tq.Enqueue(func() error {
		op, body, err := hasp.SplitOp(value)
		if err != nil {
			log.Debugf("hasc: discarding empty control point value")
			return nil
		}

		switch op {
		case hasp.OpReadPresetRsp:
			c.rxReadPresetRsp(body)
		case hasp.OpPresetChanged:
			c.rxPresetChanged(body)
		default:
			log.Debugf("hasc: discarding unexpected control point op 0x%02x",
				uint8(op))
		}
		return nil
	})
}

func (c *Client) rxReadPresetRsp(body []byte) {
	rsp, err := hasp.ParseReadPresetRsp(body)
	if err != nil {
		log.Debugf("hasc: %s", err)
		return
	}

	if c.op == nil || c.op.kind != opRead {
		log.Debugf("hasc: unsolicited read preset response for %d", rsp.ID)
		return
	}

	p := Preset{
		ID:         rsp.ID,
		Properties: rsp.Properties,
		Name:       rsp.Name,
	}

	cont := true
	if c.op.exact && rsp.ID != c.op.expectID {
		// The server skipped past the requested id; report absence once the
		// sequence ends.
	} else {
		c.op.matched = true
		if c.op.readFn != nil {
			cont = c.op.readFn(p, rsp.IsLast)
		}
	}

	if rsp.IsLast || !cont {
		var opErr error
		if !c.op.matched {
			opErr = hxutil.FmtNotFoundError("hasc: no preset %d", c.op.expectID)
		}
		c.opFinish(opErr)
	}
}

func (c *Client) rxPresetChanged(body []byte) {
	pc, err := hasp.ParsePresetChanged(body)
	if err != nil {
		log.Debugf("hasc: %s", err)
		return
	}

	ev := ChangeEvent{
		ChangeID: pc.ChangeID,
		IsLast:   pc.IsLast,
		ID:       pc.ID,
	}
	if pc.Update != nil {
		ev.PrevID = pc.Update.PrevID
		ev.Generic = &Preset{
			ID:         pc.Update.ID,
			Properties: pc.Update.Properties,
			Name:       pc.Update.Name,
		}
	}

	if c.handlers.PresetChanged != nil {
		c.handlers.PresetChanged(ev)
	}
}

/////////////////////////////////////////////////////////////////////////////
// Control Point procedures

// opStart claims the in-flight slot and writes the frame.  Runs on the event
// loop.
func (c *Client) opStart(op *clientOp, frame []byte) error {
	if c.state != discDone {
		return hxutil.NewNotConnectedError("hasc: not discovered")
	}
	if c.op != nil {
		return hxutil.NewBusyError("hasc: operation in progress")
	}

	c.op = op

	err := c.central.WriteCharacteristic(c.conn, c.chrCP.ValueHandle, frame,
		func(err error) {
			c.tq.Enqueue(func() error {
				c.opWriteDone(op, err)
				return nil
			})
		})
	if err != nil {
		c.op = nil
		return err
	}

	return nil
}

func (c *Client) opWriteDone(op *clientOp, err error) {
	if c.op != op {
		return
	}

	if err != nil {
		c.opFinish(mapAttError(err))
		return
	}

	// Write commands complete with the write response; read sequences wait
	// for the indications.
	if op.kind == opWrite {
		c.opFinish(nil)
	}
}

func (c *Client) opFinish(err error) {
	op := c.op
	c.op = nil
	op.doneCh <- err
}

// opRun submits the operation from a public method and blocks on completion.
func (c *Client) opRun(op *clientOp, frame []byte) error {
	op.doneCh = make(chan error, 1)

	if err := c.tq.Run(func() error {
		return c.opStart(op, frame)
	}); err != nil {
		return err
	}

	return <-op.doneCh
}

// mapAttError folds error-response codes into the client error types.
func mapAttError(err error) error {
	switch gatt.ToAttError(err) {
	case gatt.AttErrOutOfRange:
		return hxutil.NewNotFoundError("hasc: no such preset")
	case hasp.ErrWriteNameNotAllowed:
		return hxutil.NewNotAllowedError("hasc: preset name not writable")
	case hasp.ErrPresetSyncNotSupp:
		return hxutil.NewNotSupportedError("hasc: preset sync not supported")
	case hasp.ErrOperationNotPossible:
		return hxutil.NewNotAllowedError("hasc: operation not possible")
	case hasp.ErrInvalidParamLen, hasp.ErrInvalidOp:
		return hxutil.NewInvalidArgError("hasc: request rejected")
	default:
		return err
	}
}

/////////////////////////////////////////////////////////////////////////////
// Public API

// Features returns the cached Hearing Aid Features value.
func (c *Client) Features() (hasp.Features, error) {
	var f hasp.Features
	err := c.tq.Run(func() error {
		if !c.featuresSet {
			return hxutil.NewNotConnectedError("hasc: not discovered")
		}
		f = c.features
		return nil
	})
	return f, err
}

// ActivePreset returns the cached active preset index.
func (c *Client) ActivePreset() (uint8, error) {
	var id uint8
	err := c.tq.Run(func() error {
		if !c.activeSet {
			return hxutil.NewNotConnectedError("hasc: not discovered")
		}
		id = c.activeID
		return nil
	})
	return id, err
}

// PresetRead fetches the preset record with exactly the given id.
func (c *Client) PresetRead(id uint8) (*Preset, error) {
	var out *Preset

	op := &clientOp{
		kind:     opRead,
		expectID: id,
		exact:    true,
		readFn: func(p Preset, isLast bool) bool {
			out = &p
			return false
		},
	}
	req := hasp.ReadPresetReq{StartID: id, NumPresets: 1}

	if err := c.opRun(op, req.Marshal()); err != nil {
		return nil, err
	}
	return out, nil
}

// PresetReadMultiple walks up to num preset records starting at startID,
// calling fn for each.  fn returns whether the walk should continue.
func (c *Client) PresetReadMultiple(startID, num uint8,
	fn func(p Preset, isLast bool) bool) error {

	if num == 0 {
		return hxutil.NewInvalidArgError("hasc: zero preset count")
	}

	op := &clientOp{
		kind:   opRead,
		readFn: fn,
	}
	req := hasp.ReadPresetReq{StartID: startID, NumPresets: num}

	return c.opRun(op, req.Marshal())
}

// syncOp picks the synchronized opcode variant when requested, verifying the
// server advertises support first.
func (c *Client) syncOp(plain, synced hasp.Op, sync bool) (hasp.Op, error) {
	if !sync {
		return plain, nil
	}

	f, err := c.Features()
	if err != nil {
		return 0, err
	}
	if !f.SyncSupported() {
		return 0, hxutil.NewNotSupportedError(
			"hasc: server does not support preset synchronization")
	}
	return synced, nil
}

// ActiveSet requests activation of the given preset.  With sync set, the
// server is asked to relay the change to the other member of the binaural
// set.
func (c *Client) ActiveSet(id uint8, sync bool) error {
	op, err := c.syncOp(hasp.OpSetActivePreset, hasp.OpSetActivePresetSync, sync)
	if err != nil {
		return err
	}

	req := hasp.SetActivePresetReq{ID: id}
	return c.opRun(&clientOp{kind: opWrite}, req.Marshal(op))
}

// ActiveSetNext requests activation of the next available preset, wrapping
// around past the end of the list.
func (c *Client) ActiveSetNext(sync bool) error {
	op, err := c.syncOp(hasp.OpSetNextPreset, hasp.OpSetNextPresetSync, sync)
	if err != nil {
		return err
	}
	return c.opRun(&clientOp{kind: opWrite}, hasp.MarshalOp(op))
}

// ActiveSetPrev requests activation of the previous available preset,
// wrapping around past the start of the list.
func (c *Client) ActiveSetPrev(sync bool) error {
	op, err := c.syncOp(hasp.OpSetPrevPreset, hasp.OpSetPrevPresetSync, sync)
	if err != nil {
		return err
	}
	return c.opRun(&clientOp{kind: opWrite}, hasp.MarshalOp(op))
}

// NameSet renames a writable preset on the server.
func (c *Client) NameSet(id uint8, name string) error {
	if !hasp.ValidNameLen(len(name)) {
		return hxutil.FmtInvalidArgError("hasc: bad name length %d", len(name))
	}

	req := hasp.WritePresetNameReq{ID: id, Name: name}
	return c.opRun(&clientOp{kind: opWrite}, req.Marshal())
}
