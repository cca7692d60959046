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

// Package has implements the server role of the Hearing Access Service: the
// preset store, the Preset Control Point engine and the per-peer transmit
// scheduler.
package has

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hearsys/hasmgr/hasx/gatt"
	"github.com/hearsys/hasmgr/hasx/hasp"
	"github.com/hearsys/hasmgr/hasx/hxutil"
	"github.com/hearsys/hasmgr/hasx/task"
)

// Short delay before draining Control Point output, allowing back-to-back
// changes to coalesce into a single transmission.
const cpTxDelay = 10 * time.Millisecond

const dfltMaxClients = 2

type Config struct {
	Type hasp.HearingAidType

	// PresetSync enables the synchronized opcode variants (binaural sets
	// only).
	PresetSync bool

	// IndependentPresets indicates the two set members do not expose
	// identical preset records.
	IndependentPresets bool

	// MaxClients bounds simultaneous per-peer sessions (connected or
	// bonded-but-disconnected).  Zero selects the default of 2.
	MaxClients int

	// PresetCapacity bounds the preset list.  Zero sizes it to the supplied
	// record count.
	PresetCapacity int
}

// Ops are the application-supplied preset callbacks.
type Ops struct {
	// ActiveSet decides whether the given preset may become active.  A
	// non-nil return rejects the request; on acceptance the server applies
	// the change itself.  sync asks the application to relay the change to
	// the other member of a binaural set.
	//
	// Runs on the server's event loop, so it must not call back into the
	// Server synchronously.
	ActiveSet func(id uint8, sync bool) error

	// NameChanged, if set, runs after a preset is renamed by either side.
	// Same calling context as ActiveSet.
	NameChanged func(id uint8, name string)
}

// Server is one Hearing Access Service server instance.  All state is
// confined to the server's task queue: transport callbacks and public API
// calls are serialized onto it.
type Server struct {
	cfg    Config
	ops    Ops
	bearer gatt.Bearer
	tq     *task.Queue

	store    *presetStore
	features hasp.Features
	activeID uint8

	// Sessions keyed by connection id.
	clients map[string]*session
}

// PresetInfo is a read-only snapshot of one preset record.
type PresetInfo struct {
	ID         uint8
	Properties hasp.Properties
	Name       string
	Hidden     bool
	Active     bool
}

func NewServer(cfg Config, bearer gatt.Bearer, ops Ops, presets []PresetParam) (*Server, error) {
	if bearer == nil {
		return nil, hxutil.NewInvalidArgError("has: nil bearer")
	}
	if ops.ActiveSet == nil {
		return nil, hxutil.NewInvalidArgError("has: missing ActiveSet op")
	}

	if cfg.MaxClients <= 0 {
		cfg.MaxClients = dfltMaxClients
	}
	if cfg.PresetCapacity <= 0 {
		cfg.PresetCapacity = len(presets)
	}

	store, writable := newPresetStore(presets, cfg.PresetCapacity)

	features := hasp.Features(cfg.Type) & hasp.FeatTypeMask
	if cfg.PresetSync {
		features |= hasp.FeatPresetSync
	}
	if cfg.IndependentPresets {
		features |= hasp.FeatIndependentPresets
	}
	features |= hasp.FeatDynamicPresets
	if writable {
		features |= hasp.FeatWritablePresets
	}

	s := &Server{
		cfg:      cfg,
		ops:      ops,
		bearer:   bearer,
		tq:       task.NewQueue("has-server", 32),
		store:    store,
		features: features,
		clients:  map[string]*session{},
	}

	log.Debugf("has: registered %d presets, features 0x%02x",
		len(store.presets), uint8(features))

	return s, nil
}

// Close stops the server's event processing.  Pending per-peer output is
// discarded.
func (s *Server) Close() error {
	s.tq.Run(func() error {
		for _, sess := range s.clients {
			sess.txWork.Cancel()
		}
		return nil
	})
	return s.tq.Stop(fmt.Errorf("server closed"))
}

/////////////////////////////////////////////////////////////////////////////
// Session table

func (s *Server) sessionFind(c gatt.Conn) *session {
	return s.clients[c.ID()]
}

// sessionGet returns the peer's session, allocating one if the table has
// room.
func (s *Server) sessionGet(c gatt.Conn) *session {
	if sess := s.clients[c.ID()]; sess != nil {
		sess.conn = c
		return sess
	}

	if len(s.clients) >= s.cfg.MaxClients {
		return nil
	}

	sess := &session{
		conn:    c,
		pending: newChangeSet(),
	}
	sess.txWork = s.tq.NewWork(func() {
		s.processTx(sess)
	})
	s.clients[c.ID()] = sess

	log.Debugf("has: new session %s", c.ID())

	return sess
}

func (s *Server) sessionFree(sess *session) {
	log.Debugf("has: free session %s", sess.conn.ID())

	for _, p := range s.store.presets {
		p.clearNameAware(sess.conn.ID())
	}

	// The session slot can be reused after this, so make sure no canceled
	// transmit work is still in flight.
	sess.txWork.CancelSync()

	delete(s.clients, sess.conn.ID())
}

// Forget drops a bonded peer's retained session, e.g. after unbonding.
func (s *Server) Forget(connID string) error {
	return s.tq.Run(func() error {
		sess := s.clients[connID]
		if sess == nil {
			return hxutil.FmtNotFoundError("has: no session for %s", connID)
		}
		s.sessionFree(sess)
		return nil
	})
}

/////////////////////////////////////////////////////////////////////////////
// Connection lifecycle (gatt.Service)

func (s *Server) Connected(c gatt.Conn) {
	s.tq.Run(func() error {
		if !c.IsBonded() {
			return nil
		}

		sess := s.sessionGet(c)
		if sess == nil {
			log.Errorf("has: out of session slots for %s", c.ID())
			return nil
		}

		// Assume the bonded peer's cached state is stale: mark every visible
		// preset pending as a generic update.  Transmission is deferred until
		// the encryption and CCC state is known (security changed event).
		for _, p := range s.store.presets {
			if p.hidden {
				continue
			}
			sess.pending.set(p.id, hasp.ChangeGenericUpdate)
		}
		return nil
	})
}

func (s *Server) Disconnected(c gatt.Conn) {
	s.tq.Run(func() error {
		sess := s.sessionFind(c)
		if sess == nil {
			return nil
		}

		if !c.IsBonded() {
			s.sessionFree(sess)
			return nil
		}

		// Keep the pending change queue for the bonded peer; name awareness
		// does not survive the link.
		for _, p := range s.store.presets {
			p.clearNameAware(c.ID())
		}
		sess.txWork.CancelSync()
		sess.dropLinkState()
		return nil
	})
}

func (s *Server) SecurityChanged(c gatt.Conn, level gatt.SecLevel) {
	s.tq.Run(func() error {
		sess := s.sessionGet(c)
		if sess == nil {
			log.Errorf("has: out of session slots for %s", c.ID())
			return nil
		}

		if level < gatt.SecLevelEncrypted || sess.encrypted {
			return nil
		}
		sess.encrypted = true

		if !sess.mtuValid && c.MTU() >= hasp.AttMtuMin {
			sess.mtuValid = true
		}

		// The peer's stored CCC state is only authoritative now.
		if s.bearer.IsSubscribed(c, gatt.ChrPresetControlPoint, gatt.CCCIndicate) {
			sess.indEnabled = true
		}
		if s.bearer.IsSubscribed(c, gatt.ChrPresetControlPoint, gatt.CCCNotify) {
			sess.nfyEnabled = true
		}

		if !sess.subscribed() {
			// Unmark what Connected queued; this peer does not listen.
			sess.pending.clearAll()
		} else if sess.changePending() && sess.mtuValid {
			s.scheduleTx(sess, cpTxDelay)
		}
		return nil
	})
}

func (s *Server) MTUUpdated(c gatt.Conn, mtu int) {
	s.tq.Run(func() error {
		sess := s.sessionFind(c)
		if sess == nil {
			return nil
		}

		// An MTU below 49 cannot carry a read-preset response with a
		// full-length name; suppress Control Point traffic until renegotiated.
		if mtu < hasp.AttMtuMin {
			return nil
		}

		if !sess.mtuValid {
			sess.mtuValid = true
			if sess.changePending() && sess.encrypted && sess.indEnabled {
				s.scheduleTx(sess, cpTxDelay)
			}
		}
		return nil
	})
}

/////////////////////////////////////////////////////////////////////////////
// Attribute access (gatt.Service)

func (s *Server) Read(c gatt.Conn, chr uuid.UUID) ([]byte, error) {
	var value []byte
	err := s.tq.Run(func() error {
		switch chr {
		case gatt.ChrHearingAidFeatures:
			value = []byte{byte(s.features)}
		case gatt.ChrActivePresetIndex:
			value = []byte{s.activeID}
		default:
			return gatt.AttErrUnlikely
		}
		return nil
	})
	return value, err
}

func (s *Server) CCCChanged(c gatt.Conn, chr uuid.UUID, value gatt.CCC) error {
	if chr != gatt.ChrPresetControlPoint {
		return nil
	}

	return s.tq.Run(func() error {
		switch value {
		case gatt.CCCNone:
			if sess := s.sessionFind(c); sess != nil {
				sess.indEnabled = false
				sess.nfyEnabled = false
			}
		case gatt.CCCIndicate:
			sess := s.sessionFind(c)
			if sess == nil {
				return gatt.AttErrInsufficientResources
			}
			sess.indEnabled = true
		case gatt.CCCNotify:
			sess := s.sessionFind(c)
			if sess == nil {
				return gatt.AttErrInsufficientResources
			}
			sess.nfyEnabled = true
		default:
			return gatt.AttErrValueNotAllowed
		}
		return nil
	})
}

// Write handles a Preset Control Point write request.  A nil return means
// the request was accepted; otherwise the returned gatt.AttError is the
// error-response status.
func (s *Server) Write(c gatt.Conn, chr uuid.UUID, value []byte) error {
	if chr != gatt.ChrPresetControlPoint {
		return gatt.AttErrUnlikely
	}

	return s.tq.Run(func() error {
		sess := s.sessionFind(c)
		if sess == nil {
			return gatt.AttErrUnlikely
		}

		op, body, err := hasp.SplitOp(value)
		if err != nil {
			return err
		}

		log.Debugf("has: %s op %s (0x%02x)", c.ID(), op, uint8(op))

		switch op {
		case hasp.OpReadPresetReq:
			if !sess.indEnabled {
				return gatt.AttErrCCCImproperConf
			}
			if !sess.mtuValid {
				return gatt.AttErrInsufficientResources
			}
			return s.handleReadPresetReq(sess, body)

		case hasp.OpWritePresetName:
			if !sess.indEnabled {
				return gatt.AttErrCCCImproperConf
			}
			if !sess.mtuValid {
				return gatt.AttErrInsufficientResources
			}
			return s.handleWritePresetName(sess, body)

		case hasp.OpSetActivePreset:
			if !sess.indEnabled {
				return gatt.AttErrCCCImproperConf
			}
			return s.handleSetActivePreset(sess, body, false)

		case hasp.OpSetNextPreset:
			return s.handleSetNextPreset(false)

		case hasp.OpSetPrevPreset:
			return s.handleSetPrevPreset(false)

		case hasp.OpSetActivePresetSync:
			if !s.cfg.PresetSync {
				return hasp.ErrPresetSyncNotSupp
			}
			if !sess.indEnabled {
				return gatt.AttErrCCCImproperConf
			}
			return s.handleSetActivePreset(sess, body, true)

		case hasp.OpSetNextPresetSync:
			if !s.cfg.PresetSync {
				return hasp.ErrPresetSyncNotSupp
			}
			return s.handleSetNextPreset(true)

		case hasp.OpSetPrevPresetSync:
			if !s.cfg.PresetSync {
				return hasp.ErrPresetSyncNotSupp
			}
			return s.handleSetPrevPreset(true)

		default:
			return hasp.ErrInvalidOp
		}
	})
}

/////////////////////////////////////////////////////////////////////////////
// Control Point operations

func (s *Server) handleReadPresetReq(sess *session, body []byte) error {
	req, err := hasp.ParseReadPresetReq(body)
	if err != nil {
		return err
	}

	log.Debugf("has: read presets start_id %d num %d", req.StartID,
		req.NumPresets)

	// Reject if a read sequence is already in progress for this peer.
	if sess.readPending() {
		return hasp.ErrOperationNotPossible
	}

	sess.readRsp.pending = nil
	if req.NumPresets > 0 {
		sess.readRsp.pending = s.store.firstVisible(req.StartID, s.store.lastID)
	}
	if sess.readRsp.pending == nil {
		return gatt.AttErrOutOfRange
	}

	sess.readRsp.num = req.NumPresets
	s.scheduleTx(sess, cpTxDelay)

	return nil
}

func (s *Server) handleWritePresetName(sess *session, body []byte) error {
	req, err := hasp.ParseWritePresetNameReq(body)
	if err != nil {
		return err
	}
	return s.presetNameSet(req.ID, req.Name)
}

// presetNameSet applies a rename and raises the resulting change event.  The
// returned error, if any, is a gatt.AttError.
func (s *Server) presetNameSet(id uint8, name string) error {
	if !hasp.ValidNameLen(len(name)) {
		return hasp.ErrInvalidParamLen
	}

	p := s.store.lookup(id)
	if p == nil {
		return gatt.AttErrOutOfRange
	}

	if !p.props.Writable() {
		return hasp.ErrWriteNameNotAllowed
	}

	p.name = name

	// Hidden presets change silently.
	if !p.hidden {
		p.clearAllNameAware()
		s.presetChanged(p, hasp.ChangeGenericUpdate)
	}

	if s.ops.NameChanged != nil {
		s.ops.NameChanged(id, name)
	}

	return nil
}

// callActiveSet consults the application and, on acceptance, applies the
// change.  Runs on the event loop.
func (s *Server) callActiveSet(id uint8, sync bool) error {
	if err := s.ops.ActiveSet(id, sync); err != nil {
		log.Debugf("has: active set %d rejected: %s", id, err)
		return hasp.ErrOperationNotPossible
	}

	s.applyActive(id)
	return nil
}

// applyActive stores the new active id and notifies the Active Preset Index
// subscribers.  Setting the already-active id is a no-op.
func (s *Server) applyActive(id uint8) {
	if id == s.activeID {
		return
	}

	s.activeID = id
	s.bearer.NotifySubscribed(gatt.ChrActivePresetIndex, []byte{id})
}

func (s *Server) handleSetActivePreset(sess *session, body []byte, sync bool) error {
	req, err := hasp.ParseSetActivePresetReq(body)
	if err != nil {
		return err
	}

	p := s.store.lookup(req.ID)
	if p == nil {
		return gatt.AttErrOutOfRange
	}

	if !p.props.Available() {
		return hasp.ErrOperationNotPossible
	}

	return s.callActiveSet(p.id, sync)
}

func (s *Server) handleSetNextPreset(sync bool) error {
	p := s.store.nextAvailable(s.activeID)
	if p == nil {
		return hasp.ErrOperationNotPossible
	}
	return s.callActiveSet(p.id, sync)
}

func (s *Server) handleSetPrevPreset(sync bool) error {
	p := s.store.prevAvailable(s.activeID)
	if p == nil {
		return hasp.ErrOperationNotPossible
	}
	return s.callActiveSet(p.id, sync)
}

/////////////////////////////////////////////////////////////////////////////
// Change propagation

// presetChanged queues a change event for every listening peer, coalescing
// against whatever is already pending for the same preset.
func (s *Server) presetChanged(p *preset, change hasp.ChangeID) {
	log.Debugf("has: preset %d changed: %s", p.id, change)

	for _, sess := range s.clients {
		if !sess.subscribed() {
			continue
		}
		if sess.conn == nil || !sess.conn.IsConnected() {
			continue
		}

		s.coalesce(sess, p, change)

		// If the change canceled out everything pending, any transmit work
		// already scheduled simply finds nothing to send.
		if sess.changePending() {
			s.scheduleTx(sess, cpTxDelay)
		}
	}
}

// coalesce applies the conflict-resolution rules for one (peer, preset)
// pair: at most one pending change kind is tracked per preset, and a pair of
// changes that nets out to nothing cancels entirely.
func (s *Server) coalesce(sess *session, p *preset, change hasp.ChangeID) {
	pending, ok := sess.pending.get(p.id)
	if !ok {
		sess.pending.set(p.id, change)
		return
	}

	aware := p.isNameAware(sess.conn.ID())

	switch {
	case pending == hasp.ChangePresetDeleted && change == hasp.ChangeGenericUpdate:
		// Delete-then-restore with an unchanged name is invisible to a peer
		// that already knows the name.
		if aware {
			sess.pending.clear(p.id)
		} else {
			sess.pending.set(p.id, change)
		}

	case pending == hasp.ChangeGenericUpdate && change == hasp.ChangePresetDeleted:
		if aware {
			sess.pending.clear(p.id)
		} else {
			sess.pending.set(p.id, change)
		}

	case pending == hasp.ChangePresetUnavailable && change == hasp.ChangePresetAvailable:
		sess.pending.clear(p.id)

	case pending == hasp.ChangePresetAvailable && change == hasp.ChangePresetUnavailable:
		sess.pending.clear(p.id)

	default:
		sess.pending.set(p.id, change)
	}
}

/////////////////////////////////////////////////////////////////////////////
// Transmit scheduler

// scheduleTx arms the peer's transmit work unless a transmission is already
// outstanding.
func (s *Server) scheduleTx(sess *session, delay time.Duration) {
	if !sess.busy {
		sess.busy = true
		sess.txWork.Reschedule(delay)
	}
}

// processTx drains exactly one unit of Control Point output for the peer,
// preferring an in-progress read-response sequence over pending change
// events.
func (s *Server) processTx(sess *session) {
	var p *preset
	var err error
	sentChange := false
	carriesName := true

	switch {
	case sess.conn == nil || !sess.conn.IsConnected():
		err = hxutil.NewNotConnectedError("has: peer not connected")

	case sess.readPending():
		p = sess.readRsp.pending

		sess.readRsp.pending = nil
		if sess.readRsp.num > 1 {
			sess.readRsp.pending = s.store.firstVisible(p.id+1, s.store.lastID)
		}
		isLast := sess.readRsp.pending == nil
		sess.readRsp.num--

		rsp := hasp.ReadPresetRsp{
			IsLast:     isLast,
			ID:         p.id,
			Properties: p.props,
			Name:       p.name,
		}
		err = s.cpTx(sess, rsp.Marshal())

	case sess.changePending():
		id, change, _ := sess.pending.first()
		p = s.store.lookup(id)
		carriesName = change == hasp.ChangeGenericUpdate

		pc := hasp.PresetChanged{
			ChangeID: change,
			IsLast:   sess.pending.len() == 1,
		}
		if change == hasp.ChangeGenericUpdate {
			pc.Update = &hasp.GenericUpdate{
				PrevID:     s.store.prevVisibleID(p),
				ID:         p.id,
				Properties: p.props,
				Name:       p.name,
			}
		} else {
			pc.ID = p.id
		}

		var frame []byte
		frame, err = pc.Marshal()
		if err == nil {
			err = s.cpTx(sess, frame)
		}
		sentChange = err == nil

	default:
		// Nothing left to send; a canceled change got us here.
		err = fmt.Errorf("no pending output")
	}

	if err != nil {
		log.Debugf("has: tx skipped for %s: %s", sess.conn.ID(), err)
		sess.busy = false
		return
	}

	// Only read responses and generic updates carry the preset's name.
	if carriesName {
		p.setNameAware(sess.conn.ID())
	}
	if sentChange {
		sess.pending.clear(p.id)
	}
}

// cpTx pushes one Control Point frame, using whichever mechanism the peer
// subscribed to.  The completion callback re-enters the event loop.
func (s *Server) cpTx(sess *session, frame []byte) error {
	conn := sess.conn
	done := func(txErr error) {
		s.tq.Enqueue(func() error {
			s.txDone(sess, txErr)
			return nil
		})
	}

	if sess.nfyEnabled {
		return s.bearer.Notify(conn, gatt.ChrPresetControlPoint, frame, done)
	}
	if sess.indEnabled {
		return s.bearer.Indicate(conn, gatt.ChrPresetControlPoint, frame, done)
	}

	return fmt.Errorf("peer not subscribed")
}

func (s *Server) txDone(sess *session, err error) {
	if err != nil {
		log.Warnf("has: control point tx failed for %s: %s",
			sess.conn.ID(), err)
	}

	sess.busy = false

	// Resubmit if needed.
	if sess.readPending() || sess.changePending() {
		s.scheduleTx(sess, 0)
	}
}

/////////////////////////////////////////////////////////////////////////////
// Public API

func (s *Server) Features() hasp.Features {
	var f hasp.Features
	s.tq.Run(func() error {
		f = s.features
		return nil
	})
	return f
}

// FeaturesSet updates the preset-sync and independent-presets feature bits
// and notifies subscribed peers of the new features value.
func (s *Server) FeaturesSet(presetSync bool, independent bool) error {
	return s.tq.Run(func() error {
		if presetSync && s.cfg.Type != hasp.TypeBinaural {
			return hxutil.NewNotSupportedError(
				"has: preset sync requires a binaural set")
		}

		f := s.features &^ (hasp.FeatPresetSync | hasp.FeatIndependentPresets)
		if presetSync {
			f |= hasp.FeatPresetSync
		}
		if independent {
			f |= hasp.FeatIndependentPresets
		}
		if f == s.features {
			return nil
		}

		s.features = f
		s.cfg.PresetSync = presetSync
		s.cfg.IndependentPresets = independent

		log.Debugf("has: features now 0x%02x", uint8(f))
		s.bearer.NotifySubscribed(gatt.ChrHearingAidFeatures, []byte{byte(f)})
		return nil
	})
}

// ActiveGet returns the currently active preset id, or
// hasp.ActivePresetNone.
func (s *Server) ActiveGet() uint8 {
	var id uint8
	s.tq.Run(func() error {
		id = s.activeID
		return nil
	})
	return id
}

// ActiveSet marks the preset active and notifies the Active Preset Index to
// all subscribers.  Setting the already-active id is a no-op.
func (s *Server) ActiveSet(id uint8) error {
	return s.tq.Run(func() error {
		if id != hasp.ActivePresetNone && s.store.lookup(id) == nil {
			return hxutil.FmtNotFoundError("has: no preset %d", id)
		}

		s.applyActive(id)
		return nil
	})
}

func (s *Server) ActiveClear() error {
	return s.ActiveSet(hasp.ActivePresetNone)
}

// NameSet renames a preset on behalf of the local application.
func (s *Server) NameSet(id uint8, name string) error {
	return s.tq.Run(func() error {
		err := s.presetNameSet(id, name)
		switch err {
		case nil:
			return nil
		case hasp.ErrInvalidParamLen:
			return hxutil.FmtInvalidArgError("has: bad name length %d",
				len(name))
		case gatt.AttErrOutOfRange:
			return hxutil.FmtNotFoundError("has: no preset %d", id)
		case hasp.ErrWriteNameNotAllowed:
			return hxutil.NewNotAllowedError("has: preset name not writable")
		default:
			return err
		}
	})
}

// VisibilitySet hides or reveals a preset.  Hiding raises a deleted event;
// revealing raises a generic update.
func (s *Server) VisibilitySet(id uint8, visible bool) error {
	return s.tq.Run(func() error {
		p := s.store.lookup(id)
		if p == nil {
			return hxutil.FmtNotFoundError("has: no preset %d", id)
		}

		if p.hidden == visible {
			p.hidden = !visible
			if visible {
				s.presetChanged(p, hasp.ChangeGenericUpdate)
			} else {
				s.presetChanged(p, hasp.ChangePresetDeleted)
			}
		}
		return nil
	})
}

// AvailabilitySet toggles whether a preset may be activated by peers.
func (s *Server) AvailabilitySet(id uint8, available bool) error {
	return s.tq.Run(func() error {
		p := s.store.lookup(id)
		if p == nil {
			return hxutil.FmtNotFoundError("has: no preset %d", id)
		}

		if p.props.Available() != available {
			p.props ^= hasp.PropAvailable

			// Hidden presets change silently.
			if !p.hidden {
				if available {
					s.presetChanged(p, hasp.ChangePresetAvailable)
				} else {
					s.presetChanged(p, hasp.ChangePresetUnavailable)
				}
			}
		}
		return nil
	})
}

// Presets returns a snapshot of the preset list in ascending id order,
// including hidden records.
func (s *Server) Presets() []PresetInfo {
	var out []PresetInfo
	s.tq.Run(func() error {
		for _, p := range s.store.presets {
			out = append(out, PresetInfo{
				ID:         p.id,
				Properties: p.props,
				Name:       p.name,
				Hidden:     p.hidden,
				Active:     p.id == s.activeID,
			})
		}
		return nil
	})
	return out
}
