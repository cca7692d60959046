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
	"testing"
	"time"

	"github.com/hearsys/hasmgr/hasx/gatt"
	"github.com/hearsys/hasmgr/hasx/hasp"
	"github.com/hearsys/hasmgr/hasx/hxutil"
)

const testTimeout = 2 * time.Second

// Long enough for the 10 ms coalescing delay plus slack.
const settleTime = 100 * time.Millisecond

func testParams() []PresetParam {
	return []PresetParam{
		{ID: 8, Properties: hasp.PropAvailable, Name: "Noisy"},
		{ID: 1, Properties: hasp.PropWritable | hasp.PropAvailable,
			Name: "Universal"},
		{ID: 5, Properties: hasp.PropWritable | hasp.PropAvailable,
			Name: "Outdoor"},
	}
}

func newTestServer(t *testing.T, cfg Config, params []PresetParam,
	lbCfg gatt.LoopbackConfig) (*Server, *gatt.Loopback) {

	t.Helper()

	lb := gatt.NewLoopback(lbCfg)
	srv, err := NewServer(cfg, lb, Ops{
		ActiveSet: func(id uint8, sync bool) error { return nil },
	}, params)
	if err != nil {
		t.Fatalf("NewServer failed: %s", err)
	}
	lb.Attach(srv)

	t.Cleanup(func() { srv.Close() })

	return srv, lb
}

type testPeer struct {
	lb       *gatt.Loopback
	conn     *gatt.LoopbackConn
	cpCh     chan []byte
	activeCh chan []byte

	cpSub     *gatt.Subscription
	activeSub *gatt.Subscription
}

func (p *testPeer) subscribe(t *testing.T, sub *gatt.Subscription) error {
	t.Helper()

	errCh := make(chan error, 1)
	if err := p.lb.Subscribe(p.conn, sub, func(err error) {
		errCh <- err
	}); err != nil {
		return err
	}

	select {
	case err := <-errCh:
		return err
	case <-time.After(testTimeout):
		t.Fatalf("subscribe timed out")
		return nil
	}
}

// connectPeer connects, encrypts and subscribes a raw peer: the control
// point with the given CCC value and the active preset index with notify.
func connectPeer(t *testing.T, lb *gatt.Loopback, id string, bonded bool,
	ccc gatt.CCC) *testPeer {

	t.Helper()

	conn, err := lb.Connect(id, bonded)
	if err != nil {
		t.Fatalf("connect failed: %s", err)
	}
	lb.Encrypt(conn)

	p := &testPeer{
		lb:       lb,
		conn:     conn,
		cpCh:     make(chan []byte, 16),
		activeCh: make(chan []byte, 16),
	}

	p.cpSub = &gatt.Subscription{
		ValueHandle: gatt.LoopbackHandleCP,
		Value:       ccc,
		Notify:      func(v []byte) { p.cpCh <- v },
	}
	if err := p.subscribe(t, p.cpSub); err != nil {
		t.Fatalf("control point subscribe failed: %s", err)
	}

	p.activeSub = &gatt.Subscription{
		ValueHandle: gatt.LoopbackHandleActive,
		Value:       gatt.CCCNotify,
		Notify:      func(v []byte) { p.activeCh <- v },
	}
	if err := p.subscribe(t, p.activeSub); err != nil {
		t.Fatalf("active index subscribe failed: %s", err)
	}

	return p
}

func (p *testPeer) writeCP(t *testing.T, frame []byte) error {
	t.Helper()

	errCh := make(chan error, 1)
	if err := p.lb.WriteCharacteristic(p.conn, gatt.LoopbackHandleCP, frame,
		func(err error) { errCh <- err }); err != nil {
		return err
	}

	select {
	case err := <-errCh:
		return err
	case <-time.After(testTimeout):
		t.Fatalf("control point write timed out")
		return nil
	}
}

func nextFrame(t *testing.T, ch chan []byte, desc string) []byte {
	t.Helper()

	select {
	case frame := <-ch:
		return frame
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", desc)
		return nil
	}
}

func noFrame(t *testing.T, ch chan []byte, desc string) {
	t.Helper()

	select {
	case frame := <-ch:
		t.Fatalf("unexpected %s: %v", desc, frame)
	case <-time.After(settleTime):
	}
}

func parseReadRsp(t *testing.T, frame []byte) *hasp.ReadPresetRsp {
	t.Helper()

	op, body, err := hasp.SplitOp(frame)
	if err != nil || op != hasp.OpReadPresetRsp {
		t.Fatalf("not a read preset response: %v", frame)
	}

	rsp, err := hasp.ParseReadPresetRsp(body)
	if err != nil {
		t.Fatalf("bad read preset response: %s", err)
	}
	return rsp
}

func parseChanged(t *testing.T, frame []byte) *hasp.PresetChanged {
	t.Helper()

	op, body, err := hasp.SplitOp(frame)
	if err != nil || op != hasp.OpPresetChanged {
		t.Fatalf("not a preset changed frame: %v", frame)
	}

	pc, err := hasp.ParsePresetChanged(body)
	if err != nil {
		t.Fatalf("bad preset changed frame: %s", err)
	}
	return pc
}

func TestServerReadPresetsAscending(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	req := hasp.ReadPresetReq{StartID: 1, NumPresets: 255}
	if err := p.writeCP(t, req.Marshal()); err != nil {
		t.Fatalf("read request failed: %s", err)
	}

	want := []struct {
		id     uint8
		name   string
		isLast bool
	}{
		{1, "Universal", false},
		{5, "Outdoor", false},
		{8, "Noisy", true},
	}

	for _, w := range want {
		rsp := parseReadRsp(t, nextFrame(t, p.cpCh, "read response"))
		if rsp.ID != w.id || rsp.Name != w.name || rsp.IsLast != w.isLast {
			t.Fatalf("bad response: %+v, want %+v", rsp, w)
		}
	}
}

func TestServerReadSubset(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	// Start past preset 1, limit to a single record.
	req := hasp.ReadPresetReq{StartID: 2, NumPresets: 1}
	if err := p.writeCP(t, req.Marshal()); err != nil {
		t.Fatalf("read request failed: %s", err)
	}

	rsp := parseReadRsp(t, nextFrame(t, p.cpCh, "read response"))
	if rsp.ID != 5 || !rsp.IsLast {
		t.Fatalf("bad response: %+v", rsp)
	}

	noFrame(t, p.cpCh, "extra read response")
}

func TestServerReadOutOfRange(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	req := hasp.ReadPresetReq{StartID: 9, NumPresets: 1}
	if err := p.writeCP(t, req.Marshal()); err != gatt.AttErrOutOfRange {
		t.Fatalf("read past end: have %v, want %v", err, gatt.AttErrOutOfRange)
	}

	req = hasp.ReadPresetReq{StartID: 1, NumPresets: 0}
	if err := p.writeCP(t, req.Marshal()); err != gatt.AttErrOutOfRange {
		t.Fatalf("zero count: have %v, want %v", err, gatt.AttErrOutOfRange)
	}
}

func TestServerNotifyOnlyPeer(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(),
		gatt.LoopbackConfig{CPNotifyOnly: true})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCNotify)

	// Reads require an indication subscription.
	req := hasp.ReadPresetReq{StartID: 1, NumPresets: 1}
	if err := p.writeCP(t, req.Marshal()); err != gatt.AttErrCCCImproperConf {
		t.Fatalf("notify-only read: have %v, want %v", err,
			gatt.AttErrCCCImproperConf)
	}

	// Change events still arrive as notifications.
	if err := srv.NameSet(1, "Indoor"); err != nil {
		t.Fatalf("name set failed: %s", err)
	}

	pc := parseChanged(t, nextFrame(t, p.cpCh, "preset changed"))
	if pc.ChangeID != hasp.ChangeGenericUpdate || pc.Update == nil ||
		pc.Update.Name != "Indoor" {

		t.Fatalf("bad change frame: %+v", pc)
	}
}

func TestServerBadRequests(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	if err := p.writeCP(t, []byte{}); err != gatt.AttErrInvalidAttributeLen {
		t.Fatalf("empty frame: have %v", err)
	}

	if err := p.writeCP(t, []byte{0x42}); err != hasp.ErrInvalidOp {
		t.Fatalf("unknown opcode: have %v, want %v", err, hasp.ErrInvalidOp)
	}

	// Truncated write-preset-name payload.
	if err := p.writeCP(t, []byte{byte(hasp.OpWritePresetName)}); err != hasp.ErrInvalidParamLen {
		t.Fatalf("short payload: have %v, want %v", err, hasp.ErrInvalidParamLen)
	}
}

func TestServerSetActive(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	req := hasp.SetActivePresetReq{ID: 5}
	if err := p.writeCP(t, req.Marshal(hasp.OpSetActivePreset)); err != nil {
		t.Fatalf("set active failed: %s", err)
	}

	v := nextFrame(t, p.activeCh, "active index notification")
	if len(v) != 1 || v[0] != 5 {
		t.Fatalf("bad active index value: %v", v)
	}

	// Re-activating the current preset must not notify again.
	if err := p.writeCP(t, req.Marshal(hasp.OpSetActivePreset)); err != nil {
		t.Fatalf("repeated set active failed: %s", err)
	}
	noFrame(t, p.activeCh, "duplicate active index notification")

	// Unknown preset.
	req = hasp.SetActivePresetReq{ID: 4}
	if err := p.writeCP(t, req.Marshal(hasp.OpSetActivePreset)); err != gatt.AttErrOutOfRange {
		t.Fatalf("unknown preset: have %v, want %v", err, gatt.AttErrOutOfRange)
	}
}

func TestServerSetActiveUnavailable(t *testing.T) {
	params := []PresetParam{
		{ID: 1, Properties: hasp.PropAvailable, Name: "On"},
		{ID: 2, Name: "Off"},
	}
	_, lb := newTestServer(t, Config{}, params, gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	req := hasp.SetActivePresetReq{ID: 2}
	err := p.writeCP(t, req.Marshal(hasp.OpSetActivePreset))
	if err != hasp.ErrOperationNotPossible {
		t.Fatalf("unavailable preset: have %v, want %v", err,
			hasp.ErrOperationNotPossible)
	}
}

func TestServerSetNextWrap(t *testing.T) {
	params := []PresetParam{
		{ID: 1, Properties: hasp.PropAvailable, Name: "a"},
		{ID: 5, Name: "b"},
		{ID: 8, Properties: hasp.PropAvailable, Name: "c"},
	}
	_, lb := newTestServer(t, Config{}, params, gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	// The unavailable preset 5 is skipped; past the end the search wraps.
	want := []uint8{1, 8, 1}
	for _, id := range want {
		if err := p.writeCP(t, hasp.MarshalOp(hasp.OpSetNextPreset)); err != nil {
			t.Fatalf("set next failed: %s", err)
		}
		v := nextFrame(t, p.activeCh, "active index notification")
		if len(v) != 1 || v[0] != id {
			t.Fatalf("bad active index: %v, want %d", v, id)
		}
	}
}

func TestServerSetPrevWrap(t *testing.T) {
	params := []PresetParam{
		{ID: 1, Properties: hasp.PropAvailable, Name: "a"},
		{ID: 8, Properties: hasp.PropAvailable, Name: "c"},
	}
	_, lb := newTestServer(t, Config{}, params, gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	want := []uint8{8, 1, 8}
	for _, id := range want {
		if err := p.writeCP(t, hasp.MarshalOp(hasp.OpSetPrevPreset)); err != nil {
			t.Fatalf("set prev failed: %s", err)
		}
		v := nextFrame(t, p.activeCh, "active index notification")
		if len(v) != 1 || v[0] != id {
			t.Fatalf("bad active index: %v, want %d", v, id)
		}
	}
}

func TestServerWrapIdentity(t *testing.T) {
	params := []PresetParam{
		{ID: 3, Properties: hasp.PropAvailable, Name: "only"},
		{ID: 7, Name: "off"},
	}
	srv, lb := newTestServer(t, Config{}, params, gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	if err := srv.ActiveSet(3); err != nil {
		t.Fatalf("active set failed: %s", err)
	}
	nextFrame(t, p.activeCh, "active index notification")

	// The circular search lands on the active preset itself; accepted, but
	// nothing changes.
	if err := p.writeCP(t, hasp.MarshalOp(hasp.OpSetNextPreset)); err != nil {
		t.Fatalf("set next failed: %s", err)
	}
	noFrame(t, p.activeCh, "active index notification")
}

func TestServerSyncOpcodes(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	err := p.writeCP(t, hasp.MarshalOp(hasp.OpSetNextPresetSync))
	if err != hasp.ErrPresetSyncNotSupp {
		t.Fatalf("sync without support: have %v, want %v", err,
			hasp.ErrPresetSyncNotSupp)
	}
}

func TestServerSyncAccepted(t *testing.T) {
	syncCh := make(chan bool, 1)

	lb := gatt.NewLoopback(gatt.LoopbackConfig{})
	srv, err := NewServer(Config{PresetSync: true}, lb, Ops{
		ActiveSet: func(id uint8, sync bool) error {
			syncCh <- sync
			return nil
		},
	}, testParams())
	if err != nil {
		t.Fatalf("NewServer failed: %s", err)
	}
	lb.Attach(srv)
	defer srv.Close()

	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	if err := p.writeCP(t, hasp.MarshalOp(hasp.OpSetNextPresetSync)); err != nil {
		t.Fatalf("sync set next failed: %s", err)
	}

	select {
	case sync := <-syncCh:
		if !sync {
			t.Fatalf("sync flag not propagated")
		}
	case <-time.After(testTimeout):
		t.Fatalf("active set callback never ran")
	}
}

func TestServerRenameFromPeer(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	req := hasp.WritePresetNameReq{ID: 1, Name: "Cafe"}
	if err := p.writeCP(t, req.Marshal()); err != nil {
		t.Fatalf("rename failed: %s", err)
	}

	pc := parseChanged(t, nextFrame(t, p.cpCh, "preset changed"))
	if pc.ChangeID != hasp.ChangeGenericUpdate || pc.Update == nil {
		t.Fatalf("bad change frame: %+v", pc)
	}
	if pc.Update.ID != 1 || pc.Update.Name != "Cafe" || !pc.IsLast {
		t.Fatalf("bad generic update: %+v", pc.Update)
	}

	// Non-writable preset.
	req = hasp.WritePresetNameReq{ID: 8, Name: "Nope"}
	if err := p.writeCP(t, req.Marshal()); err != hasp.ErrWriteNameNotAllowed {
		t.Fatalf("non-writable rename: have %v, want %v", err,
			hasp.ErrWriteNameNotAllowed)
	}

	// Overlong name.
	long := make([]byte, hasp.NameLenMax+1)
	for i := range long {
		long[i] = 'x'
	}
	req = hasp.WritePresetNameReq{ID: 1, Name: string(long)}
	if err := p.writeCP(t, req.Marshal()); err != hasp.ErrInvalidParamLen {
		t.Fatalf("overlong rename: have %v, want %v", err,
			hasp.ErrInvalidParamLen)
	}
}

func TestServerRenameCoalesced(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	// Two renames inside the coalescing window produce one update carrying
	// the final name.
	if err := srv.NameSet(1, "First"); err != nil {
		t.Fatalf("name set failed: %s", err)
	}
	if err := srv.NameSet(1, "Second"); err != nil {
		t.Fatalf("name set failed: %s", err)
	}

	pc := parseChanged(t, nextFrame(t, p.cpCh, "preset changed"))
	if pc.Update == nil || pc.Update.Name != "Second" || !pc.IsLast {
		t.Fatalf("bad coalesced update: %+v", pc)
	}

	noFrame(t, p.cpCh, "second update")
}

func TestServerAvailabilityCancel(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	// An availability toggle that nets out to nothing sends nothing.
	if err := srv.AvailabilitySet(1, false); err != nil {
		t.Fatalf("availability set failed: %s", err)
	}
	if err := srv.AvailabilitySet(1, true); err != nil {
		t.Fatalf("availability set failed: %s", err)
	}
	noFrame(t, p.cpCh, "canceled change")

	if err := srv.AvailabilitySet(1, false); err != nil {
		t.Fatalf("availability set failed: %s", err)
	}
	pc := parseChanged(t, nextFrame(t, p.cpCh, "preset changed"))
	if pc.ChangeID != hasp.ChangePresetUnavailable || pc.ID != 1 {
		t.Fatalf("bad change frame: %+v", pc)
	}
}

func TestServerVisibility(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	if err := srv.VisibilitySet(1, false); err != nil {
		t.Fatalf("hide failed: %s", err)
	}
	pc := parseChanged(t, nextFrame(t, p.cpCh, "preset deleted"))
	if pc.ChangeID != hasp.ChangePresetDeleted || pc.ID != 1 {
		t.Fatalf("bad change frame: %+v", pc)
	}

	// The hidden preset is excluded from reads.
	req := hasp.ReadPresetReq{StartID: 1, NumPresets: 255}
	if err := p.writeCP(t, req.Marshal()); err != nil {
		t.Fatalf("read request failed: %s", err)
	}
	rsp := parseReadRsp(t, nextFrame(t, p.cpCh, "read response"))
	if rsp.ID != 5 {
		t.Fatalf("hidden preset still visible: %+v", rsp)
	}
	rsp = parseReadRsp(t, nextFrame(t, p.cpCh, "read response"))
	if rsp.ID != 8 || !rsp.IsLast {
		t.Fatalf("bad final response: %+v", rsp)
	}

	if err := srv.VisibilitySet(1, true); err != nil {
		t.Fatalf("unhide failed: %s", err)
	}
	pc = parseChanged(t, nextFrame(t, p.cpCh, "generic update"))
	if pc.ChangeID != hasp.ChangeGenericUpdate || pc.Update == nil ||
		pc.Update.ID != 1 {

		t.Fatalf("bad change frame: %+v", pc)
	}
}

func TestServerDeleteRestoreNameAware(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	// Make the peer name-aware of preset 1 via a read.
	req := hasp.ReadPresetReq{StartID: 1, NumPresets: 1}
	if err := p.writeCP(t, req.Marshal()); err != nil {
		t.Fatalf("read request failed: %s", err)
	}
	nextFrame(t, p.cpCh, "read response")

	// Hide and reveal inside the coalescing window: invisible to a
	// name-aware peer.
	if err := srv.VisibilitySet(1, false); err != nil {
		t.Fatalf("hide failed: %s", err)
	}
	if err := srv.VisibilitySet(1, true); err != nil {
		t.Fatalf("unhide failed: %s", err)
	}
	noFrame(t, p.cpCh, "canceled delete/restore")
}

func TestServerReadPriorityOverChanges(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	req := hasp.ReadPresetReq{StartID: 1, NumPresets: 255}
	if err := p.writeCP(t, req.Marshal()); err != nil {
		t.Fatalf("read request failed: %s", err)
	}
	if err := srv.AvailabilitySet(8, false); err != nil {
		t.Fatalf("availability set failed: %s", err)
	}

	// The full read response sequence drains before the change event.
	for i := 0; i < 3; i++ {
		parseReadRsp(t, nextFrame(t, p.cpCh, "read response"))
	}

	pc := parseChanged(t, nextFrame(t, p.cpCh, "preset changed"))
	if pc.ChangeID != hasp.ChangePresetUnavailable || pc.ID != 8 {
		t.Fatalf("bad change frame: %+v", pc)
	}
}

func TestServerMtuGate(t *testing.T) {
	_, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})

	conn, err := lb.Connect("peer0", false)
	if err != nil {
		t.Fatalf("connect failed: %s", err)
	}
	lb.SetMTU(conn, 30)
	lb.Encrypt(conn)

	p := &testPeer{
		lb:       lb,
		conn:     conn,
		cpCh:     make(chan []byte, 16),
		activeCh: make(chan []byte, 16),
	}
	p.cpSub = &gatt.Subscription{
		ValueHandle: gatt.LoopbackHandleCP,
		Value:       gatt.CCCIndicate,
		Notify:      func(v []byte) { p.cpCh <- v },
	}
	if err := p.subscribe(t, p.cpSub); err != nil {
		t.Fatalf("subscribe failed: %s", err)
	}

	// Too small to carry a full-length read response.
	req := hasp.ReadPresetReq{StartID: 1, NumPresets: 1}
	if err := p.writeCP(t, req.Marshal()); err != gatt.AttErrInsufficientResources {
		t.Fatalf("small MTU read: have %v, want %v", err,
			gatt.AttErrInsufficientResources)
	}

	// Renegotiation unblocks the read path.
	lb.SetMTU(conn, 100)
	if err := p.writeCP(t, req.Marshal()); err != nil {
		t.Fatalf("read after MTU update failed: %s", err)
	}
	rsp := parseReadRsp(t, nextFrame(t, p.cpCh, "read response"))
	if rsp.ID != 1 {
		t.Fatalf("bad response: %+v", rsp)
	}
}

func TestServerBondedReconnect(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", true, gatt.CCCIndicate)

	lb.Disconnect(p.conn)

	// A change made while the peer is away.
	if err := srv.NameSet(1, "Morning"); err != nil {
		t.Fatalf("name set failed: %s", err)
	}

	conn, err := lb.Connect("peer0", true)
	if err != nil {
		t.Fatalf("reconnect failed: %s", err)
	}
	p.conn = conn
	lb.Encrypt(conn)

	// Every visible preset is replayed as a generic update, ascending.
	want := []struct {
		id     uint8
		name   string
		isLast bool
	}{
		{1, "Morning", false},
		{5, "Outdoor", false},
		{8, "Noisy", true},
	}
	for _, w := range want {
		pc := parseChanged(t, nextFrame(t, p.cpCh, "replayed update"))
		if pc.ChangeID != hasp.ChangeGenericUpdate || pc.Update == nil {
			t.Fatalf("bad change frame: %+v", pc)
		}
		if pc.Update.ID != w.id || pc.Update.Name != w.name ||
			pc.IsLast != w.isLast {

			t.Fatalf("bad update: %+v, want %+v", pc.Update, w)
		}
	}
}

func TestServerUnbondedPeerForgotten(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	lb.Disconnect(p.conn)

	// Nothing is replayed for a non-bonded peer; its session is gone.
	if err := srv.Forget("peer0"); err == nil {
		t.Fatalf("session survived non-bonded disconnect")
	}
}

func TestServerMaxClients(t *testing.T) {
	_, lb := newTestServer(t, Config{MaxClients: 1}, testParams(),
		gatt.LoopbackConfig{})
	connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	conn, err := lb.Connect("peer1", false)
	if err != nil {
		t.Fatalf("connect failed: %s", err)
	}
	lb.Encrypt(conn)

	p := &testPeer{lb: lb, conn: conn, cpCh: make(chan []byte, 16)}
	sub := &gatt.Subscription{
		ValueHandle: gatt.LoopbackHandleCP,
		Value:       gatt.CCCIndicate,
		Notify:      func(v []byte) { p.cpCh <- v },
	}
	if err := p.subscribe(t, sub); err != gatt.AttErrInsufficientResources {
		t.Fatalf("overflow subscribe: have %v, want %v", err,
			gatt.AttErrInsufficientResources)
	}
}

func TestServerForgetBondedPeer(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", true, gatt.CCCIndicate)

	lb.Disconnect(p.conn)

	if err := srv.Forget("peer0"); err != nil {
		t.Fatalf("forget failed: %s", err)
	}
	if err := srv.Forget("peer0"); err == nil {
		t.Fatalf("double forget succeeded")
	}
}

func TestServerCharacteristicReads(t *testing.T) {
	srv, lb := newTestServer(t, Config{Type: hasp.TypeBinaural}, testParams(),
		gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	read := func(handle uint16) []byte {
		type result struct {
			value []byte
			err   error
		}
		ch := make(chan result, 1)
		if err := lb.ReadCharacteristic(p.conn, handle,
			func(v []byte, err error) { ch <- result{v, err} }); err != nil {
			t.Fatalf("read failed: %s", err)
		}

		select {
		case r := <-ch:
			if r.err != nil {
				t.Fatalf("read failed: %s", r.err)
			}
			return r.value
		case <-time.After(testTimeout):
			t.Fatalf("read timed out")
			return nil
		}
	}

	f := read(gatt.LoopbackHandleFeatures)
	if len(f) != 1 || hasp.Features(f[0]) != srv.Features() {
		t.Fatalf("bad features value: %v", f)
	}
	if hasp.Features(f[0])&hasp.FeatWritablePresets == 0 {
		t.Fatalf("writable presets feature missing: 0x%02x", f[0])
	}

	if err := srv.ActiveSet(5); err != nil {
		t.Fatalf("active set failed: %s", err)
	}
	nextFrame(t, p.activeCh, "active index notification")

	a := read(gatt.LoopbackHandleActive)
	if len(a) != 1 || a[0] != 5 {
		t.Fatalf("bad active index value: %v", a)
	}
}

func TestServerFeaturesSet(t *testing.T) {
	srv, lb := newTestServer(t, Config{}, testParams(), gatt.LoopbackConfig{})
	p := connectPeer(t, lb, "peer0", false, gatt.CCCIndicate)

	featCh := make(chan []byte, 16)
	sub := &gatt.Subscription{
		ValueHandle: gatt.LoopbackHandleFeatures,
		Value:       gatt.CCCNotify,
		Notify:      func(v []byte) { featCh <- v },
	}
	if err := p.subscribe(t, sub); err != nil {
		t.Fatalf("features subscribe failed: %s", err)
	}

	if err := srv.FeaturesSet(true, false); err != nil {
		t.Fatalf("features set failed: %s", err)
	}

	frame := nextFrame(t, featCh, "features notification")
	if len(frame) != 1 || hasp.Features(frame[0])&hasp.FeatPresetSync == 0 {
		t.Fatalf("bad features value: %v", frame)
	}
	if !srv.Features().SyncSupported() {
		t.Fatalf("sync not reported: 0x%02x", uint8(srv.Features()))
	}

	// Unchanged values produce no notification.
	if err := srv.FeaturesSet(true, false); err != nil {
		t.Fatalf("repeated features set failed: %s", err)
	}
	noFrame(t, featCh, "features notification")

	// The synchronized opcode variants now pass the feature gate.
	req := hasp.SetActivePresetReq{ID: 5}
	if err := p.writeCP(t, req.Marshal(hasp.OpSetActivePresetSync)); err != nil {
		t.Fatalf("sync active set failed: %s", err)
	}
}

func TestServerFeaturesSetMonaural(t *testing.T) {
	srv, _ := newTestServer(t, Config{Type: hasp.TypeMonaural}, testParams(),
		gatt.LoopbackConfig{})

	if err := srv.FeaturesSet(true, false); !hxutil.IsNotSupported(err) {
		t.Fatalf("monaural sync: have %v, want not supported", err)
	}
}
