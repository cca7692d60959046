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

// Package gatt defines the attribute-transport surface the hearing access
// profile consumes.  The profile never talks to a controller directly; it is
// wired to implementations of the interfaces below (see Loopback for the
// bundled in-process one).
package gatt

import (
	"fmt"

	"github.com/google/uuid"
)

// Assigned 16-bit UUIDs, expanded over the Bluetooth base UUID.
var (
	SvcHearingAccess      = UUID16(0x1854)
	ChrHearingAidFeatures = UUID16(0x2bda)
	ChrPresetControlPoint = UUID16(0x2bdb)
	ChrActivePresetIndex  = UUID16(0x2bdc)
)

// UUID16 expands a 16-bit assigned number over the Bluetooth base UUID
// 00000000-0000-1000-8000-00805f9b34fb.
func UUID16(v uint16) uuid.UUID {
	u := uuid.UUID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb}
	u[2] = byte(v >> 8)
	u[3] = byte(v)
	return u
}

// CCC is a peer's Client Characteristic Configuration value for one
// characteristic.
type CCC uint16

const (
	CCCNone     CCC = 0x0000
	CCCNotify   CCC = 0x0001
	CCCIndicate CCC = 0x0002
)

// Characteristic properties (Core spec bit values).
const (
	ChrPropRead     = 0x02
	ChrPropWrite    = 0x08
	ChrPropNotify   = 0x10
	ChrPropIndicate = 0x20
)

type SecLevel int

const (
	SecLevelNone      SecLevel = 1
	SecLevelEncrypted SecLevel = 2
)

// AttError is an ATT protocol or application error code carried in an error
// response to a GATT request.  Application codes occupy 0x80..0x9f.
type AttError uint8

const (
	AttErrInvalidOffset         AttError = 0x07
	AttErrAttributeNotLong      AttError = 0x0b
	AttErrInvalidAttributeLen   AttError = 0x0d
	AttErrUnlikely              AttError = 0x0e
	AttErrInsufficientEncrypt   AttError = 0x0f
	AttErrInsufficientResources AttError = 0x11
	AttErrValueNotAllowed       AttError = 0x13
	AttErrCCCImproperConf       AttError = 0xfd
	AttErrOutOfRange            AttError = 0xff
)

func (e AttError) Error() string {
	return fmt.Sprintf("att error 0x%02x", uint8(e))
}

// ToAttError extracts an ATT error code from err, or AttErrUnlikely if err is
// of some other type.
func ToAttError(err error) AttError {
	if ae, ok := err.(AttError); ok {
		return ae
	}
	return AttErrUnlikely
}

// Conn identifies one peer link.  The ID is stable across reconnections of
// the same bonded peer.
type Conn interface {
	ID() string
	IsConnected() bool
	IsBonded() bool
	MTU() int
	SecLevel() SecLevel
}

// Characteristic describes one discovered characteristic.
type Characteristic struct {
	UUID        uuid.UUID
	ValueHandle uint16
	Properties  uint8
}

// Service is the server-role event sink: the transport delivers connection
// lifecycle events and attribute requests through it.  Implementations
// serialize internally; the transport may call from any goroutine.
type Service interface {
	Connected(c Conn)
	Disconnected(c Conn)
	SecurityChanged(c Conn, level SecLevel)
	MTUUpdated(c Conn, mtu int)

	// Read returns the current characteristic value, or an AttError.
	Read(c Conn, chr uuid.UUID) ([]byte, error)

	// Write handles a characteristic write request.  A nil return produces a
	// write response; an AttError return produces an error response.
	Write(c Conn, chr uuid.UUID, value []byte) error

	// CCCChanged reports a peer (re)writing a characteristic's CCC.
	CCCChanged(c Conn, chr uuid.UUID, value CCC) error
}

// Bearer is the server-role transmit surface.
type Bearer interface {
	// Indicate sends an acknowledged value push.  done runs once the peer
	// acks or the push fails; it must not be invoked before Indicate returns.
	Indicate(c Conn, chr uuid.UUID, value []byte, done func(err error)) error

	// Notify sends an unacknowledged value push.  done runs once the value
	// has been handed to the link.
	Notify(c Conn, chr uuid.UUID, value []byte, done func(err error)) error

	// NotifySubscribed pushes a value to every connected peer subscribed for
	// notifications on the characteristic.
	NotifySubscribed(chr uuid.UUID, value []byte)

	// IsSubscribed reports the peer's stored CCC state, including state
	// restored from the bond after reconnection.
	IsSubscribed(c Conn, chr uuid.UUID, value CCC) bool
}

// Subscription carries the client-role per-characteristic subscription
// parameters and the incoming value callback.
type Subscription struct {
	ValueHandle uint16
	Value       CCC
	Notify      func(value []byte)
}

// Central is the client-role procedure surface.  All procedures are
// asynchronous; completion callbacks may run on any goroutine and must not be
// invoked before the initiating call returns.
type Central interface {
	DiscoverCharacteristic(c Conn, chr uuid.UUID, f func(*Characteristic, error)) error
	ReadCharacteristic(c Conn, handle uint16, f func(value []byte, err error)) error
	WriteCharacteristic(c Conn, handle uint16, value []byte, f func(err error)) error
	Subscribe(c Conn, sub *Subscription, f func(err error)) error
}
