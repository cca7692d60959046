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

// Package hasp defines the Hearing Access Service Preset Control Point wire
// protocol: opcodes, change identifiers, error codes, feature bits and the
// frame codecs shared by the server and client roles.
package hasp

import (
	"github.com/hearsys/hasmgr/hasx/gatt"
)

const (
	NameLenMin = 1
	NameLenMax = 40

	// ActivePresetNone is the reserved "no active preset" id.
	ActivePresetNone = 0x00

	// AttMtuMin is the smallest ATT MTU able to carry one read-preset
	// response with a maximum-length name.
	AttMtuMin = 49
)

type Op uint8

const (
	OpReadPresetReq       Op = 0x01
	OpReadPresetRsp       Op = 0x02
	OpPresetChanged       Op = 0x03
	OpWritePresetName     Op = 0x04
	OpSetActivePreset     Op = 0x05
	OpSetNextPreset       Op = 0x06
	OpSetPrevPreset       Op = 0x07
	OpSetActivePresetSync Op = 0x08
	OpSetNextPresetSync   Op = 0x09
	OpSetPrevPresetSync   Op = 0x0a
)

func (op Op) String() string {
	switch op {
	case OpReadPresetReq:
		return "read preset request"
	case OpReadPresetRsp:
		return "read preset response"
	case OpPresetChanged:
		return "preset changed"
	case OpWritePresetName:
		return "write preset name"
	case OpSetActivePreset:
		return "set active preset"
	case OpSetNextPreset:
		return "set next preset"
	case OpSetPrevPreset:
		return "set previous preset"
	case OpSetActivePresetSync:
		return "set active preset (synchronized)"
	case OpSetNextPresetSync:
		return "set next preset (synchronized)"
	case OpSetPrevPresetSync:
		return "set previous preset (synchronized)"
	default:
		return "unknown"
	}
}

// ChangeID identifies the kind of a preset-changed event.
type ChangeID uint8

const (
	ChangeGenericUpdate     ChangeID = 0x00
	ChangePresetDeleted     ChangeID = 0x01
	ChangePresetAvailable   ChangeID = 0x02
	ChangePresetUnavailable ChangeID = 0x03
)

func (c ChangeID) String() string {
	switch c {
	case ChangeGenericUpdate:
		return "generic update"
	case ChangePresetDeleted:
		return "preset deleted"
	case ChangePresetAvailable:
		return "preset available"
	case ChangePresetUnavailable:
		return "preset unavailable"
	default:
		return "unknown"
	}
}

// Control Point application error codes.
const (
	ErrInvalidOp            = gatt.AttError(0x80)
	ErrWriteNameNotAllowed  = gatt.AttError(0x81)
	ErrPresetSyncNotSupp    = gatt.AttError(0x82)
	ErrOperationNotPossible = gatt.AttError(0x83)
	ErrInvalidParamLen      = gatt.AttError(0x84)
)

// Properties is a preset record's property bitmask.
type Properties uint8

const (
	PropWritable  Properties = 1 << 0
	PropAvailable Properties = 1 << 1
)

func (p Properties) Writable() bool {
	return p&PropWritable != 0
}

func (p Properties) Available() bool {
	return p&PropAvailable != 0
}

type HearingAidType uint8

const (
	TypeBinaural HearingAidType = 0x00
	TypeMonaural HearingAidType = 0x01
	TypeBanded   HearingAidType = 0x02
)

func (t HearingAidType) String() string {
	switch t {
	case TypeBinaural:
		return "binaural"
	case TypeMonaural:
		return "monaural"
	case TypeBanded:
		return "banded"
	default:
		return "unknown"
	}
}

// Features is the Hearing Aid Features characteristic value.
type Features uint8

const (
	FeatTypeMask           Features = 0x03
	FeatPresetSync         Features = 1 << 2
	FeatIndependentPresets Features = 1 << 3
	FeatDynamicPresets     Features = 1 << 4
	FeatWritablePresets    Features = 1 << 5
)

func (f Features) Type() HearingAidType {
	return HearingAidType(f & FeatTypeMask)
}

// SyncSupported reports whether the sync opcode variants are worth issuing
// against a server advertising these features: a binaural set that supports
// preset synchronization and does not use independent presets.
func (f Features) SyncSupported() bool {
	return f.Type() == TypeBinaural &&
		f&FeatPresetSync != 0 &&
		f&FeatIndependentPresets == 0
}
