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

package hasp

import (
	"fmt"

	"github.com/hearsys/hasmgr/hasx/gatt"
)

// Control Point frames are a one-byte opcode header followed by an
// opcode-specific payload.  All fields are single bytes except names, which
// occupy the remainder of the frame.

// SplitOp separates the opcode header from the payload of an incoming write.
func SplitOp(data []byte) (Op, []byte, error) {
	if len(data) < 1 {
		return 0, nil, gatt.AttErrInvalidAttributeLen
	}
	return Op(data[0]), data[1:], nil
}

type ReadPresetReq struct {
	StartID    uint8
	NumPresets uint8
}

func (r *ReadPresetReq) Marshal() []byte {
	return []byte{byte(OpReadPresetReq), r.StartID, r.NumPresets}
}

func ParseReadPresetReq(body []byte) (*ReadPresetReq, error) {
	if len(body) < 2 {
		return nil, ErrInvalidParamLen
	}
	return &ReadPresetReq{
		StartID:    body[0],
		NumPresets: body[1],
	}, nil
}

type ReadPresetRsp struct {
	IsLast     bool
	ID         uint8
	Properties Properties
	Name       string
}

func (r *ReadPresetRsp) Marshal() []byte {
	buf := make([]byte, 0, 4+len(r.Name))
	buf = append(buf, byte(OpReadPresetRsp), boolByte(r.IsLast), r.ID,
		byte(r.Properties))
	return append(buf, r.Name...)
}

func ParseReadPresetRsp(body []byte) (*ReadPresetRsp, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("short read preset response: %d bytes",
			len(body))
	}
	return &ReadPresetRsp{
		IsLast:     body[0] != 0,
		ID:         body[1],
		Properties: Properties(body[2]),
		Name:       clampName(body[3:]),
	}, nil
}

type WritePresetNameReq struct {
	ID   uint8
	Name string
}

func (r *WritePresetNameReq) Marshal() []byte {
	buf := make([]byte, 0, 2+len(r.Name))
	buf = append(buf, byte(OpWritePresetName), r.ID)
	return append(buf, r.Name...)
}

func ParseWritePresetNameReq(body []byte) (*WritePresetNameReq, error) {
	if len(body) < 1 {
		return nil, ErrInvalidParamLen
	}
	return &WritePresetNameReq{
		ID:   body[0],
		Name: string(body[1:]),
	}, nil
}

type SetActivePresetReq struct {
	ID uint8
}

// Marshal encodes the request with the given opcode so the caller can select
// the synchronized variant.
func (r *SetActivePresetReq) Marshal(op Op) []byte {
	return []byte{byte(op), r.ID}
}

func ParseSetActivePresetReq(body []byte) (*SetActivePresetReq, error) {
	if len(body) < 1 {
		return nil, ErrInvalidParamLen
	}
	return &SetActivePresetReq{ID: body[0]}, nil
}

// MarshalOp encodes a payload-less request (set next/previous variants).
func MarshalOp(op Op) []byte {
	return []byte{byte(op)}
}

// GenericUpdate is the preset-changed payload carrying the full record.
type GenericUpdate struct {
	PrevID     uint8
	ID         uint8
	Properties Properties
	Name       string
}

type PresetChanged struct {
	ChangeID ChangeID
	IsLast   bool

	// ID is set for deleted/available/unavailable changes.
	ID uint8

	// Update is set for generic-update changes.
	Update *GenericUpdate
}

func (p *PresetChanged) Marshal() ([]byte, error) {
	buf := make([]byte, 0, 8+nameLen(p))
	buf = append(buf, byte(OpPresetChanged), byte(p.ChangeID),
		boolByte(p.IsLast))

	switch p.ChangeID {
	case ChangeGenericUpdate:
		if p.Update == nil {
			return nil, fmt.Errorf("preset changed: missing generic update payload")
		}
		buf = append(buf, p.Update.PrevID, p.Update.ID,
			byte(p.Update.Properties))
		buf = append(buf, p.Update.Name...)
	case ChangePresetDeleted, ChangePresetAvailable, ChangePresetUnavailable:
		buf = append(buf, p.ID)
	default:
		return nil, fmt.Errorf("preset changed: bad change id 0x%02x",
			uint8(p.ChangeID))
	}

	return buf, nil
}

func ParsePresetChanged(body []byte) (*PresetChanged, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("short preset changed: %d bytes", len(body))
	}

	pc := &PresetChanged{
		ChangeID: ChangeID(body[0]),
		IsLast:   body[1] != 0,
	}
	body = body[2:]

	switch pc.ChangeID {
	case ChangeGenericUpdate:
		if len(body) < 3 {
			return nil, fmt.Errorf("short generic update: %d bytes", len(body))
		}
		pc.Update = &GenericUpdate{
			PrevID:     body[0],
			ID:         body[1],
			Properties: Properties(body[2]),
			Name:       clampName(body[3:]),
		}
	case ChangePresetDeleted, ChangePresetAvailable, ChangePresetUnavailable:
		if len(body) < 1 {
			return nil, fmt.Errorf("short preset changed payload")
		}
		pc.ID = body[0]
	default:
		return nil, fmt.Errorf("preset changed: unknown change id 0x%02x",
			uint8(pc.ChangeID))
	}

	return pc, nil
}

// ValidNameLen reports whether a preset name length is within the bounds the
// profile allows.
func ValidNameLen(n int) bool {
	return n >= NameLenMin && n <= NameLenMax
}

func nameLen(p *PresetChanged) int {
	if p.Update == nil {
		return 0
	}
	return len(p.Update.Name)
}

func clampName(b []byte) string {
	if len(b) > NameLenMax {
		b = b[:NameLenMax]
	}
	return string(b)
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}
