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

	"github.com/hearsys/hasmgr/hasx/hasp"
)

func storeIDs(s *presetStore) []uint8 {
	var ids []uint8
	for _, p := range s.presets {
		ids = append(ids, p.id)
	}
	return ids
}

func TestStoreAscendingOrder(t *testing.T) {
	params := []PresetParam{
		{ID: 8, Name: "c", Properties: hasp.PropAvailable},
		{ID: 1, Name: "a", Properties: hasp.PropAvailable},
		{ID: 5, Name: "b", Properties: hasp.PropAvailable},
	}

	s, writable := newPresetStore(params, len(params))
	if writable {
		t.Fatalf("store reported writable without writable presets")
	}

	ids := storeIDs(s)
	want := []uint8{1, 5, 8}
	if len(ids) != len(want) {
		t.Fatalf("wrong preset count: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("bad order: have %v, want %v", ids, want)
		}
	}
	if s.lastID != 8 {
		t.Fatalf("bad lastID: %d", s.lastID)
	}
}

func TestStoreDuplicatesAndCapacity(t *testing.T) {
	params := []PresetParam{
		{ID: 1, Name: "a"},
		{ID: 1, Name: "dup"},
		{ID: 2, Name: "b", Properties: hasp.PropWritable},
		{ID: 3, Name: "c"},
	}

	s, writable := newPresetStore(params, 2)
	if !writable {
		t.Fatalf("writable preset not reported")
	}

	ids := storeIDs(s)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("bad store contents: %v", ids)
	}
	if s.lookup(1).name != "a" {
		t.Fatalf("duplicate id replaced original: %q", s.lookup(1).name)
	}
}

func TestStoreNameClamp(t *testing.T) {
	long := make([]byte, 60)
	for i := range long {
		long[i] = 'x'
	}

	s, _ := newPresetStore([]PresetParam{{ID: 1, Name: string(long)}}, 1)
	if len(s.lookup(1).name) != hasp.NameLenMax {
		t.Fatalf("name not clamped: %d bytes", len(s.lookup(1).name))
	}
}

func TestFirstVisible(t *testing.T) {
	s, _ := newPresetStore([]PresetParam{
		{ID: 1, Name: "a"},
		{ID: 5, Name: "b"},
		{ID: 8, Name: "c"},
	}, 3)

	if p := s.firstVisible(2, s.lastID); p == nil || p.id != 5 {
		t.Fatalf("firstVisible(2): %+v", p)
	}

	s.lookup(5).hidden = true
	if p := s.firstVisible(2, s.lastID); p == nil || p.id != 8 {
		t.Fatalf("firstVisible skipping hidden: %+v", p)
	}

	if p := s.firstVisible(9, s.lastID); p != nil {
		t.Fatalf("firstVisible past end: %+v", p)
	}
}

func TestNextPrevAvailableWrap(t *testing.T) {
	s, _ := newPresetStore([]PresetParam{
		{ID: 1, Name: "a", Properties: hasp.PropAvailable},
		{ID: 5, Name: "b"},
		{ID: 8, Name: "c", Properties: hasp.PropAvailable},
	}, 3)

	if p := s.nextAvailable(1); p == nil || p.id != 8 {
		t.Fatalf("nextAvailable(1): %+v", p)
	}
	if p := s.nextAvailable(8); p == nil || p.id != 1 {
		t.Fatalf("nextAvailable wrap: %+v", p)
	}

	if p := s.prevAvailable(8); p == nil || p.id != 1 {
		t.Fatalf("prevAvailable(8): %+v", p)
	}
	if p := s.prevAvailable(1); p == nil || p.id != 8 {
		t.Fatalf("prevAvailable wrap: %+v", p)
	}
}

func TestWrapIdentity(t *testing.T) {
	s, _ := newPresetStore([]PresetParam{
		{ID: 3, Name: "only", Properties: hasp.PropAvailable},
		{ID: 7, Name: "off"},
	}, 2)

	// With a single available preset the circular search comes back around
	// to the active preset itself.
	if p := s.nextAvailable(3); p == nil || p.id != 3 {
		t.Fatalf("nextAvailable identity: %+v", p)
	}
	if p := s.prevAvailable(3); p == nil || p.id != 3 {
		t.Fatalf("prevAvailable identity: %+v", p)
	}
}

func TestNoAvailable(t *testing.T) {
	s, _ := newPresetStore([]PresetParam{{ID: 1, Name: "a"}}, 1)

	if p := s.nextAvailable(0); p != nil {
		t.Fatalf("nextAvailable on empty: %+v", p)
	}
	if p := s.prevAvailable(0); p != nil {
		t.Fatalf("prevAvailable on empty: %+v", p)
	}
}

func TestPrevVisibleID(t *testing.T) {
	s, _ := newPresetStore([]PresetParam{
		{ID: 1, Name: "a"},
		{ID: 5, Name: "b"},
		{ID: 8, Name: "c"},
	}, 3)

	if id := s.prevVisibleID(s.lookup(1)); id != 0 {
		t.Fatalf("prevVisibleID(first): %d", id)
	}
	if id := s.prevVisibleID(s.lookup(8)); id != 5 {
		t.Fatalf("prevVisibleID(8): %d", id)
	}

	s.lookup(5).hidden = true
	if id := s.prevVisibleID(s.lookup(8)); id != 1 {
		t.Fatalf("prevVisibleID skipping hidden: %d", id)
	}
}

func TestNameAwareness(t *testing.T) {
	s, _ := newPresetStore([]PresetParam{{ID: 1, Name: "a"}}, 1)
	p := s.lookup(1)

	p.setNameAware("peer0")
	p.setNameAware("peer1")
	if !p.isNameAware("peer0") || !p.isNameAware("peer1") {
		t.Fatalf("awareness not recorded")
	}

	p.clearNameAware("peer0")
	if p.isNameAware("peer0") || !p.isNameAware("peer1") {
		t.Fatalf("per-peer clear broken")
	}

	p.clearAllNameAware()
	if p.isNameAware("peer1") {
		t.Fatalf("global clear broken")
	}
}
