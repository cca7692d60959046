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
	"github.com/hearsys/hasmgr/hasx/hasp"
)

// PresetParam describes one preset record supplied at registration.
type PresetParam struct {
	ID         uint8
	Properties hasp.Properties
	Name       string
}

// preset is one record of the server's preset list.  Ids are assigned at
// registration and never reused; records are only ever hidden, not removed.
type preset struct {
	id     uint8
	props  hasp.Properties
	name   string
	hidden bool

	// Peers (by connection id) already informed of the current name.
	nameAware map[string]bool
}

func (p *preset) isNameAware(connID string) bool {
	return p.nameAware[connID]
}

func (p *preset) setNameAware(connID string) {
	p.nameAware[connID] = true
}

func (p *preset) clearNameAware(connID string) {
	delete(p.nameAware, connID)
}

func (p *preset) clearAllNameAware() {
	p.nameAware = map[string]bool{}
}

// presetStore keeps the registered presets in ascending id order.
type presetStore struct {
	presets []*preset
	lastID  uint8
}

// newPresetStore builds the store from the caller-supplied records,
// inserting them in ascending id order regardless of input order.  Duplicate
// ids and records beyond capacity are dropped.  The second return value
// reports whether any inserted preset is writable.
func newPresetStore(params []PresetParam, capacity int) (*presetStore, bool) {
	s := &presetStore{}
	writable := false

	for len(s.presets) < capacity {
		var next *PresetParam
		for i := range params {
			pp := &params[i]
			if pp.ID <= s.lastID {
				continue
			}
			if next == nil || pp.ID < next.ID {
				next = pp
			}
		}
		if next == nil {
			break
		}

		name := next.Name
		if len(name) > hasp.NameLenMax {
			name = name[:hasp.NameLenMax]
		}

		s.presets = append(s.presets, &preset{
			id:        next.ID,
			props:     next.Properties,
			name:      name,
			nameAware: map[string]bool{},
		})
		s.lastID = next.ID

		writable = writable || next.Properties.Writable()
	}

	return s, writable
}

func (s *presetStore) lookup(id uint8) *preset {
	for _, p := range s.presets {
		if p.id == id {
			return p
		}
	}
	return nil
}

// foreach walks presets with ids in [start, end] in ascending order, calling
// fn on each.  fn returns whether the preset matched; the walk stops after
// limit matches.  A limit of 0 means no limit.
func (s *presetStore) foreach(start, end uint8, limit int, fn func(*preset) bool) {
	if limit == 0 {
		limit = int(^uint8(0))
	}

	for _, p := range s.presets {
		if p.id < start {
			continue
		}
		if p.id > end {
			return
		}

		if !fn(p) {
			continue
		}

		limit--
		if limit == 0 {
			return
		}
	}
}

// firstVisible returns the lowest-id non-hidden preset in [start, end].
func (s *presetStore) firstVisible(start, end uint8) *preset {
	var found *preset
	s.foreach(start, end, 1, func(p *preset) bool {
		if p.hidden {
			return false
		}
		found = p
		return true
	})
	return found
}

func (s *presetStore) available() []*preset {
	var out []*preset
	for _, p := range s.presets {
		if !p.hidden && p.props.Available() {
			out = append(out, p)
		}
	}
	return out
}

// nextAvailable performs a wrap-around search for the first available,
// visible preset after activeID.  When no other candidate qualifies the
// search comes back around to the active preset itself.
func (s *presetStore) nextAvailable(activeID uint8) *preset {
	avail := s.available()
	if len(avail) == 0 {
		return nil
	}

	for _, p := range avail {
		if p.id > activeID {
			return p
		}
	}
	return avail[0]
}

// prevAvailable is the descending counterpart of nextAvailable.
func (s *presetStore) prevAvailable(activeID uint8) *preset {
	avail := s.available()
	if len(avail) == 0 {
		return nil
	}

	for i := len(avail) - 1; i >= 0; i-- {
		if avail[i].id < activeID {
			return avail[i]
		}
	}
	return avail[len(avail)-1]
}

// prevVisibleID returns the id of the visible preset immediately preceding
// p in the list, or 0 if p is the first visible record.
func (s *presetStore) prevVisibleID(p *preset) uint8 {
	var prev uint8
	for _, q := range s.presets {
		if q.id >= p.id {
			break
		}
		if !q.hidden {
			prev = q.id
		}
	}
	return prev
}
