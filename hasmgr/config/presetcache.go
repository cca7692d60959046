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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"

	"github.com/hearsys/hasmgr/hasmgr/hmutil"
)

// CachedPreset is one preset record as last read from a peer.
type CachedPreset struct {
	ID         uint8  `codec:"id"`
	Properties uint8  `codec:"props"`
	Name       string `codec:"name"`
}

// PresetCache persists, per peer, the preset list most recently read from it.
// The cache is CBOR on disk.
type PresetCache struct {
	Peers map[string][]CachedPreset `codec:"peers"`
}

func presetCacheFilename() (string, error) {
	dir, err := homedir.Dir()
	if err != nil {
		return "", errors.WithStack(err)
	}

	return filepath.Join(dir, hmutil.ToolInfo.CacheFilename), nil
}

func LoadPresetCache() (*PresetCache, error) {
	pc := &PresetCache{
		Peers: map[string][]CachedPreset{},
	}

	filename, err := presetCacheFilename()
	if err != nil {
		return nil, err
	}

	log.Debugf("Reading preset cache from %s", filename)
	blob, err := ioutil.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return pc, nil
		}
		return nil, errors.WithStack(err)
	}

	dec := codec.NewDecoderBytes(blob, new(codec.CborHandle))
	if err := dec.Decode(pc); err != nil {
		return nil, errors.Wrapf(err, "error reading preset cache (%s)",
			filename)
	}

	return pc, nil
}

func (pc *PresetCache) Save() error {
	var blob []byte
	enc := codec.NewEncoderBytes(&blob, new(codec.CborHandle))
	if err := enc.Encode(pc); err != nil {
		return errors.WithStack(err)
	}

	filename, err := presetCacheFilename()
	if err != nil {
		return err
	}

	if err := ioutil.WriteFile(filename, blob, 0644); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (pc *PresetCache) Put(peerID string, presets []CachedPreset) {
	pc.Peers[peerID] = presets
}

func (pc *PresetCache) Get(peerID string) []CachedPreset {
	return pc.Peers[peerID]
}
