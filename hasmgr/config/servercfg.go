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

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hearsys/hasmgr/hasx/has"
	"github.com/hearsys/hasmgr/hasx/hasp"
)

// PresetCfg is one preset record in the server configuration file.
type PresetCfg struct {
	ID        uint8  `yaml:"id"`
	Name      string `yaml:"name"`
	Writable  bool   `yaml:"writable"`
	Available bool   `yaml:"available"`
}

// ServerCfg is the YAML server configuration.
type ServerCfg struct {
	Type               string      `yaml:"type"`
	PresetSync         bool        `yaml:"preset_sync"`
	IndependentPresets bool        `yaml:"independent_presets"`
	MaxClients         int         `yaml:"max_clients"`
	Presets            []PresetCfg `yaml:"presets"`
}

// DefaultServerCfg is the configuration used when no file is supplied.
func DefaultServerCfg() *ServerCfg {
	return &ServerCfg{
		Type: "binaural",
		Presets: []PresetCfg{
			{ID: 1, Name: "Universal", Writable: true, Available: true},
			{ID: 5, Name: "Outdoor", Writable: true, Available: true},
			{ID: 8, Name: "Noisy environment", Writable: false, Available: true},
		},
	}
}

func ReadServerCfg(path string) (*ServerCfg, error) {
	blob, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading server config %s", path)
	}

	cfg := &ServerCfg{}
	if err := yaml.Unmarshal(blob, cfg); err != nil {
		return nil, errors.Wrapf(err, "error parsing server config %s", path)
	}

	return cfg, nil
}

func parseHearingAidType(s string) (hasp.HearingAidType, error) {
	switch s {
	case "", "binaural":
		return hasp.TypeBinaural, nil
	case "monaural":
		return hasp.TypeMonaural, nil
	case "banded":
		return hasp.TypeBanded, nil
	default:
		return 0, errors.Errorf("invalid hearing aid type: %s", s)
	}
}

// HasConfig converts the file representation to the server's registration
// parameters.
func (cfg *ServerCfg) HasConfig() (has.Config, []has.PresetParam, error) {
	typ, err := parseHearingAidType(cfg.Type)
	if err != nil {
		return has.Config{}, nil, err
	}

	hcfg := has.Config{
		Type:               typ,
		PresetSync:         cfg.PresetSync,
		IndependentPresets: cfg.IndependentPresets,
		MaxClients:         cfg.MaxClients,
	}

	var params []has.PresetParam
	for _, pc := range cfg.Presets {
		if pc.ID == hasp.ActivePresetNone {
			return has.Config{}, nil, errors.Errorf(
				"preset id 0 is reserved (%q)", pc.Name)
		}
		if !hasp.ValidNameLen(len(pc.Name)) {
			return has.Config{}, nil, errors.Errorf(
				"preset %d: bad name length %d", pc.ID, len(pc.Name))
		}

		var props hasp.Properties
		if pc.Writable {
			props |= hasp.PropWritable
		}
		if pc.Available {
			props |= hasp.PropAvailable
		}

		params = append(params, has.PresetParam{
			ID:         pc.ID,
			Properties: props,
			Name:       pc.Name,
		})
	}

	return hcfg, params, nil
}
