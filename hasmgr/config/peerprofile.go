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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hearsys/hasmgr/hasmgr/hmutil"
)

// PeerProfile names a simulated peer and how it connects.
type PeerProfile struct {
	Name   string `json:"MyName"`
	PeerID string `json:"MyPeerId"`
	Bonded bool   `json:"MyBonded"`
	Mtu    int    `json:"MyMtu"`
}

func (p *PeerProfile) String() string {
	return fmt.Sprintf("name=%s peer=%s bonded=%v mtu=%d",
		p.Name, p.PeerID, p.Bonded, p.Mtu)
}

type PeerProfileMgr struct {
	profiles map[string]*PeerProfile
}

func NewPeerProfileMgr() (*PeerProfileMgr, error) {
	ppm := &PeerProfileMgr{
		profiles: map[string]*PeerProfile{},
	}

	if err := ppm.Init(); err != nil {
		return nil, err
	}

	return ppm, nil
}

func peerProfileCfgFilename() (string, error) {
	dir, err := homedir.Dir()
	if err != nil {
		return "", errors.WithStack(err)
	}

	return filepath.Join(dir, hmutil.ToolInfo.CfgFilename), nil
}

func (ppm *PeerProfileMgr) Init() error {
	filename, err := peerProfileCfgFilename()
	if err != nil {
		return err
	}

	log.Debugf("Reading peer profiles from %s", filename)
	blob, err := ioutil.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}

	var profiles []*PeerProfile
	if err := json.Unmarshal(blob, &profiles); err != nil {
		return errors.Wrapf(err, "error reading peer profile config (%s)",
			filename)
	}

	for _, p := range profiles {
		ppm.profiles[p.Name] = p
	}

	return nil
}

func SortPeerProfs(pps []*PeerProfile) []*PeerProfile {
	sorted := make([]*PeerProfile, len(pps))
	copy(sorted, pps)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

func (ppm *PeerProfileMgr) GetPeerProfileList() ([]*PeerProfile, error) {
	ppList := make([]*PeerProfile, 0, len(ppm.profiles))
	for _, p := range ppm.profiles {
		ppList = append(ppList, p)
	}

	return SortPeerProfs(ppList), nil
}

func (ppm *PeerProfileMgr) save() error {
	list, _ := ppm.GetPeerProfileList()
	b, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return errors.WithStack(err)
	}

	filename, err := peerProfileCfgFilename()
	if err != nil {
		return err
	}

	if err := ioutil.WriteFile(filename, b, 0644); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (ppm *PeerProfileMgr) DeletePeerProfile(name string) error {
	if ppm.profiles[name] == nil {
		return errors.Errorf("peer profile \"%s\" doesn't exist", name)
	}

	delete(ppm.profiles, name)

	return ppm.save()
}

func (ppm *PeerProfileMgr) AddPeerProfile(pp *PeerProfile) error {
	ppm.profiles[pp.Name] = pp

	return ppm.save()
}

func (ppm *PeerProfileMgr) GetPeerProfile(name string) (*PeerProfile, error) {
	p := ppm.profiles[name]
	if p == nil {
		return nil, errors.Errorf("peer profile \"%s\" doesn't exist", name)
	}

	return p, nil
}

var globalPeerProfileMgr *PeerProfileMgr

func GlobalPeerProfileMgr() *PeerProfileMgr {
	if globalPeerProfileMgr == nil {
		panic("peer profile manager not initialized")
	}
	return globalPeerProfileMgr
}

func InitGlobalPeerProfileMgr() error {
	if globalPeerProfileMgr != nil {
		return errors.New("peer profile manager initialized twice")
	}

	var err error
	globalPeerProfileMgr, err = NewPeerProfileMgr()
	if err != nil {
		return err
	}

	return nil
}
