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

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearsys/hasmgr/hasmgr/config"
	"github.com/hearsys/hasmgr/hasmgr/hmutil"
	"github.com/hearsys/hasmgr/hasx/gatt"
	"github.com/hearsys/hasmgr/hasx/has"
	"github.com/hearsys/hasmgr/hasx/hasc"
)

const dfltPeerID = "peer0"

var onExitCb func()

func SetOnExit(cb func()) {
	onExitCb = cb
}

func runOnExit() {
	if onExitCb != nil {
		onExitCb()
	}
}

// hmUsage prints the error and the command usage, then exits.
func hmUsage(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	}

	if cmd != nil {
		fmt.Fprintf(os.Stderr, "\n")
		cmd.Help()
	}

	runOnExit()
	os.Exit(1)
}

// hmExitOnError prints the error and exits without usage text.
func hmExitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		runOnExit()
		os.Exit(1)
	}
}

// runEnv is one fully wired in-process stack: a server built from the server
// configuration, a loopback transport and a discovered client.
type runEnv struct {
	lb     *gatt.Loopback
	srv    *has.Server
	conn   *gatt.LoopbackConn
	client *hasc.Client
}

// resolvePeer merges the peer profile with the command line overrides.
func resolvePeer() (string, bool, int, error) {
	id := dfltPeerID
	bonded := false
	mtu := 0

	if hmutil.PeerProfile != "" {
		pp, err := config.GlobalPeerProfileMgr().GetPeerProfile(
			hmutil.PeerProfile)
		if err != nil {
			return "", false, 0, err
		}
		id = pp.PeerID
		bonded = pp.Bonded
		mtu = pp.Mtu
	}

	if hmutil.PeerID != "" {
		id = hmutil.PeerID
	}
	if hmutil.Bonded {
		bonded = true
	}
	if hmutil.Mtu != 0 {
		mtu = hmutil.Mtu
	}

	return id, bonded, mtu, nil
}

func loadServerCfg() (*config.ServerCfg, error) {
	if hmutil.ServerCfgFile == "" {
		return config.DefaultServerCfg(), nil
	}
	return config.ReadServerCfg(hmutil.ServerCfgFile)
}

// startEnv builds the stack and runs the client discovery chain.
func startEnv(handlers hasc.Handlers) (*runEnv, error) {
	scfg, err := loadServerCfg()
	if err != nil {
		return nil, err
	}

	hcfg, params, err := scfg.HasConfig()
	if err != nil {
		return nil, err
	}

	lb := gatt.NewLoopback(gatt.LoopbackConfig{})

	srv, err := has.NewServer(hcfg, lb, has.Ops{
		ActiveSet: func(id uint8, sync bool) error {
			return nil
		},
	}, params)
	if err != nil {
		return nil, err
	}
	lb.Attach(srv)

	peerID, bonded, mtu, err := resolvePeer()
	if err != nil {
		srv.Close()
		return nil, err
	}

	conn, err := lb.Connect(peerID, bonded)
	if err != nil {
		srv.Close()
		return nil, err
	}
	if mtu != 0 {
		lb.SetMTU(conn, mtu)
	}
	lb.Encrypt(conn)

	client, err := hasc.NewClient(lb, conn, handlers)
	if err != nil {
		lb.Disconnect(conn)
		srv.Close()
		return nil, err
	}

	if err := client.Discover(); err != nil {
		client.Close()
		lb.Disconnect(conn)
		srv.Close()
		return nil, err
	}

	return &runEnv{
		lb:     lb,
		srv:    srv,
		conn:   conn,
		client: client,
	}, nil
}

func (env *runEnv) stop() {
	env.client.Close()
	env.lb.Disconnect(env.conn)
	env.srv.Close()
}
