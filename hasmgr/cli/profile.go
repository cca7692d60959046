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
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/hearsys/hasmgr/hasmgr/config"
	"github.com/hearsys/hasmgr/hasx/hasp"
)

func peerProfileAddCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		hmUsage(cmd, fmt.Errorf("missing peer profile name"))
	}

	name := args[0]
	pp := &config.PeerProfile{
		Name:   name,
		PeerID: name,
	}

	for _, arg := range args[1:] {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			hmUsage(cmd, fmt.Errorf("invalid argument: %s", arg))
		}

		var err error
		switch parts[0] {
		case "peer":
			pp.PeerID = parts[1]
		case "bonded":
			pp.Bonded, err = cast.ToBoolE(parts[1])
		case "mtu":
			pp.Mtu, err = cast.ToIntE(parts[1])
		default:
			err = fmt.Errorf("unknown setting: %s", parts[0])
		}
		if err != nil {
			hmUsage(cmd, err)
		}
	}

	if err := config.GlobalPeerProfileMgr().AddPeerProfile(pp); err != nil {
		hmExitOnError(err)
	}

	fmt.Printf("peer profile %s successfully added\n", name)
}

func peerProfileShowCmd(cmd *cobra.Command, args []string) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	ppm := config.GlobalPeerProfileMgr()

	ppList, err := ppm.GetPeerProfileList()
	if err != nil {
		hmExitOnError(err)
	}

	found := false
	for _, pp := range ppList {
		if name == "" || name == pp.Name {
			fmt.Printf("  %s\n", pp)
			found = true
		}
	}

	if !found {
		if name == "" {
			fmt.Printf("no peer profiles found\n")
		} else {
			fmt.Printf("peer profile %s not found\n", name)
		}
	}
}

func peerProfileDelCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		hmUsage(cmd, fmt.Errorf("missing peer profile name"))
	}

	name := args[0]
	if err := config.GlobalPeerProfileMgr().DeletePeerProfile(name); err != nil {
		hmExitOnError(err)
	}

	fmt.Printf("peer profile %s successfully deleted\n", name)
}

func peerProfileCmd() *cobra.Command {
	ppCmd := &cobra.Command{
		Use:   "peer",
		Short: "Manage peer profiles",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	ppCmd.AddCommand(&cobra.Command{
		Use:   "add <name> [peer=<id>] [bonded=<bool>] [mtu=<n>]",
		Short: "Add a peer profile",
		Run:   peerProfileAddCmd,
	})

	ppCmd.AddCommand(&cobra.Command{
		Use:   "show [name]",
		Short: "Show peer profiles",
		Run:   peerProfileShowCmd,
	})

	ppCmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a peer profile",
		Run:   peerProfileDelCmd,
	})

	return ppCmd
}

func presetCacheShowCmd(cmd *cobra.Command, args []string) {
	cache, err := config.LoadPresetCache()
	if err != nil {
		hmExitOnError(err)
	}

	peer := ""
	if len(args) > 0 {
		peer = args[0]
	}

	found := false
	for id, presets := range cache.Peers {
		if peer != "" && peer != id {
			continue
		}
		found = true

		fmt.Printf("%s:\n", id)
		for _, p := range presets {
			fmt.Printf("  %3d  %-2s  %s\n", p.ID,
				propFlags(hasp.Properties(p.Properties)), p.Name)
		}
	}

	if !found {
		fmt.Printf("no cached presets\n")
	}
}

func presetCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache [peer-id]",
		Short: "Show presets cached from earlier reads",
		Run:   presetCacheShowCmd,
	}
}
