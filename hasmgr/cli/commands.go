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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hearsys/hasmgr/hasmgr/hmutil"
	"github.com/hearsys/hasmgr/hasx/hxutil"
)

var HasmgrLogLevel log.Level

func Commands() *cobra.Command {
	logLevelStr := ""
	hmCmd := &cobra.Command{
		Use: hmutil.ToolInfo.ExeName,
		Short: hmutil.ToolInfo.ShortName +
			" helps you manage hearing aid presets",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			HasmgrLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				hmUsage(nil, err)
			}

			hxutil.SetLogLevel(HasmgrLogLevel)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	hmCmd.PersistentFlags().StringVarP(&hmutil.PeerProfile, "profile", "p", "",
		"peer profile to use")

	hmCmd.PersistentFlags().StringVar(&hmutil.PeerID, "peer", "",
		"peer identifier; overrides profile setting")

	hmCmd.PersistentFlags().BoolVar(&hmutil.Bonded, "bonded", false,
		"treat the peer link as bonded")

	hmCmd.PersistentFlags().IntVar(&hmutil.Mtu, "mtu", 0,
		"ATT MTU to use; overrides profile setting")

	hmCmd.PersistentFlags().StringVarP(&hmutil.ServerCfgFile, "conf", "f", "",
		"server configuration file (YAML); built-in defaults if omitted")

	hmCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l", "info",
		"log level to use")

	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the " + hmutil.ToolInfo.ShortName + " version number",
		Example: "  " + hmutil.ToolInfo.ExeName + " version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n",
				hmutil.ToolInfo.LongName,
				hmutil.ToolInfo.VersionString)
		},
	}
	hmCmd.AddCommand(versCmd)

	hmCmd.AddCommand(featuresCmd())
	hmCmd.AddCommand(presetCmd())
	hmCmd.AddCommand(activeCmd())
	hmCmd.AddCommand(peerProfileCmd())
	hmCmd.AddCommand(presetCacheCmd())
	hmCmd.AddCommand(interactiveCmd())
	hmCmd.AddCommand(demoCmd())

	return hmCmd
}
