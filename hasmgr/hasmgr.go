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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearsys/hasmgr/hasmgr/cli"
	"github.com/hearsys/hasmgr/hasmgr/config"
	"github.com/hearsys/hasmgr/hasmgr/hmutil"
)

func main() {
	hmutil.ToolInfo = hmutil.ToolInfoType{
		ExeName:       "hasmgr",
		ShortName:     "hasmgr",
		LongName:      "hasmgr, the hearing access preset manager",
		VersionString: "0.1.0",
		CfgFilename:   ".hasmgr.peers.json",
		CacheFilename: ".hasmgr.presets.cbor",
	}

	if err := config.InitGlobalPeerProfileMgr(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		os.Exit(0)
	}()

	cli.Commands().Execute()
}
