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

	"github.com/spf13/cobra"
	"gopkg.in/abiosoft/ishell.v2"

	"github.com/hearsys/hasmgr/hasmgr/hmutil"
	"github.com/hearsys/hasmgr/hasx/hasc"
	"github.com/hearsys/hasmgr/hasx/hasp"
)

// The interactive mode keeps one stack alive across commands, so unsolicited
// preset-changed and active-preset events are visible as they arrive.
var shellEnv *runEnv

func fmtChangeEvent(ev hasc.ChangeEvent) string {
	switch ev.ChangeID {
	case hasp.ChangeGenericUpdate:
		return fmt.Sprintf("update: id=%d prev=%d flags=%s name=%q",
			ev.Generic.ID, ev.PrevID, propFlags(ev.Generic.Properties),
			ev.Generic.Name)
	default:
		return fmt.Sprintf("%s: id=%d", ev.ChangeID, ev.ID)
	}
}

func shellPresetID(c *ishell.Context) (uint8, bool) {
	if len(c.Args) < 1 {
		c.Println("missing preset id")
		return 0, false
	}

	id, err := parsePresetID(c.Args[0])
	if err != nil {
		c.Println(err.Error())
		return 0, false
	}
	return id, true
}

func shellListCmd(c *ishell.Context) {
	activeID, err := shellEnv.client.ActivePreset()
	if err != nil {
		c.Println(err.Error())
		return
	}

	err = shellEnv.client.PresetReadMultiple(1, 255,
		func(p hasc.Preset, isLast bool) bool {
			printPresetRow(p, activeID)
			return true
		})
	if err != nil {
		c.Println(err.Error())
	}
}

func shellShowCmd(c *ishell.Context) {
	id, ok := shellPresetID(c)
	if !ok {
		return
	}

	p, err := shellEnv.client.PresetRead(id)
	if err != nil {
		c.Println(err.Error())
		return
	}

	printPresetFields(*p)
}

func shellRenameCmd(c *ishell.Context) {
	id, ok := shellPresetID(c)
	if !ok {
		return
	}
	if len(c.Args) < 2 {
		c.Println("missing preset name")
		return
	}

	if err := shellEnv.client.NameSet(id, c.Args[1]); err != nil {
		c.Println(err.Error())
	}
}

func shellActiveCmd(c *ishell.Context) {
	id, err := shellEnv.client.ActivePreset()
	if err != nil {
		c.Println(err.Error())
		return
	}

	if id == hasp.ActivePresetNone {
		c.Println("no active preset")
	} else {
		c.Printf("active preset: %d\n", id)
	}
}

func shellSetCmd(c *ishell.Context) {
	id, ok := shellPresetID(c)
	if !ok {
		return
	}

	if err := shellEnv.client.ActiveSet(id, false); err != nil {
		c.Println(err.Error())
	}
}

func shellNextCmd(c *ishell.Context) {
	if err := shellEnv.client.ActiveSetNext(false); err != nil {
		c.Println(err.Error())
	}
}

func shellPrevCmd(c *ishell.Context) {
	if err := shellEnv.client.ActiveSetPrev(false); err != nil {
		c.Println(err.Error())
	}
}

func shellFeaturesCmd(c *ishell.Context) {
	f, err := shellEnv.client.Features()
	if err != nil {
		c.Println(err.Error())
		return
	}

	c.Printf("features: 0x%02x (%s)\n", uint8(f), f.Type())
}

// Server-side manipulation commands, for observing the resulting change
// events on the client side.

func shellHideCmd(c *ishell.Context) {
	id, ok := shellPresetID(c)
	if !ok {
		return
	}

	if err := shellEnv.srv.VisibilitySet(id, false); err != nil {
		c.Println(err.Error())
	}
}

func shellUnhideCmd(c *ishell.Context) {
	id, ok := shellPresetID(c)
	if !ok {
		return
	}

	if err := shellEnv.srv.VisibilitySet(id, true); err != nil {
		c.Println(err.Error())
	}
}

func shellAvailCmd(avail bool) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		id, ok := shellPresetID(c)
		if !ok {
			return
		}

		if err := shellEnv.srv.AvailabilitySet(id, avail); err != nil {
			c.Println(err.Error())
		}
	}
}

func shellSyncCmd(enable bool) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		ind := shellEnv.srv.Features()&hasp.FeatIndependentPresets != 0
		if err := shellEnv.srv.FeaturesSet(enable, ind); err != nil {
			c.Println(err.Error())
		}
	}
}

func startInteractive(cmd *cobra.Command, args []string) {
	// By default a new shell includes 'exit', 'help' and 'clear' commands.
	shell := ishell.New()
	shell.SetPrompt("> ")

	env, err := startEnv(hasc.Handlers{
		ActivePreset: func(id uint8) {
			shell.Printf("<< active preset: %d\n", id)
		},
		PresetChanged: func(ev hasc.ChangeEvent) {
			shell.Printf("<< %s\n", fmtChangeEvent(ev))
		},
	})
	if err != nil {
		hmExitOnError(err)
	}
	shellEnv = env
	defer func() {
		shellEnv = nil
		env.stop()
	}()

	shell.Println()
	shell.Println(" " + hmutil.ToolInfo.ShortName + " shell mode:")
	shell.Println("	Peer: ", env.conn.ID())
	shell.Println()

	shell.AddCmd(&ishell.Cmd{
		Name: "list",
		Help: "List the peer's presets: list",
		Func: shellListCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "show",
		Help: "Show one preset: show <id>",
		Func: shellShowCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "rename",
		Help: "Rename a writable preset: rename <id> <name>",
		Func: shellRenameCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "active",
		Help: "Show the active preset: active",
		Func: shellActiveCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "set",
		Help: "Activate a preset: set <id>",
		Func: shellSetCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "next",
		Help: "Activate the next available preset: next",
		Func: shellNextCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "prev",
		Help: "Activate the previous available preset: prev",
		Func: shellPrevCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "features",
		Help: "Show the peer's features: features",
		Func: shellFeaturesCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "hide",
		Help: "Server side: hide a preset: hide <id>",
		Func: shellHideCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "unhide",
		Help: "Server side: reveal a hidden preset: unhide <id>",
		Func: shellUnhideCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "avail",
		Help: "Server side: mark a preset available: avail <id>",
		Func: shellAvailCmd(true),
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "unavail",
		Help: "Server side: mark a preset unavailable: unavail <id>",
		Func: shellAvailCmd(false),
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "sync",
		Help: "Server side: enable preset sync support: sync",
		Func: shellSyncCmd(true),
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "unsync",
		Help: "Server side: disable preset sync support: unsync",
		Func: shellSyncCmd(false),
	})

	shell.Run()
	shell.Close()
}

func interactiveCmd() *cobra.Command {
	shellCmd := &cobra.Command{
		Use: "interactive",
		Short: "Run " + hmutil.ToolInfo.ShortName +
			" interactive mode",
		Run: startInteractive,
	}

	return shellCmd
}
