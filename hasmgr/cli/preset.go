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
	"time"

	"github.com/fatih/structs"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/hearsys/hasmgr/hasmgr/config"
	"github.com/hearsys/hasmgr/hasmgr/hmutil"
	"github.com/hearsys/hasmgr/hasx/hasc"
	"github.com/hearsys/hasmgr/hasx/hasp"
)

func parsePresetID(s string) (uint8, error) {
	v, err := cast.ToUint8E(s)
	if err != nil {
		return 0, fmt.Errorf("invalid preset id: %s", s)
	}
	if v == hasp.ActivePresetNone {
		return 0, fmt.Errorf("preset id 0 is reserved")
	}
	return v, nil
}

func propFlags(props hasp.Properties) string {
	flags := ""
	if props.Writable() {
		flags += "W"
	}
	if props.Available() {
		flags += "A"
	}
	if flags == "" {
		flags = "-"
	}
	return flags
}

func printPresetRow(p hasc.Preset, activeID uint8) {
	marker := " "
	if p.ID == activeID {
		marker = "*"
	}
	fmt.Printf("%s %3d  %-2s  %s\n", marker, p.ID, propFlags(p.Properties),
		p.Name)
}

func printPresetFields(p hasc.Preset) {
	for _, f := range structs.Fields(p) {
		fmt.Printf("%12s: %v\n", f.Name(), f.Value())
	}
}

func featuresRunCmd(cmd *cobra.Command, args []string) {
	env, err := startEnv(hasc.Handlers{})
	if err != nil {
		hmExitOnError(err)
	}
	defer env.stop()

	f, err := env.client.Features()
	if err != nil {
		hmExitOnError(err)
	}

	fmt.Printf("hearing aid type: %s\n", f.Type())
	fmt.Printf("preset sync support: %v\n", f&hasp.FeatPresetSync != 0)
	fmt.Printf("independent presets: %v\n", f&hasp.FeatIndependentPresets != 0)
	fmt.Printf("dynamic presets: %v\n", f&hasp.FeatDynamicPresets != 0)
	fmt.Printf("writable presets: %v\n", f&hasp.FeatWritablePresets != 0)
}

func featuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Read the hearing aid features of a peer",
		Run:   featuresRunCmd,
	}
}

func presetListRunCmd(cmd *cobra.Command, args []string) {
	startID := uint8(1)
	num := uint8(255)

	var err error
	if len(args) >= 1 {
		if startID, err = parsePresetID(args[0]); err != nil {
			hmUsage(cmd, err)
		}
	}
	if len(args) >= 2 {
		if num, err = cast.ToUint8E(args[1]); err != nil {
			hmUsage(cmd, fmt.Errorf("invalid preset count: %s", args[1]))
		}
	}

	env, err := startEnv(hasc.Handlers{})
	if err != nil {
		hmExitOnError(err)
	}
	defer env.stop()

	activeID, err := env.client.ActivePreset()
	if err != nil {
		hmExitOnError(err)
	}

	var cached []config.CachedPreset
	err = env.client.PresetReadMultiple(startID, num,
		func(p hasc.Preset, isLast bool) bool {
			printPresetRow(p, activeID)
			cached = append(cached, config.CachedPreset{
				ID:         p.ID,
				Properties: uint8(p.Properties),
				Name:       p.Name,
			})
			return true
		})
	if err != nil {
		hmExitOnError(err)
	}

	// Remember what we saw for offline inspection.
	if cache, err := config.LoadPresetCache(); err != nil {
		log.Warnf("cannot read preset cache: %s", err)
	} else {
		cache.Put(env.conn.ID(), cached)
		if err := cache.Save(); err != nil {
			log.Warnf("cannot save preset cache: %s", err)
		}
	}
}

func presetShowRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		hmUsage(cmd, fmt.Errorf("missing preset id"))
	}

	id, err := parsePresetID(args[0])
	if err != nil {
		hmUsage(cmd, err)
	}

	env, err := startEnv(hasc.Handlers{})
	if err != nil {
		hmExitOnError(err)
	}
	defer env.stop()

	p, err := env.client.PresetRead(id)
	if err != nil {
		hmExitOnError(err)
	}

	printPresetFields(*p)
}

func presetRenameRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 2 {
		hmUsage(cmd, fmt.Errorf("missing preset id or name"))
	}

	id, err := parsePresetID(args[0])
	if err != nil {
		hmUsage(cmd, err)
	}

	env, err := startEnv(hasc.Handlers{})
	if err != nil {
		hmExitOnError(err)
	}
	defer env.stop()

	if err := env.client.NameSet(id, args[1]); err != nil {
		hmExitOnError(err)
	}

	fmt.Printf("preset %d renamed to %q\n", id, args[1])
}

func presetCmd() *cobra.Command {
	presetCmd := &cobra.Command{
		Use:   "preset",
		Short: "Read and modify the presets of a peer",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	listEx := "  " + hmutil.ToolInfo.ExeName + " preset list\n"
	listEx += "  " + hmutil.ToolInfo.ExeName + " preset list 5 3"
	presetCmd.AddCommand(&cobra.Command{
		Use:     "list [start-id [count]]",
		Short:   "List the presets of a peer",
		Example: listEx,
		Run:     presetListRunCmd,
	})

	presetCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one preset of a peer",
		Run:   presetShowRunCmd,
	})

	presetCmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a writable preset of a peer",
		Run:   presetRenameRunCmd,
	})

	return presetCmd
}

func activeShowRunCmd(cmd *cobra.Command, args []string) {
	env, err := startEnv(hasc.Handlers{})
	if err != nil {
		hmExitOnError(err)
	}
	defer env.stop()

	id, err := env.client.ActivePreset()
	if err != nil {
		hmExitOnError(err)
	}

	if id == hasp.ActivePresetNone {
		fmt.Printf("no active preset\n")
	} else {
		fmt.Printf("active preset: %d\n", id)
	}
}

// activeChange waits briefly for the active preset index notification that
// follows an accepted set/next/prev request.
func activeChange(env *runEnv, ch chan uint8) {
	select {
	case id := <-ch:
		fmt.Printf("active preset: %d\n", id)
	case <-time.After(time.Second):
		// The server accepted the request but kept the current preset.
		id, err := env.client.ActivePreset()
		if err == nil {
			fmt.Printf("active preset unchanged: %d\n", id)
		}
	}
}

func activeSetRunCmd(syncFlag *bool) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			hmUsage(cmd, fmt.Errorf("missing preset id"))
		}

		id, err := parsePresetID(args[0])
		if err != nil {
			hmUsage(cmd, err)
		}

		ch := make(chan uint8, 1)
		env, err := startEnv(hasc.Handlers{
			ActivePreset: func(id uint8) { ch <- id },
		})
		if err != nil {
			hmExitOnError(err)
		}
		defer env.stop()

		if err := env.client.ActiveSet(id, *syncFlag); err != nil {
			hmExitOnError(err)
		}

		activeChange(env, ch)
	}
}

func activeStepRunCmd(next bool, syncFlag *bool) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ch := make(chan uint8, 1)
		env, err := startEnv(hasc.Handlers{
			ActivePreset: func(id uint8) { ch <- id },
		})
		if err != nil {
			hmExitOnError(err)
		}
		defer env.stop()

		if next {
			err = env.client.ActiveSetNext(*syncFlag)
		} else {
			err = env.client.ActiveSetPrev(*syncFlag)
		}
		if err != nil {
			hmExitOnError(err)
		}

		activeChange(env, ch)
	}
}

func activeCmd() *cobra.Command {
	activeCmd := &cobra.Command{
		Use:   "active",
		Short: "Show or change the active preset of a peer",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	activeCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active preset of a peer",
		Run:   activeShowRunCmd,
	})

	var setSync bool
	setCmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Activate a preset of a peer",
		Run:   activeSetRunCmd(&setSync),
	}
	setCmd.Flags().BoolVar(&setSync, "sync", false,
		"relay the change to the other member of the binaural set")
	activeCmd.AddCommand(setCmd)

	var nextSync bool
	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Activate the next available preset of a peer",
		Run:   activeStepRunCmd(true, &nextSync),
	}
	nextCmd.Flags().BoolVar(&nextSync, "sync", false,
		"relay the change to the other member of the binaural set")
	activeCmd.AddCommand(nextCmd)

	var prevSync bool
	prevCmd := &cobra.Command{
		Use:   "prev",
		Short: "Activate the previous available preset of a peer",
		Run:   activeStepRunCmd(false, &prevSync),
	}
	prevCmd.Flags().BoolVar(&prevSync, "sync", false,
		"relay the change to the other member of the binaural set")
	activeCmd.AddCommand(prevCmd)

	return activeCmd
}
