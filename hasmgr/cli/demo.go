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

	"github.com/spf13/cobra"

	"github.com/hearsys/hasmgr/hasx/hasc"
	"github.com/hearsys/hasmgr/hasx/hasp"
)

const demoEventWait = time.Second

func demoAwaitEvent(ch chan hasc.ChangeEvent) {
	select {
	case ev := <-ch:
		fmt.Printf("<< %s\n", fmtChangeEvent(ev))
	case <-time.After(demoEventWait):
		fmt.Printf("<< (no change event)\n")
	}
}

func demoAwaitActive(ch chan uint8) {
	select {
	case id := <-ch:
		fmt.Printf("<< active preset: %d\n", id)
	case <-time.After(demoEventWait):
		fmt.Printf("<< (no active preset change)\n")
	}
}

// demoRunCmd walks a scripted session against the in-process server: list,
// activate, step, rename, availability toggle and delete-restore.
func demoRunCmd(cmd *cobra.Command, args []string) {
	activeCh := make(chan uint8, 16)
	evCh := make(chan hasc.ChangeEvent, 16)

	env, err := startEnv(hasc.Handlers{
		ActivePreset:  func(id uint8) { activeCh <- id },
		PresetChanged: func(ev hasc.ChangeEvent) { evCh <- ev },
	})
	if err != nil {
		hmExitOnError(err)
	}
	defer env.stop()

	f, err := env.client.Features()
	if err != nil {
		hmExitOnError(err)
	}
	fmt.Printf("connected to %s; hearing aid type: %s\n", env.conn.ID(),
		f.Type())

	fmt.Printf("\n>> reading preset list\n")
	var presets []hasc.Preset
	err = env.client.PresetReadMultiple(1, 255,
		func(p hasc.Preset, isLast bool) bool {
			printPresetRow(p, hasp.ActivePresetNone)
			presets = append(presets, p)
			return true
		})
	if err != nil {
		hmExitOnError(err)
	}
	if len(presets) == 0 {
		hmExitOnError(fmt.Errorf("server has no presets"))
	}

	var first *hasc.Preset
	for i := range presets {
		if presets[i].Properties.Available() {
			first = &presets[i]
			break
		}
	}
	if first == nil {
		hmExitOnError(fmt.Errorf("server has no available presets"))
	}

	fmt.Printf("\n>> activating preset %d (%s)\n", first.ID, first.Name)
	if err := env.client.ActiveSet(first.ID, false); err != nil {
		hmExitOnError(err)
	}
	demoAwaitActive(activeCh)

	fmt.Printf("\n>> stepping to the next available preset\n")
	if err := env.client.ActiveSetNext(false); err != nil {
		hmExitOnError(err)
	}
	demoAwaitActive(activeCh)

	fmt.Printf("\n>> stepping back\n")
	if err := env.client.ActiveSetPrev(false); err != nil {
		hmExitOnError(err)
	}
	demoAwaitActive(activeCh)

	for i := range presets {
		if !presets[i].Properties.Writable() {
			continue
		}
		p := &presets[i]
		name := p.Name + "+"

		fmt.Printf("\n>> renaming preset %d to %q\n", p.ID, name)
		if err := env.client.NameSet(p.ID, name); err != nil {
			hmExitOnError(err)
		}
		demoAwaitEvent(evCh)
		break
	}

	fmt.Printf("\n>> server marks preset %d unavailable\n", first.ID)
	if err := env.srv.AvailabilitySet(first.ID, false); err != nil {
		hmExitOnError(err)
	}
	demoAwaitEvent(evCh)

	fmt.Printf(">> and available again\n")
	if err := env.srv.AvailabilitySet(first.ID, true); err != nil {
		hmExitOnError(err)
	}
	demoAwaitEvent(evCh)

	last := presets[len(presets)-1]
	fmt.Printf("\n>> server hides preset %d\n", last.ID)
	if err := env.srv.VisibilitySet(last.ID, false); err != nil {
		hmExitOnError(err)
	}
	demoAwaitEvent(evCh)

	fmt.Printf(">> and restores it\n")
	if err := env.srv.VisibilitySet(last.ID, true); err != nil {
		hmExitOnError(err)
	}
	demoAwaitEvent(evCh)

	fmt.Printf("\ndemo complete\n")
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted session against the built-in server",
		Run:   demoRunCmd,
	}
}
