/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/polytran/internal/orchestrator"
	"github.com/valpere/polytran/internal/resolver"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Inspect translation paths",
}

var pathResolveCmd = &cobra.Command{
	Use:   "resolve <source> <target>",
	Short: "Show the languages a translation passes through and the backend of every hop",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, target := resolver.Canonical(args[0]), resolver.Canonical(args[1])
		if err := resolver.CheckPair(source, target); err != nil {
			return err
		}
		path := resolver.Resolve(source, target, cfg.Translation.Rules)
		mapping, fell := orchestrator.EffectiveMapping(path, cfg.Translation.Mapping)

		fmt.Println(strings.Join(path, " -> "))
		fallback := make(map[string]bool, len(fell))
		for _, hop := range fell {
			fallback[hop] = true
		}
		for _, hop := range path.Hops() {
			key := resolver.HopKey(hop[0], hop[1])
			id, note := mapping[key], ""
			if id == "" {
				id = "(none)"
			}
			if fallback[key] {
				note = " (fallback)"
			}
			fmt.Printf("  %s: %s%s\n", key, id, note)
		}
		return nil
	},
}

var pathValidateCmd = &cobra.Command{
	Use:   "validate <source> <target>",
	Short: "Check that every hop of a path has a usable backend",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, target := resolver.Canonical(args[0]), resolver.Canonical(args[1])
		if err := resolver.CheckPair(source, target); err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path := resolver.Resolve(source, target, cfg.Translation.Rules)
		mapping, _ := orchestrator.EffectiveMapping(path, cfg.Translation.Mapping)
		report := a.Validator.ValidatePath(cmd.Context(), path, mapping, a.Settings)
		if report.Valid {
			fmt.Printf("Path %s is valid\n", strings.Join(path, " -> "))
			return nil
		}

		for _, hop := range report.Hops() {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", hop, report.Errors[hop])
		}
		return report.Err()
	},
}

func init() {
	rootCmd.AddCommand(pathCmd)
	pathCmd.AddCommand(pathResolveCmd)
	pathCmd.AddCommand(pathValidateCmd)
}
