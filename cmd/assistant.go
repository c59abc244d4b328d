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
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/polytran/internal/backend"
	"github.com/valpere/polytran/internal/managed"
)

var (
	asstFile   string
	asstInput  managed.Assistant
	asstFormat string
)

var assistantCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Manage managed assistants",
	Long: `Managed assistants are stored prompt templates bound to a chat vendor.
Reference one in translation.mapping as "managed_<id>".`,
}

var assistantAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a managed assistant",
	Example: `  polytran assistant add --name fr-editor --vendor openai --format json \
    --system "You translate blog posts." \
    --user '{{ source_lang }} to {{ target_lang }}: {{ translated.title }}'
  polytran assistant add --file assistant.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := asstInput
		if asstFile != "" {
			if err := decodeFile(asstFile, &a); err != nil {
				return err
			}
		} else {
			a.ExpectedFormat = managed.Format(asstFormat)
			a.Active = true
		}

		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Assistants.Save(cmd.Context(), &a); err != nil {
			return err
		}
		fmt.Printf("Stored assistant %s as %s\n", a.Name, backend.Managed(a.ID))
		return nil
	},
}

var assistantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed assistants",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()

		list, err := app.Assistants.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BACKEND ID\tNAME\tVENDOR\tMODEL\tFORMAT\tACTIVE")
		for _, a := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", backend.Managed(a.ID), a.Name, a.Vendor, a.Model, a.ExpectedFormat, a.Active)
		}
		return w.Flush()
	},
}

var assistantDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a managed assistant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseManagedID(args[0])
		if err != nil {
			return err
		}

		app, err := loadApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Assistants.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted assistant %d\n", id)
		return nil
	},
}

// parseManagedID accepts "7" as well as "managed_7".
func parseManagedID(s string) (int, error) {
	if backend.KindOf(s) == backend.KindManaged {
		ref, _ := backend.Parse(s)
		return ref.(backend.ManagedRef).AssistantID, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid assistant id %q", s)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(assistantCmd)
	assistantCmd.AddCommand(assistantAddCmd)
	assistantCmd.AddCommand(assistantListCmd)
	assistantCmd.AddCommand(assistantDeleteCmd)

	f := assistantAddCmd.Flags()
	f.StringVarP(&asstFile, "file", "f", "", "Assistant definition (JSON or YAML)")
	f.IntVar(&asstInput.ID, "id", 0, "Replace the assistant with this id (default: next free id)")
	f.StringVar(&asstInput.Name, "name", "", "Assistant name")
	f.StringVar(&asstInput.Vendor, "vendor", "", "Chat vendor: openai, openrouter, ollama")
	f.StringVar(&asstInput.Model, "model", "", "Model (default: vendor model)")
	f.StringVar(&asstInput.SystemPrompt, "system", "", "System prompt template")
	f.StringVar(&asstInput.UserMessage, "user", "", "User message template")
	f.StringVar(&asstFormat, "format", "text", "Expected output format: text or json")
	f.StringSliceVar(&asstInput.OutputVariables, "output-variables", nil, "Variables to take from a JSON reply")
}
