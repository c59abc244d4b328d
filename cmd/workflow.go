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
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valpere/polytran/internal/jobs"
	"github.com/valpere/polytran/internal/workflow"
)

var (
	workflowLang     string
	workflowBundle   string
	workflowExecID   string
	workflowReplaces bool
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage and run post-processing workflows",
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored and file-defined workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Workflows.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tENABLED\tTRIGGER\tLANGUAGES\tSTEPS")
		for _, wf := range list {
			trigger := wf.Trigger
			if trigger == "" {
				trigger = workflow.TriggerOnTranslation
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%v\t%d\n", wf.ID, wf.Name, wf.Enabled, trigger, wf.Languages, len(wf.Steps))
		}
		return w.Flush()
	},
}

var workflowImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Validate the workflows of a YAML file and store them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wfs, err := workflow.LoadFile(args[0])
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, wf := range wfs {
			if !workflowReplaces {
				if _, err := a.Workflows.Get(cmd.Context(), wf.ID); err == nil {
					fmt.Fprintf(os.Stderr, "Workflow %s exists, skipping (use --replace)\n", wf.ID)
					continue
				}
			}
			if err := a.Workflows.Save(cmd.Context(), wf); err != nil {
				return fmt.Errorf("workflow %s: %w", wf.ID, err)
			}
			fmt.Printf("Stored workflow %s (%d steps)\n", wf.ID, len(wf.Steps))
		}
		return nil
	},
}

var workflowTestCmd = &cobra.Command{
	Use:   "test <workflow-id> [post-id]",
	Short: "Run a workflow in test mode: compute every action, persist nothing",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		wargs := jobs.WorkflowTestArgs{WorkflowID: args[0], Language: workflowLang}
		if len(args) == 2 {
			wargs.PostID = args[1]
		}
		if workflowBundle != "" {
			b, err := readBundle(workflowBundle)
			if err != nil {
				return err
			}
			wargs.Bundle = &b
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := jobs.ArgsFrom(wargs)
		if err != nil {
			return err
		}
		return runJob(cmd.Context(), a, jobs.ActionWorkflowTest, m)
	},
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <workflow-id> <post-id>",
	Short: "Apply a workflow to a stored post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if workflowExecID == "" {
			workflowExecID = uuid.NewString()
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := jobs.ArgsFrom(jobs.WorkflowExecuteArgs{
			ExecutionID: workflowExecID,
			WorkflowID:  args[0],
			PostID:      args[1],
			Language:    workflowLang,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Execution %s\n", workflowExecID)
		return runJob(cmd.Context(), a, jobs.ActionWorkflowExecute, m)
	},
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowImportCmd)
	workflowCmd.AddCommand(workflowTestCmd)
	workflowCmd.AddCommand(workflowRunCmd)

	workflowImportCmd.Flags().BoolVar(&workflowReplaces, "replace", false, "Replace stored workflows with the same id")

	for _, c := range []*cobra.Command{workflowTestCmd, workflowRunCmd} {
		c.Flags().StringVarP(&workflowLang, "language", "l", "", "Work on the post's translation in this language")
		c.Flags().BoolVar(&syncMode, "sync", false, "Run in this process instead of a background worker")
		c.Flags().BoolVar(&waitResult, "wait", false, "Poll the background job until it completes")
	}
	workflowTestCmd.Flags().StringVarP(&workflowBundle, "input", "i", "", "Bundle file (JSON or YAML) to test against instead of a post")
	workflowRunCmd.Flags().StringVar(&workflowExecID, "execution-id", "", "Execution id (default: random)")
}
