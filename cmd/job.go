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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/polytran/internal/jobs"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect background jobs",
}

var jobPollCmd = &cobra.Command{
	Use:   "poll <result-key|token>",
	Short: "Poll a job result until it completes",
	Long: `Poll a job result. The argument is either a full result key
(job_result:<token>, workflow_test:<token>, workflow_execution:<id>) or a
bare translate token. --once reads the result a single time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		key := args[0]
		if !strings.Contains(key, ":") {
			key = jobs.TranslateResultKey(key)
		}

		var res *jobs.Result
		if pollOnce {
			res, err = a.Poller.Peek(cmd.Context(), key)
		} else {
			res, err = a.Poller.Poll(cmd.Context(), key)
		}
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending job records and stored results",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSTATUS\tSUCCESS\tERROR")
		for _, prefix := range []string{"job_", "workflow_"} {
			keys, err := a.Backend.Jobs.Keys(cmd.Context(), prefix)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			for _, key := range keys {
				if strings.HasPrefix(key, jobs.RecordKey("")) {
					fmt.Fprintf(w, "%s\tpending\t-\t\n", key)
					continue
				}
				res, err := a.Poller.Peek(cmd.Context(), key)
				if err != nil {
					fmt.Fprintf(w, "%s\t?\t-\t%v\n", key, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", key, res.Status, res.Success, res.Error)
			}
		}
		return w.Flush()
	},
}

var jobPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired job records and results",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired entries\n", n)
		return nil
	},
}

var pollOnce bool

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobPollCmd)
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobPurgeCmd)

	jobPollCmd.Flags().BoolVar(&pollOnce, "once", false, "Read the result once instead of polling")
}
