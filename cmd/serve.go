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
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/valpere/polytran/internal/httpapi"
	"github.com/valpere/polytran/internal/logging"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the loopback job endpoint",
	Long: `Serve the job API:

  POST /api/v1/translations              start a translation (?sync=1 runs inline)
  GET  /api/v1/translations/:token       poll it
  POST /api/v1/workflows/:id/test        test a workflow
  GET  /api/v1/workflows/tests/:token    poll the test
  POST /api/v1/workflows/:id/execute     apply a workflow
  GET  /api/v1/workflows/executions/:id  poll the execution

Expired job entries are purged on jobs.purge_schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("address") {
			cfg.HTTP.Address = serveAddress
		}
		log := logging.WithModule("serve")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		scheduler := cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		))
		if cfg.Jobs.PurgeSchedule != "" {
			if _, err := scheduler.AddFunc(cfg.Jobs.PurgeSchedule, func() {
				if _, err := a.PurgeExpired(ctx); err != nil {
					log.WithError(err).Warn("purge of expired jobs failed")
				}
			}); err != nil {
				return fmt.Errorf("invalid jobs.purge_schedule %q: %w", cfg.Jobs.PurgeSchedule, err)
			}
		}
		scheduler.Start()
		defer scheduler.Stop()

		srv := httpapi.New(a, logging.WithModule("http")).WithJobContext(ctx)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Listen(cfg.HTTP.Address)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		done := make(chan error, 1)
		go func() { done <- srv.Shutdown() }()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			return fmt.Errorf("server did not shut down within 10s")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddress, "address", ":8080", "HTTP listen address")
}
