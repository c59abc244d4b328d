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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/app"
	"github.com/valpere/polytran/internal/errs"
)

// loadApp wires the application from the loaded configuration. Workers
// started by this process get the same config file.
func loadApp() (*app.App, error) {
	var workerArgs []string
	if cfgFile != "" {
		workerArgs = []string{"--config", cfgFile}
	}
	return app.New(cfg, app.Options{WorkerArgs: workerArgs})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	if kind := errs.KindOf(err); kind != errs.KindUnknown {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", kind, err)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// decodeFile reads a JSON or YAML document, chosen by extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func readBundle(path string) (internal.ContentBundle, error) {
	var b internal.ContentBundle
	err := decodeFile(path, &b)
	return b, err
}

// resultFailed turns a completed but failed job into a command error.
func resultFailed(success bool, kind errs.Kind, msg string) error {
	if success {
		return nil
	}
	if kind == "" {
		kind = errs.KindUnknown
	}
	return errs.New(kind, "%s", msg)
}

// encodeFor encodes v as YAML or indented JSON, chosen by the extension of
// path.
func encodeFor(path string, v any) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
