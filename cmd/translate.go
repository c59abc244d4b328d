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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/app"
	"github.com/valpere/polytran/internal/arbiter"
	"github.com/valpere/polytran/internal/detector"
	"github.com/valpere/polytran/internal/jobs"
	"github.com/valpere/polytran/internal/orchestrator"
	"github.com/valpere/polytran/internal/refiner"
	"github.com/valpere/polytran/internal/translator"
)

var (
	inputFile     string
	outputFile    string
	sourceLang    string
	targetLang    string
	syncMode      bool
	waitResult    bool
	skipWorkflows bool

	services     []string
	htmlInput    bool
	arbiterName  string
	arbiterModel string
	refinerName  string
	refinerModel string
)

var translateCmd = &cobra.Command{
	Use:   "translate [post-id]",
	Short: "Translate a stored post or a bundle file along the configured path",
	Long: `Translate content from the source to the target language. The path is
resolved from translation.rules and every hop runs on the backend named by
translation.mapping ("<src>_to_<tgt>").

With a post id the translation runs as a job: it is dispatched to a
background worker and the token is printed. --wait polls until the job
completes; --sync runs it in this process.

With --input and no post id the bundle file (JSON or YAML) is translated
directly and written to --output, or stdout.

Use --source auto to detect the source language from the content.`,
	Example: `  polytran translate 42 --source en --target fr --wait
  polytran translate --input post.yaml --source auto --target uk -o post.uk.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && inputFile == "" {
			return fmt.Errorf("either a post id or --input is required")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if len(args) == 0 {
			return translateFile(ctx, a)
		}
		return translatePost(ctx, a, args[0])
	},
}

var translateCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Send one text to several providers and pick the best translation",
	Long: `Translate an input file with several providers in parallel. With --arbiter
a chat vendor selects, or composes, the best candidate; with --refine a
chat vendor polishes the selected draft in a second pass.`,
	Example: `  polytran translate compare -i chapter.txt -s en -t uk --services google,mymemory --arbiter openai --refine ollama`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == "" {
			return fmt.Errorf("--input is required")
		}
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text := string(data)

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if sourceLang == "auto" {
			sourceLang = detectLanguage(text)
		}

		req := translator.TranslateRequest{Text: text, SourceLang: sourceLang, TargetLang: targetLang}
		if htmlInput {
			req.Format = translator.FormatHTML
		}

		// Stage 1: parallel translation
		result := orchestrator.Compare(ctx, a.Providers, services, a.Settings, req)
		for name, msg := range result.Errors {
			fmt.Fprintf(os.Stderr, "Service %s failed: %s\n", name, msg)
		}
		if result.Succeeded == 0 {
			return fmt.Errorf("all translation services failed")
		}

		draft := result.Results[0].TranslatedText
		selected := result.Results[0].ServiceName
		if arbiterName != "" && len(result.Results) > 1 {
			client, err := a.Chats.Client(arbiterName, a.Settings)
			if err != nil {
				return err
			}
			eval, err := arbiter.New(client, arbiterModel).Evaluate(ctx, text, sourceLang, targetLang, result.Results)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Arbiter failed: %v, using first result\n", err)
			} else {
				draft, selected = eval.FinalText, eval.SelectedService
				fmt.Fprintf(os.Stderr, "Arbiter selected: %s\n", selected)
			}
		}

		// Stage 2: optional refinement pass
		final := draft
		if refinerName != "" {
			client, err := a.Chats.Client(refinerName, a.Settings)
			if err != nil {
				return err
			}
			refined, err := refiner.New(client, refinerModel).Refine(ctx, sourceLang, targetLang, text, draft)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Refiner failed: %v, using draft\n", err)
			} else {
				final = refined
			}
		}

		if err := writeOutput(outputFile, []byte(final)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Translated %s to %s with %s (%d/%d services succeeded)\n",
			sourceLang, targetLang, selected, result.Succeeded, len(services))
		return nil
	},
}

func translateFile(ctx context.Context, a *app.App) error {
	b, err := readBundle(inputFile)
	if err != nil {
		return err
	}
	if sourceLang == "auto" {
		sourceLang = detectLanguage(b.Title + "\n" + b.Content)
	}

	res := a.Translate(ctx, b, sourceLang, targetLang)
	if !res.Success {
		printJSON(res)
		return resultFailed(false, res.ErrorKind, res.Error)
	}
	if outputFile == "" {
		return printJSON(res.Bundle)
	}
	return writeBundle(outputFile, *res.Bundle)
}

func translatePost(ctx context.Context, a *app.App, postID string) error {
	if sourceLang == "auto" {
		post, err := a.Posts.Get(ctx, postID)
		if err != nil {
			return err
		}
		sourceLang = detectLanguage(post.Title + "\n" + post.Content)
	}

	args, err := jobs.ArgsFrom(jobs.TranslateArgs{
		PostID:        postID,
		SourceLang:    sourceLang,
		TargetLang:    targetLang,
		SkipWorkflows: skipWorkflows,
	})
	if err != nil {
		return err
	}
	return runJob(ctx, a, jobs.ActionTranslate, args)
}

// runJob runs a job inline with --sync, otherwise dispatches it and, with
// --wait, polls its result.
func runJob(ctx context.Context, a *app.App, action jobs.Action, args map[string]any) error {
	if syncMode {
		_, res, err := a.RunInline(ctx, action, args)
		if err != nil {
			return err
		}
		printJSON(res)
		return resultFailed(res.Success, res.ErrorKind, res.Error)
	}

	ticket, err := a.Start(ctx, action, args)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Job %s sent via %s\n", ticket.Token, ticket.Launcher)
	if !waitResult {
		return printJSON(ticket)
	}

	res, err := a.Poller.Poll(ctx, ticket.ResultKey)
	if err != nil {
		return err
	}
	printJSON(res)
	return resultFailed(res.Success, res.ErrorKind, res.Error)
}

func detectLanguage(text string) string {
	if lang, ok := detector.Shared().DetectISO(detector.PlainText(text)); ok {
		fmt.Fprintf(os.Stderr, "Detected source language: %s\n", lang)
		return lang
	}
	return "auto"
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func writeBundle(path string, b internal.ContentBundle) error {
	data, err := encodeFor(path, b)
	if err != nil {
		return err
	}
	return writeOutput(path, data)
}

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.AddCommand(translateCompareCmd)

	translateCmd.PersistentFlags().StringVarP(&inputFile, "input", "i", "", "Input file to translate")
	translateCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	translateCmd.PersistentFlags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code, or auto")
	translateCmd.PersistentFlags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")
	translateCmd.MarkPersistentFlagRequired("target")

	translateCmd.Flags().BoolVar(&syncMode, "sync", false, "Run the job in this process instead of a background worker")
	translateCmd.Flags().BoolVar(&waitResult, "wait", false, "Poll the background job until it completes")
	translateCmd.Flags().BoolVar(&skipWorkflows, "skip-workflows", false, "Do not run on_translation workflows")

	translateCompareCmd.Flags().StringSliceVar(&services, "services", []string{"google"}, "Translation providers to use (comma-separated)")
	translateCompareCmd.Flags().BoolVar(&htmlInput, "html", false, "Treat the input as HTML")
	translateCompareCmd.Flags().StringVar(&arbiterName, "arbiter", "", "Chat vendor that selects the best translation")
	translateCompareCmd.Flags().StringVar(&arbiterModel, "arbiter-model", "", "Arbiter model (default: vendor model)")
	translateCompareCmd.Flags().StringVar(&refinerName, "refine", "", "Chat vendor for the refinement pass")
	translateCompareCmd.Flags().StringVar(&refinerModel, "refiner-model", "", "Refiner model (default: vendor model)")
}
