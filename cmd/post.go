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

	"github.com/spf13/cobra"
)

var postLang string

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Store and read content bundles",
}

var postPutCmd = &cobra.Command{
	Use:   "put <post-id> <file>",
	Short: "Store a bundle file (JSON or YAML) as a post or one of its translations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := readBundle(args[1])
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if postLang != "" {
			err = a.Posts.SaveTranslation(cmd.Context(), args[0], postLang, b)
		} else {
			err = a.Posts.Save(cmd.Context(), args[0], b)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Stored post %s\n", args[0])
		return nil
	},
}

var postGetCmd = &cobra.Command{
	Use:   "get <post-id>",
	Short: "Print a post, or its translation with --language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if postLang == "" {
			b, err := a.Posts.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(b)
		}
		b, err := a.Posts.GetTranslation(cmd.Context(), args[0], postLang)
		if err != nil {
			return err
		}
		return printJSON(b)
	},
}

var postLanguagesCmd = &cobra.Command{
	Use:   "languages <post-id>",
	Short: "List the languages a post has been translated into",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		langs, err := a.Posts.Languages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, l := range langs {
			fmt.Println(l)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(postCmd)
	postCmd.AddCommand(postPutCmd)
	postCmd.AddCommand(postGetCmd)
	postCmd.AddCommand(postLanguagesCmd)

	postPutCmd.Flags().StringVarP(&postLang, "language", "l", "", "Store as the translation in this language")
	postGetCmd.Flags().StringVarP(&postLang, "language", "l", "", "Read the translation in this language")
}
