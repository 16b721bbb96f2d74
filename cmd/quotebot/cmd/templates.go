// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/warehouse-quote-assistant/internal/document"
)

func newTemplatesCommand(root *rootOptions) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Write the built-in quotation templates",
		Long: `Write one workbook per template variant. Existing files are kept
unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = root.cfg.Quotation.TemplatesDir
			}
			written, err := document.WriteTemplates(dir, force)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default is quotation.templates_dir)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing templates")

	return cmd
}
