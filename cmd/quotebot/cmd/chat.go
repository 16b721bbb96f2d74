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
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/your-org/warehouse-quote-assistant/internal/app"
	"github.com/your-org/warehouse-quote-assistant/internal/chat"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the assistant a question",
		Long: `Reply to a single message, or read one message per line from stdin
until EOF when no message is given.`,
		Example: `  quotebot chat "how much is 100 cbm of ac storage"
  echo "hello" | quotebot chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newChatService(root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			emit := func(reply chat.Reply) {
				if showSource {
					fmt.Fprintf(out, "[%s] %s\n", reply.Source, reply.Text)
					return
				}
				fmt.Fprintln(out, reply.Text)
			}

			if len(args) > 0 {
				emit(svc.Reply(cmd.Context(), strings.Join(args, " ")))
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				emit(svc.Reply(cmd.Context(), line))
			}
			return scanner.Err()
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "prefix each reply with its source")

	return cmd
}

func newChatService(root *rootOptions) (*chat.Service, error) {
	a, err := app.New(root.cfg, Version, root.logger)
	if err != nil {
		return nil, err
	}
	return a.Chat, nil
}
