// Command agentcore runs the per-user conversational agent runtime: the
// Agent Loop, Conversation Store & Compactor, Tool Registry & Exec-Approval
// Gate, and Scheduler, behind a CLI stand-in transport and a minimal admin
// HTTP surface.
//
// The "serve" subcommand reads stdin lines as if they were inbound chat
// messages from a single local user, prints the agent's reply to stdout,
// and starts the Scheduler and admin API in the background. Concrete chat
// transports (Telegram, Discord, Slack, ...) are out of scope; this is the
// in-process stand-in the spec's IncomingMessage -> reply contract is
// exercised against end-to-end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "agentcore",
		Short: "A per-user conversational agent runtime",
	}

	root.AddCommand(
		buildServeCmd(),
		buildTaskCmd(),
		buildMigrateCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentcore:", err)
		os.Exit(1)
	}
}
