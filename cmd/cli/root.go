// Package cli implements the inbox-triage commands. Every command prints one
// JSON result to stdout and persists the same document under --output.
package cli

import (
	"errors"
	"fmt"

	"inbox-triage/pkg/config"
	"inbox-triage/pkg/logging"

	"github.com/spf13/cobra"
)

var version = "dev"

// skipConfig marks commands that must run without a loadable configuration.
const skipConfig = "skip-config"

// ErrCheckFailed makes a command exit non-zero after it has printed its result.
var ErrCheckFailed = errors.New("check failed")

// NewRootCommand builds the inbox-triage command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "inbox-triage",
		Short: "Triage inbound business email across several mailboxes",
		Long: `inbox-triage fetches the operating policy, polls mailboxes incrementally,
classifies every message as receipt, sales, support or ignore, drafts replies
for sales leads and gates every send behind a human approval.

Each command prints one JSON object to stdout and writes it to --output
(default <OUTPUT_DIR>/<command>.json).

Examples:
  # One full hourly cycle
  inbox-triage run_cycle

  # Step by step
  inbox-triage fetch_sop --output var/sop.json
  inbox-triage poll_inboxes --output var/poll.json
  inbox-triage process_inbound --poll-file var/poll.json --sop-file var/sop.json

  # Approve a draft
  inbox-triage approval_action --action approve --draft-id <id> --approved-by alice`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return a.initBare()
			}
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (defaults to $TRIAGE_CONFIG)")

	root.AddCommand(
		newFetchSOPCommand(a),
		newPollInboxesCommand(a),
		newProcessInboundCommand(a),
		newApprovalActionCommand(a),
		newCheckOutstandingCommand(a),
		newRunCycleCommand(a),
		newServeCommand(a),
		newIssueApprovalTokenCommand(a),
		newValidateEnvCommand(a),
		newStoreCredentialCommand(a),
	)
	for _, cmd := range root.Commands() {
		run := cmd.RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			defer a.close()
			return run(cmd, args)
		}
	}
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) initBare() error {
	logger, err := logging.New("info", "json")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
