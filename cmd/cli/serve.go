package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inbox-triage/cmd/api"
	authusecase "inbox-triage/internal/auth/usecase"
	"inbox-triage/internal/outstanding/scheduler"
	outstanding "inbox-triage/internal/outstanding/usecase"
	"inbox-triage/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// ServeResult is printed when the server stops.
type ServeResult struct {
	Addr          string    `json:"addr"`
	SweepInterval string    `json:"sweepInterval"`
	StartedAt     time.Time `json:"startedAt"`
	StoppedAt     time.Time `json:"stoppedAt"`
	Warnings      []string  `json:"warnings"`
}

func newServeCommand(a *app) *cobra.Command {
	var (
		addr          string
		sweepInterval time.Duration
		output        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve approval callbacks for chat buttons",
		Long: `Serve the approval callback API until interrupted.

Routes:
  GET  /api/health
  POST /api/drafts/:id/approve|revise|reject   (Authorization: Bearer <token>)
  GET  /api/outstanding                        (Authorization: Bearer <token>)
  GET  /metrics

Tokens come from issue_approval_token. With --sweep-interval the outstanding
sweep also runs in the background and notifies the configured channels.

Examples:
  inbox-triage serve
  inbox-triage serve --addr :9090 --sweep-interval 24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			secret, err := a.credentials().Resolve(a.cfg.ApprovalSigningSecret)
			if err != nil {
				return fmt.Errorf("resolve APPROVAL_SIGNING_SECRET: %w", err)
			}
			tokens, err := authusecase.NewTokens(secret)
			if err != nil {
				return err
			}
			approvals, err := a.approvals()
			if err != nil {
				return err
			}
			sweeper, warnings, err := a.sweeper(cmd.Context())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sweepOptions := func() outstanding.Options {
				opts := a.sweepOptions()
				opts.Now = time.Now()
				return opts
			}
			sched := scheduler.NewSweepScheduler(sweeper, sweepInterval, sweepOptions, a.logger)
			sched.Start(ctx)
			defer sched.Stop()

			gin.SetMode(gin.ReleaseMode)
			handler := api.NewHandler(approvals, sweeper, tokens, metrics.NewServer(), sweepOptions, a.logger)

			result := &ServeResult{Addr: addr, SweepInterval: sweepInterval.String(), StartedAt: time.Now().UTC(), Warnings: warnings}
			if result.Warnings == nil {
				result.Warnings = []string{}
			}
			if err := handler.Start(ctx, addr); err != nil {
				return err
			}
			result.StoppedAt = time.Now().UTC()
			return emit(cmd.OutOrStdout(), a.outputPath("serve", output), result)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to HTTP_ADDR)")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 0, "Run the outstanding sweep this often; 0 disables it")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/serve.json)")
	return cmd
}
