package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/rootfinder/internal/scheduler"
	"github.com/rendis/rootfinder/pkg/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rootfinder tools over MCP on stdio",
	Long: "Starts an MCP server on stdin/stdout. When history is enabled, runs\n" +
		"are saved and a background job prunes history older than the\n" +
		"configured retention on the prune_schedule cron spec.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	deps := mcp.ServerDeps{
		Comparator: cli.comparator,
		Validator:  cli.validator,
		Logger:     cli.logger,
		Version:    version,
	}

	svc, err := cli.openHistory(ctx)
	if err != nil {
		return err
	}
	if svc != nil {
		deps.History = svc

		retention, err := cli.cfg.retention()
		if err != nil {
			return err
		}
		sched, err := scheduler.NewScheduler(svc, cli.cfg.PruneSchedule, retention, cli.logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = sched.Stop() }()
	}

	srv, err := mcp.NewServer(deps)
	if err != nil {
		return err
	}
	cli.logger.InfoContext(ctx, "mcp server listening on stdio", "version", version, "history", svc != nil)
	return srv.Serve(ctx)
}
