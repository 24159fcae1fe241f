package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragengine/internal/adapters/driving/mcp"
	"github.com/custodia-labs/ragengine/internal/logger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so assistants can search the
index, assemble context and queue sources for processing.

By default the server speaks JSON-RPC over stdio. Use --port to serve
streamable HTTP instead. Scheduled maintenance runs while the server is up,
and metrics are served when metrics_addr is configured.

Examples:
  # Stdio mode
  ragengine serve

  # HTTP mode
  ragengine serve --port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (0 = use stdio)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, err := services(cmd)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Ports{Retrieval: svc.Retrieval})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	log := logger.For("serve")
	done := startBackground(ctx, svc, log)
	defer func() {
		cancel()
		<-done
	}()

	if servePort > 0 {
		addr := fmt.Sprintf(":%d", servePort)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}
	return server.Run(ctx)
}

// startBackground runs maintenance and the metrics endpoint until ctx ends.
// The returned channel closes once both have stopped.
func startBackground(ctx context.Context, svc *Services, log *logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	pending := make(chan struct{}, 2)

	run := func(name string, fn func(context.Context) error) {
		go func() {
			defer func() { pending <- struct{}{} }()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				log.Error("%s stopped: %v", name, err)
			}
		}()
	}

	n := 0
	if svc.Maintenance != nil {
		n++
		run("maintenance", svc.Maintenance.Start)
	}
	if svc.Metrics != nil && svc.Settings.MetricsAddr != "" {
		n++
		addr := svc.Settings.MetricsAddr
		log.Info("serving metrics on %s", addr)
		run("metrics", func(ctx context.Context) error {
			return svc.Metrics.Serve(ctx, addr)
		})
	}

	go func() {
		for range n {
			<-pending
		}
		close(done)
	}()
	return done
}
