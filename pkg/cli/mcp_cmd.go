package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/mcpserver"
)

// NewMCPCmd returns the `mcp` command. It publishes the site and serves the
// index over MCP on stdio, watching for changes unless --no-watch is set.
func NewMCPCmd(deps *Deps) *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "mcp PUBLISHED_DIR",
		Short: "serve the site index to MCP clients over stdio",
		Long: `Publish PUBLISHED_DIR and serve read-only MCP tools (list_posts,
list_tags, list_archives, site_status) over stdin and stdout. Logs go to
stderr and the log file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := deps.newRunner(cmd, args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := r.Build(ctx); err != nil {
				return err
			}
			srv, err := mcpserver.NewServer(r.Engine(), Version, log.FromContext(ctx))
			if err != nil {
				return err
			}
			streams := deps.Runtime.Stream()
			if noWatch {
				return srv.Serve(ctx, streams.In, streams.Out)
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancel()
				return srv.Serve(gctx, streams.In, streams.Out)
			})
			g.Go(func() error { return r.Watch(gctx) })
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "serve the initial build without watching for changes")
	return cmd
}
