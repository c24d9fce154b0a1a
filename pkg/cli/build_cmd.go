package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBuildCmd returns the `build` command, which publishes once and exits.
//
// Usage:
//
//	letterpress build ~/blog
func NewBuildCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "build PUBLISHED_DIR",
		Short: "publish the site once and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := deps.newRunner(cmd, args[0])
			if err != nil {
				return err
			}
			if err := r.Build(cmd.Context()); err != nil {
				return err
			}
			snap := r.Engine().Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n",
				plural(len(snap.Posts), "post"), snap.SiteDir)
			fmt.Fprintf(cmd.OutOrStdout(), "%s, %s, %s\n",
				plural(len(snap.Tags), "tag"),
				plural(len(snap.Months), "monthly archive"),
				plural(snap.TimelinePages, "timeline page"))
			return nil
		},
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
