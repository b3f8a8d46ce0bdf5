package cmd

import (
	"context"
	"fmt"

	"github.com/fleetkeeper/fleetkeeper/internal/retention"
	"github.com/urfave/cli/v3"
)

// checkPatternCmd validates a conflicts_with pattern the same way the
// controller does before accepting it, so operators can test patterns
// without touching a live config.
func checkPatternCmd() *cli.Command {
	return &cli.Command{
		Name:      "checkpattern",
		Usage:     "Validate a conflicts_with regex",
		ArgsUsage: "<pattern>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one pattern argument")
			}
			pattern := cmd.Args().First()
			if err := retention.ValidateConflictPattern(pattern); err != nil {
				return fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			fmt.Printf("pattern %q is valid\n", pattern)
			return nil
		},
	}
}
