// Command gaitctl records gait sessions and works through the day's
// exercise plan from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/config"
	"github.com/cvacare/gaitsession/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		if msg := apperrors.UserMessage(err); msg != "" {
			_, _ = fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	userID     string
}

func (g *globals) config() (*config.Config, error) {
	if g.configPath == "" {
		return config.Empty(), nil
	}
	return config.Load(g.configPath)
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "gaitctl",
		Short:         "Gait recording and exercise plan client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a JSON config file")
	root.PersistentFlags().StringVar(&g.userID, "user", "", "user id sent to the services")

	root.AddCommand(newRecordCmd(g))
	root.AddCommand(newHealthCmd(g))
	root.AddCommand(newPlanCmd(g))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	})
	return root
}
