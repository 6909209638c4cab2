package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paydesk/remitsheet/internal/buildinfo"
	"github.com/paydesk/remitsheet/internal/config"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	fresh      bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "remitsheet",
		Short:   "Stage vendor payments and generate bank remittance sheets",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", config.FileName, "config file")
	rootCmd.PersistentFlags().BoolVar(&flags.fresh, "fresh", false, "discard the stored batch and start empty, like a hard reload")

	rootCmd.AddCommand(
		newSearchCommand(flags),
		newBanksCommand(flags),
		newVendorCommand(flags),
		newBatchCommand(flags),
		newGenerateCommand(flags),
		newHistoryCommand(flags),
		newSessionCommand(flags),
		newServeCommand(flags),
	)

	return rootCmd
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
