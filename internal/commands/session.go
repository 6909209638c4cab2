package commands

import (
	"github.com/spf13/cobra"

	"github.com/paydesk/remitsheet/internal/config"
	"github.com/paydesk/remitsheet/internal/session"
)

func newSessionCommand(flags *globalFlags) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Session operations",
	}
	sessionCmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Start a new session with an empty batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(flags.configPath)
			if err != nil {
				return err
			}
			if err := config.ApplyEnv(cfg, ".env"); err != nil {
				return err
			}
			id, err := session.Rotate(cfg.Session.StateDir)
			if err != nil {
				return err
			}
			printf(cmd, "Started session %s.\n", id)
			return nil
		},
	})
	return sessionCmd
}
