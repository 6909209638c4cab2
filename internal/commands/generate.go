package commands

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/artifact"
	"github.com/paydesk/remitsheet/internal/batch"
	"github.com/paydesk/remitsheet/internal/history"
	"github.com/paydesk/remitsheet/internal/money"
)

func newGenerateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate the remittance workbook for the batch and download it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, false, func(ctx context.Context, a *app, e *batch.Engine) error {
				return runGenerate(ctx, cmd, a, e)
			})
		},
	}
}

func runGenerate(ctx context.Context, cmd *cobra.Command, a *app, e *batch.Engine) error {
	art, err := e.Generate(ctx)
	if err != nil {
		return errors.New(batch.Message(err))
	}

	printf(cmd, "Saved %s (%d items, total %s).\n", art.Path, art.Items, money.Format(art.Totals.Actual))
	printf(cmd, "Source: %s\n", art.URL)

	if data, err := os.ReadFile(art.Path); err == nil {
		if sheets, err := artifact.Inspect(data); err == nil {
			for _, s := range sheets {
				printf(cmd, "  sheet %s: %d rows\n", s.Name, s.Rows)
			}
		} else {
			a.log.Debug("inspecting artifact", zap.Error(err))
		}
	}

	if _, err := a.recorder().Record(history.Entry{
		Timestamp:   art.GeneratedAt,
		Items:       art.Items,
		TotalActual: art.Totals.Actual,
		FileName:    art.FileName,
		DownloadURL: art.URL,
	}); err != nil {
		printf(cmd, "warning: failed to record generation: %v\n", err)
	}
	return nil
}

func newHistoryCommand(flags *globalFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated remittances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := history.Read(a.cfg.Session.StateDir)
			if err != nil {
				return err
			}
			shown := 0
			for _, e := range entries {
				if !all && e.SessionID != a.sessionID {
					continue
				}
				shown++
				printf(cmd, "%s  %s  %d items  %s  %s\n",
					e.Timestamp.Format("2006-01-02 15:04"), e.FileName, e.Items, money.Format(e.TotalActual), e.DownloadURL)
			}
			if shown == 0 {
				printf(cmd, "No generations yet.\n")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include earlier sessions")

	return cmd
}
