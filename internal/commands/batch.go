package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paydesk/remitsheet/internal/artifact"
	"github.com/paydesk/remitsheet/internal/batch"
	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/money"
)

func newBatchCommand(flags *globalFlags) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Stage vendors and amounts for the next remittance",
	}
	batchCmd.AddCommand(
		newBatchAddCommand(flags),
		newBatchRemoveCommand(flags),
		newBatchSetAmountCommand(flags),
		newBatchSetFeeCommand(flags),
		newBatchSetReasonCommand(flags),
		newBatchShowCommand(flags),
		newBatchExportCommand(flags),
	)
	return batchCmd
}

// withEngine opens the app and the session's batch, runs fn and prints the
// batch afterwards when show is set.
func withEngine(cmd *cobra.Command, flags *globalFlags, show bool, fn func(ctx context.Context, a *app, e *batch.Engine) error) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	e, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, a, e); err != nil {
		return err
	}
	if show {
		printBatch(cmd, e.Snapshot())
	}
	return nil
}

func newBatchAddCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <vendor-id>...",
		Short: "Add vendors from the latest search results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, true, func(ctx context.Context, a *app, e *batch.Engine) error {
				results, err := a.lastResults(ctx)
				if err != nil {
					return err
				}
				for _, id := range args {
					v, ok := findVendor(results, id)
					if !ok {
						return fmt.Errorf("vendor %s is not in the latest search results: run remitsheet search first", id)
					}
					if !e.Add(ctx, v) {
						printf(cmd, "%s is already in the batch.\n", v.Name)
					}
				}
				return nil
			})
		},
	}
}

func findVendor(vendors []model.Vendor, id string) (model.Vendor, bool) {
	for _, v := range vendors {
		if v.ID == id {
			return v, true
		}
	}
	return model.Vendor{}, false
}

func newBatchRemoveCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <vendor-id>...",
		Short: "Remove vendors from the batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, true, func(ctx context.Context, _ *app, e *batch.Engine) error {
				for _, id := range args {
					e.Remove(ctx, id)
				}
				return nil
			})
		},
	}
}

func newBatchSetAmountCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-amount <vendor-id> <amount>",
		Short: "Set the amount payable; non-numeric input counts as 0",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, true, func(ctx context.Context, _ *app, e *batch.Engine) error {
				if err := requireItem(e, args[0]); err != nil {
					return err
				}
				e.SetAmountPayable(ctx, args[0], args[1])
				return nil
			})
		},
	}
}

func newBatchSetFeeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-fee <vendor-id> <fee>",
		Short: "Set the transfer fee deducted from the payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, true, func(ctx context.Context, _ *app, e *batch.Engine) error {
				if err := requireItem(e, args[0]); err != nil {
					return err
				}
				e.SetManualFee(ctx, args[0], args[1])
				return nil
			})
		},
	}
}

func newBatchSetReasonCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-reason <vendor-id> <unset|cash|waived>",
		Short: "Mark the fee as paid in cash or waived",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, err := model.ParseFeeReason(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd, flags, true, func(ctx context.Context, _ *app, e *batch.Engine) error {
				if err := requireItem(e, args[0]); err != nil {
					return err
				}
				return e.SetFeeReason(ctx, args[0], reason)
			})
		},
	}
}

func requireItem(e *batch.Engine, id string) error {
	if !e.Contains(id) {
		return fmt.Errorf("vendor %s is not in the batch", id)
	}
	return nil
}

func newBatchShowCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the batch and its totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, true, func(context.Context, *app, *batch.Engine) error {
				return nil
			})
		},
	}
}

func newBatchExportCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the batch to a local workbook for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, false, func(_ context.Context, _ *app, e *batch.Engine) error {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("creating %s: %w", args[0], err)
				}
				defer f.Close()

				snap := e.Snapshot()
				if err := artifact.Export(f, snap.Items, snap.Totals); err != nil {
					return err
				}
				printf(cmd, "Exported %d items to %s.\n", len(snap.Items), args[0])
				return f.Close()
			})
		},
	}
}

func printBatch(cmd *cobra.Command, snap batch.Snapshot) {
	if len(snap.Items) == 0 {
		printf(cmd, "The batch is empty.\n")
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tNAME\tPAYABLE\tFEE\tREASON\tACTUAL\t")
	for _, it := range snap.Items {
		reason := ""
		if it.FeeReason != model.FeeReasonUnset {
			reason = it.FeeReason.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			it.ID, it.Name,
			money.Format(it.AmountPayable), money.Format(it.ManualFee),
			reason, money.Format(it.ActualAmount))
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\t%s\t\n",
		money.Format(snap.Totals.Payable), money.Format(snap.Totals.Fee), money.Format(snap.Totals.Actual))
	tw.Flush()
}
