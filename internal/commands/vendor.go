package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/parser"
	"github.com/paydesk/remitsheet/internal/vendorform"
)

func newVendorCommand(flags *globalFlags) *cobra.Command {
	vendorCmd := &cobra.Command{
		Use:   "vendor",
		Short: "Vendor directory operations",
	}
	vendorCmd.AddCommand(newVendorAddCommand(flags))
	return vendorCmd
}

type vendorAddFlags struct {
	vendor model.NewVendor
	paste  string
}

func newVendorAddCommand(flags *globalFlags) *cobra.Command {
	var f vendorAddFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a vendor to the directory",
		Long: "Add a vendor to the directory. Fields can be given as flags or parsed from\n" +
			"pasted text with --paste (use - to read stdin); flags win over parsed values.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			return runVendorAdd(cmd, a, f)
		},
	}

	cmd.Flags().StringVar(&f.vendor.Name, "name", "", "vendor name")
	cmd.Flags().StringVar(&f.vendor.Bank, "bank", "", "bank name with branch")
	cmd.Flags().StringVar(&f.vendor.BankCode, "bank-code", "", "bank and branch code")
	cmd.Flags().StringVar(&f.vendor.AccountNumber, "account", "", "account number")
	cmd.Flags().StringVar(&f.vendor.SheetName, "sheet", "", "directory sheet (defaults to the first configured sheet)")
	cmd.Flags().StringVar(&f.vendor.TaxID, "tax-id", "", "tax ID, kept only for the default sheet")
	cmd.Flags().StringVar(&f.vendor.Address, "address", "", "address")
	cmd.Flags().StringVar(&f.vendor.Remarks, "remarks", "", "remarks")
	cmd.Flags().StringVar(&f.paste, "paste", "", "free text to parse the vendor from, or - for stdin")

	return cmd
}

func runVendorAdd(cmd *cobra.Command, a *app, f vendorAddFlags) error {
	ctx := cmd.Context()
	form := vendorform.New(a.cfg.DefaultSheet(), a.client, a.cfg.Batch.BankDebounce, a.log)
	defer form.Close()

	if f.vendor.SheetName != "" && !validSheet(a.cfg.Batch.SheetOptions, f.vendor.SheetName) {
		return fmt.Errorf("unknown sheet %q: use one of %s", f.vendor.SheetName, strings.Join(a.cfg.Batch.SheetOptions, ", "))
	}
	form.SetSheet(f.vendor.SheetName)

	if f.paste != "" {
		if err := applyPasted(ctx, cmd, a, form, f.paste); err != nil {
			return err
		}
	}

	form.Set(overlay(form.Data(), f.vendor))
	if f.vendor.Bank != "" {
		form.SetBankInput(f.vendor.Bank)
	}
	if f.vendor.BankCode != "" {
		form.ApplySuggestion(model.BankInfo{FullName: form.Data().Bank, FullCode: f.vendor.BankCode})
	}

	d := form.Data()
	if d.Bank != "" && d.BankCode == "" {
		suggestions := form.LookupBanks(ctx, d.Bank)
		switch len(suggestions) {
		case 1:
			form.ApplySuggestion(suggestions[0])
			printf(cmd, "Using bank %s (%s).\n", suggestions[0].FullName, suggestions[0].FullCode)
		case 0:
		default:
			printf(cmd, "Several banks match %q:\n", d.Bank)
			printBanks(cmd, suggestions)
			return errors.New("pick one with --bank-code")
		}
	}

	sent, err := form.Submit(ctx, a.client)
	if err != nil {
		return err
	}
	printf(cmd, "Added %s to %s.\n", sent.Name, sent.SheetName)

	// Show the new vendor the way a search for it would.
	return runSearch(cmd, a, sent.Name)
}

func applyPasted(ctx context.Context, cmd *cobra.Command, a *app, form *vendorform.Form, paste string) error {
	text := paste
	if paste == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading pasted text: %w", err)
		}
		text = string(data)
	}

	capability := parser.Init(ctx, a.cfg.Parser.APIKey, a.cfg.Parser.Model, a.log).WithMetrics(a.metrics)
	if !capability.Available() {
		return errors.New("free-text parsing is not configured: set GEMINI_API_KEY")
	}
	parsed, err := capability.Parse(ctx, text)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}
	if parsed == nil {
		return errors.New("no vendor details could be parsed from the text")
	}
	form.ApplyParsed(*parsed)
	return nil
}

// overlay returns base with the non-empty plain fields of flags applied.
func overlay(base, flags model.NewVendor) model.NewVendor {
	out := vendorform.Merge(base, model.ParsedVendor{
		Name:          flags.Name,
		AccountNumber: flags.AccountNumber,
		TaxID:         flags.TaxID,
		Address:       flags.Address,
		Remarks:       flags.Remarks,
	}, true)
	out.SheetName = base.SheetName
	return out
}

func validSheet(options []string, name string) bool {
	for _, o := range options {
		if o == name {
			return true
		}
	}
	return false
}
