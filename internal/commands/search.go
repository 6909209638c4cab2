package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/search"
)

func newSearchCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search the vendor directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()
			return runSearch(cmd, a, strings.Join(args, " "))
		},
	}
}

func runSearch(cmd *cobra.Command, a *app, term string) error {
	s := search.New(a.client, a.cfg.Directory.MinSearchLength, a.log)
	st := s.Search(cmd.Context(), term)
	if st.Message != "" {
		return errors.New(st.Message)
	}
	a.saveResults(cmd.Context(), st.Results)

	if len(st.Results) == 0 {
		if len([]rune(term)) < a.cfg.Directory.MinSearchLength {
			printf(cmd, "Type at least %d characters to search.\n", a.cfg.Directory.MinSearchLength)
			return nil
		}
		printf(cmd, "No vendors match %q.\n", term)
		return nil
	}
	printVendors(cmd, st.Results)
	return nil
}

func printVendors(cmd *cobra.Command, vendors []model.Vendor) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBANK\tCODE\tACCOUNT\tSHEET")
	for _, v := range vendors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Bank, v.BankCode, v.AccountNumber, v.SheetName)
	}
	tw.Flush()
}

func newBanksCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "banks <term>",
		Short: "Look up bank and branch codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			banks, err := a.client.SearchBanks(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("bank lookup failed: %w", err)
			}
			if len(banks) == 0 {
				printf(cmd, "No banks match.\n")
				return nil
			}
			printBanks(cmd, banks)
			return nil
		},
	}
}

func printBanks(cmd *cobra.Command, banks []model.BankInfo) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tBANK")
	for _, b := range banks {
		fmt.Fprintf(tw, "%s\t%s\n", b.FullCode, b.FullName)
	}
	tw.Flush()
}
