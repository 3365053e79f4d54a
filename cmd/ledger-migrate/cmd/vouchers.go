package cmd

import (
	"fmt"

	"github.com/pigeonworks-llc/legacy-ledger/pkg/ledger"
	"github.com/spf13/cobra"
)

var voucherLimit int

// vouchersCmd represents the vouchers command group.
var vouchersCmd = &cobra.Command{
	Use:   "vouchers",
	Short: "Inspect and delete vouchers",
	Long: `Inspect and delete vouchers. Deleting a voucher that was posted from a
legacy record returns the record to "validated" so it can be posted again.

Example:
  ledger-migrate vouchers list --limit 20
  ledger-migrate vouchers show 12
  ledger-migrate vouchers delete 12`,
}

var vouchersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vouchers, most recent first",
	Args:  cobra.NoArgs,
	Run:   runVouchersList,
}

var vouchersShowCmd = &cobra.Command{
	Use:   "show <voucher-id>",
	Short: "Show a voucher with its entries",
	Args:  cobra.ExactArgs(1),
	Run:   runVouchersShow,
}

var vouchersDeleteCmd = &cobra.Command{
	Use:   "delete <voucher-id>",
	Short: "Delete a voucher and its entries",
	Args:  cobra.ExactArgs(1),
	Run:   runVouchersDelete,
}

func init() {
	vouchersListCmd.Flags().IntVar(&voucherLimit, "limit", 50, "maximum number of vouchers (0 for all)")

	vouchersCmd.AddCommand(vouchersListCmd)
	vouchersCmd.AddCommand(vouchersShowCmd)
	vouchersCmd.AddCommand(vouchersDeleteCmd)
}

func runVouchersList(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.conn.Close()

	vouchers, err := ledger.NewVoucherStore(a.conn).List(voucherLimit)
	exitOnError(err, "failed to list vouchers")

	fmt.Println("\n=== Vouchers ===")
	if len(vouchers) == 0 {
		fmt.Println("(none)")
	}
	for _, v := range vouchers {
		source := ""
		if v.LegacyRawID.Valid {
			source = fmt.Sprintf("  [legacy #%d]", v.LegacyRawID.Int64)
		}
		fmt.Printf("#%-5d %-16s %-8s %s %14s  %s%s\n",
			v.VoucherID, v.VoucherNumber, v.VoucherType, v.VoucherDate, v.TotalAmount.StringFixed(2), v.Narration, source)
	}
	fmt.Println()
}

func runVouchersShow(cmd *cobra.Command, args []string) {
	voucherID := parseID(args[0], "voucher id")

	a := openApp()
	defer a.conn.Close()

	v, err := ledger.NewVoucherStore(a.conn).Get(voucherID)
	exitOnError(err, "failed to get voucher")
	accounts := accountsByID(a.service.Accounts())

	fmt.Printf("\n=== Voucher %s ===\n", v.VoucherNumber)
	fmt.Printf("Type:      %s\n", v.VoucherType)
	fmt.Printf("Date:      %s\n", v.VoucherDate)
	fmt.Printf("Narration: %s\n", v.Narration)
	fmt.Printf("Total:     %s\n", v.TotalAmount.StringFixed(2))
	if v.LegacyRawID.Valid {
		fmt.Printf("Legacy:    record #%d\n", v.LegacyRawID.Int64)
	}
	fmt.Println()
	fmt.Printf("%-40s %14s %14s\n", "Account", "Debit", "Credit")
	for _, e := range v.Entries {
		fmt.Printf("%-40s %14s %14s\n", accountLabel(accounts, e.AccountID), e.DebitAmount.StringFixed(2), e.CreditAmount.StringFixed(2))
	}
	fmt.Println()
}

func runVouchersDelete(cmd *cobra.Command, args []string) {
	voucherID := parseID(args[0], "voucher id")

	a := openApp()
	defer a.conn.Close()

	exitOnError(ledger.NewVoucherStore(a.conn).Delete(voucherID), "failed to delete voucher")
	fmt.Printf("Deleted voucher %d\n", voucherID)
}
