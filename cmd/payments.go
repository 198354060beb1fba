package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-billing-bff/app/mapper"
	"github.com/vibast-solutions/ms-go-billing-bff/app/service"
	"github.com/vibast-solutions/ms-go-billing-bff/app/tabstate"
)

const cliTabID = "cli"

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Query the billing backend with the configured service token",
}

var paymentsStatusCmd = &cobra.Command{
	Use:   "status <client_name>",
	Short: "Print the payment status of a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		api := mustCreateBillingAPI(cmd.Context(), cfg)

		status, err := api.GetPaymentStatus(cmd.Context(), args[0]).Unpack()
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var paymentsInvoicesCmd = &cobra.Command{
	Use:   "invoices <client_name>",
	Short: "Print the invoices of a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		api := mustCreateBillingAPI(cmd.Context(), cfg)

		items, err := api.GetInvoices(cmd.Context(), args[0]).Unpack()
		if err != nil {
			return err
		}
		return printJSON(mapper.PaymentRecordsToInvoices(items))
	},
}

var paymentsVerifyCmd = &cobra.Command{
	Use:   "verify <session_id>",
	Short: "Verify a hosted checkout session once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		api := mustCreateBillingAPI(cmd.Context(), cfg)

		reconciler := service.NewReconciler(api, tabstate.NewMemoryStore(time.Hour))
		view, err := reconciler.Reconcile(cmd.Context(), cliTabID, args[0])
		if err != nil {
			return err
		}
		if !view.Succeeded() {
			logrus.WithField("session_id", args[0]).WithField("message", view.Message).Warn("Payment session was not verified")
		}
		return printJSON(mapper.SuccessToResponse(view))
	},
}

func init() {
	rootCmd.AddCommand(paymentsCmd)
	paymentsCmd.AddCommand(paymentsStatusCmd)
	paymentsCmd.AddCommand(paymentsInvoicesCmd)
	paymentsCmd.AddCommand(paymentsVerifyCmd)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
