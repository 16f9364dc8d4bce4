package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/billing-identity/internal/config"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	"github.com/wekeepgrowing/billing-identity/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
	"github.com/wekeepgrowing/billing-identity/internal/usecase"
	"github.com/wekeepgrowing/billing-identity/pkg/logger"
)

const commandName = "customer-audit"

// auditService is the part of the duplicate auditor the commands drive.
type auditService interface {
	Analyze(ctx context.Context, email string) (*entity.AuditReport, error)
	Delete(ctx context.Context, customerID string) (*entity.DeletionResult, error)
}

// auditorFactory builds the auditor once the command line has been parsed.
// The returned func releases whatever the auditor holds.
type auditorFactory func() (auditService, func(), error)

type options struct {
	json    bool
	timeout time.Duration
}

func newRootCmd(factory auditorFactory, out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   commandName,
		Short: "Audit duplicate Stripe customers",
		Long: `customer-audit lists every Stripe customer sharing an email, recommends which
records to keep, and deletes a record only after re-checking it has no billing history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print machine readable JSON")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall deadline for Stripe calls")

	rootCmd.AddCommand(newAnalyzeCmd(factory, opts), newDeleteCmd(factory, opts))
	return rootCmd
}

func newAnalyzeCmd(factory auditorFactory, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <email>",
		Short: "Report the customers sharing an email with a keep/delete recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auditor, cleanup, err := factory()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(cmd, opts)
			defer cancel()

			report, err := auditor.Analyze(ctx, args[0])
			if err != nil {
				return fmt.Errorf("analyze %s: %w", args[0], err)
			}

			if opts.json {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newDeleteCmd(factory auditorFactory, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <customer-id>",
		Short: "Delete a customer after re-checking it has no billing history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auditor, cleanup, err := factory()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(cmd, opts)
			defer cancel()

			result, err := auditor.Delete(ctx, args[0])
			if unsafe, ok := usecase.IsUnsafeDeletion(err); ok {
				if opts.json {
					_ = writeJSON(cmd.OutOrStdout(), map[string]interface{}{
						"customer_id": unsafe.CustomerID,
						"deleted":     false,
						"facts":       unsafe.Facts,
					})
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Refused: %s still has %s\n", unsafe.CustomerID, describeFacts(unsafe.Facts))
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}

			if opts.json {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", result.CustomerID)
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command, opts *options) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func printReport(out io.Writer, report *entity.AuditReport) {
	fmt.Fprintf(out, "Customers for %s: %d\n", report.Email, report.Summary.Total)
	if report.Summary.Total == 0 {
		return
	}
	if report.Truncated {
		fmt.Fprintf(out, "Warning: listing hit the page limit of %d, more customers may exist\n", report.PageLimit)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CUSTOMER\tCREATED\tNAME\tUSER ID\tCLASS\tSUBS\tPAYMENT METHODS\tINVOICES\tRECOMMENDATION")
	for _, c := range report.Customers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.CustomerID,
			c.Created.UTC().Format("2006-01-02"),
			orDash(c.Name),
			orDash(c.UserID),
			c.Classification,
			yesNo(c.Facts.HasSubscriptions),
			yesNo(c.Facts.HasPaymentMethods),
			yesNo(c.Facts.HasInvoices),
			c.Recommendation)
	}
	_ = w.Flush()

	for _, c := range report.Customers {
		if c.Error != "" {
			fmt.Fprintf(out, "Error inspecting %s: %s\n", c.CustomerID, c.Error)
		}
	}

	fmt.Fprintf(out, "\nKeep: %d  Delete: %d  Errors: %d\n",
		report.Summary.ToKeep, report.Summary.ToDelete, report.Summary.Errors)

	candidates := report.DeletionCandidates()
	if len(candidates) == 0 {
		return
	}
	fmt.Fprintln(out, "\nTo delete the duplicates run:")
	for _, id := range candidates {
		fmt.Fprintf(out, "  %s delete %s\n", commandName, id)
	}
}

func describeFacts(f entity.CustomerFacts) string {
	var reasons []string
	if f.HasSubscriptions {
		reasons = append(reasons, "subscriptions")
	}
	if f.HasPaymentMethods {
		reasons = append(reasons, "payment methods")
	}
	if f.HasInvoices {
		reasons = append(reasons, "invoices")
	}
	return strings.Join(reasons, ", ")
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// newStripeAuditor wires the auditor to the Stripe account from the service configuration.
// Logs go to stderr so stdout stays parseable.
func newStripeAuditor() (auditService, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(cfg.Service.StripeSecretKey) == "" {
		return nil, nil, errors.New("service.stripe_secret_key is required")
	}

	logConfig := cfg.Log
	logConfig.Output = "stderr"
	log, err := logger.NewZapLogger(logConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	provider := stripe.NewStripeProvider(stripe.Config{
		SecretKey:         cfg.Service.StripeSecretKey,
		APIURL:            cfg.Service.StripeAPIURL,
		MaxNetworkRetries: 2,
	}, log)

	auditor := usecase.NewDuplicateAuditor(
		provider.Directory(),
		usecase.AuditorOptions{PageLimit: cfg.Audit.PageLimit, Concurrency: cfg.Audit.Concurrency},
		metrics.NewBillingMetrics(prometheus.NewRegistry()),
		log,
	)

	return auditor, func() { _ = log.Sync() }, nil
}

var _ auditService = (*usecase.DuplicateAuditor)(nil)
