package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/services"
)

// withLedger opens the ledger for the duration of fn.
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, ledger *services.LedgerService) error) error {
	ctx := cmd.Context()
	ledger, closeAll, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeAll()
	return fn(ctx, ledger)
}

func newMonthCmd() *cobra.Command {
	var year, month int

	cmd := &cobra.Command{
		Use:   "month",
		Short: "Show the occurrences and totals of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, ledger *services.LedgerService) error {
				today := ledger.Today()
				if year == 0 {
					year = today.Year()
				}
				if month == 0 {
					month = int(today.Month())
				}
				if month < 1 || month > 12 {
					return fmt.Errorf("invalid month %d", month)
				}
				printMonth(cmd.OutOrStdout(), ledger.MonthView(year, time.Month(month)), ledger.Currency())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year to show (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "Month to show, 1-12 (default current)")
	return cmd
}

func printMonth(out io.Writer, view core.MonthView, currency core.Currency) {
	fmt.Fprintf(out, "%s %d (%s)\n\n", view.Month, view.Year, currency)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTATUS\tTYPE\tAMOUNT\tDESCRIPTION\tTEMPLATE")
	for _, o := range view.Occurrences {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.Date, o.Status, o.Kind, o.Amount, o.Description, o.ID)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nIncome:   %s\nExpenses: %s\nSavings:  %s\n",
		view.Totals.Income, view.Totals.Expenses, view.Totals.Savings)
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List transaction templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, ledger *services.LedgerService) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tAMOUNT\tRECURRENCE\tANCHOR\tSETTLED\tDESCRIPTION")
				for _, t := range ledger.Templates() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						t.ID, t.Kind, t.Amount, t.Recurrence, t.AnchorDate, len(t.ConfirmedDates), t.Description)
				}
				return tw.Flush()
			})
		},
	}
}

// templateFlags are shared by add and edit.
type templateFlags struct {
	kind        string
	amount      string
	description string
	date        string
	recurrence  string
}

func (f *templateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "type", "expense", "income or expense")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Positive amount, e.g. 12.50")
	cmd.Flags().StringVar(&f.description, "description", "", "Description, at most 200 characters")
	cmd.Flags().StringVar(&f.date, "date", "", "Anchor date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.recurrence, "recurrence", "none", "none, daily, weekly or monthly")
}

// apply overwrites the fields of t whose flag was set. When all is true
// every field is applied.
func (f *templateFlags) apply(cmd *cobra.Command, t *core.TransactionTemplate, all bool) error {
	set := func(name string) bool { return all || cmd.Flags().Changed(name) }

	var errs []error
	if set("type") {
		k, err := core.ParseKind(f.kind)
		errs = append(errs, err)
		t.Kind = k
	}
	if set("amount") {
		m, err := core.ParseMoney(f.amount)
		errs = append(errs, err)
		t.Amount = m
	}
	if set("description") {
		t.Description = strings.TrimSpace(f.description)
	}
	if set("date") && f.date != "" {
		d, err := core.ParseDate(f.date)
		errs = append(errs, err)
		t.AnchorDate = d
	}
	if set("recurrence") {
		r, err := core.ParseRecurrence(f.recurrence)
		errs = append(errs, err)
		t.Recurrence = r
	}
	return errors.Join(errs...)
}

func newAddCmd() *cobra.Command {
	var flags templateFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a transaction template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, ledger *services.LedgerService) error {
				t := core.TransactionTemplate{AnchorDate: ledger.Today()}
				if err := flags.apply(cmd, &t, true); err != nil {
					return err
				}
				created, err := ledger.CreateTemplate(ctx, t)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newEditCmd() *cobra.Command {
	var flags templateFlags

	cmd := &cobra.Command{
		Use:   "edit <template-id>",
		Short: "Change the fields of a template, keeping its settled dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, ledger *services.LedgerService) error {
				t, err := ledger.Template(args[0])
				if err != nil {
					return err
				}
				if err := flags.apply(cmd, &t, false); err != nil {
					return err
				}
				updated, err := ledger.UpdateTemplate(ctx, t)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s %q\n",
					updated.ID, updated.Kind, updated.Amount, updated.Recurrence, updated.Description)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newDecisionCmd(decision core.Decision) *cobra.Command {
	short := "Confirm a pending occurrence"
	if decision == core.Skip {
		short = "Skip a pending occurrence"
	}

	return &cobra.Command{
		Use:   string(decision) + " <template-id> [date]",
		Short: short,
		Long:  short + ". The date defaults to today.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, ledger *services.LedgerService) error {
				date := ledger.Today()
				if len(args) == 2 {
					d, err := core.ParseDate(args[1])
					if err != nil {
						return err
					}
					date = d
				}
				key := core.OccurrenceKey{TemplateID: args[0], Date: date}
				if err := ledger.RecordDecision(ctx, key, decision); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", decision, key)
				return nil
			})
		},
	}
}

func newDueCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show the occurrence waiting for confirmation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, ledger *services.LedgerService) error {
				out := cmd.OutOrStdout()
				if all {
					for _, o := range ledger.Pending() {
						fmt.Fprintf(out, "%s  %s  %s  %s\n", o.Key(), o.Kind, o.Amount, o.Description)
					}
					return nil
				}
				occ, ok := ledger.Due(ctx)
				if !ok {
					fmt.Fprintln(out, "Nothing is due.")
					return nil
				}
				fmt.Fprintln(out, core.NoticeFor(occ).Message())
				fmt.Fprintf(out, "  %s  %s  %s\n", occ.Key(), occ.Kind, occ.Amount)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every pending occurrence of the current month")
	return cmd
}

func newCurrencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "currency [code]",
		Short: "Show or set the display currency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(ctx context.Context, ledger *services.LedgerService) error {
				if len(args) == 1 {
					if err := ledger.SetCurrency(ctx, core.Currency(args[0])); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), ledger.Currency())
				return nil
			})
		},
	}
}

func newNoticesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notices",
		Short: "Print due notices published by the server",
		Long: `notices consumes the due notice queue and prints each notice as it
arrives. Requires AMQP_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			err = client.ConsumeDueNotices(cmd.Context(), func(m *amqp.DueNoticeMessage) error {
				_, err := fmt.Fprintf(out, "%s  %s  %s %s  %s\n",
					m.Timestamp.Format(time.RFC3339), m.DueDate, m.Kind, m.Amount.StringFixed(2), m.Message)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
