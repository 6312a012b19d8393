package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"accounting-reports/internal/adapters/repl"
	"accounting-reports/internal/app"
	"accounting-reports/internal/core"
	"accounting-reports/internal/logger"

	"github.com/spf13/cobra"
)

// ── Catalog ───────────────────────────────────────────────────────────────────

func newSourcesCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the data sources custom reports can query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, false)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := s.svc.ListDataSources(cmd.Context())
			if err != nil {
				return err
			}
			return s.render(result, func(w io.Writer) { repl.PrintSources(w, result) })
		},
	}
}

func newFieldsCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "fields <source>",
		Short:   "List a data source's fields and the operators each accepts",
		Example: "  reports fields invoices",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, false)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := s.svc.FieldsFor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.render(result, func(w io.Writer) { repl.PrintFields(w, result) })
		},
	}
}

func newSchemaCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of a custom report specification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, false)
			if err != nil {
				return err
			}
			defer cleanup()

			schema, err := s.svc.ReportSpecificationSchema(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(s.out)
			enc.SetIndent("", "  ")
			return enc.Encode(schema)
		},
	}
}

// ── Custom reports ────────────────────────────────────────────────────────────

func newCustomCommand(factory ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Run a custom report from a JSON specification",
		Long: `Run a custom report from a JSON report specification. The specification
names a data source, the fields to select, and optional filters, sorts, date
range, grouping and row limit. Run "reports schema" for its full shape.`,
		Example: `  # Open invoices, largest balance first
  echo '{"data_source":"invoices","selected_fields":["number","balance_due"],
         "filters":[{"field_id":"status","operator":"equals","value":"open"}],
         "sorts":[{"field_id":"balance_due","direction":"desc"}]}' | reports custom --spec -

  # From a file, as CSV
  reports custom --spec overdue.json -o csv > overdue.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("spec")
			spec, err := readSpec(cmd, path)
			if err != nil {
				return err
			}

			s, cleanup, err := open(cmd, factory, true)
			if err != nil {
				return err
			}
			defer cleanup()

			log := logger.WithComponent("custom")
			log.Debug().
				Str("company", s.company.Code).
				Str("data_source", spec.DataSource).
				Msg("Running custom report")

			result, err := s.svc.RunCustomReport(cmd.Context(), s.company.Code, spec)
			if err != nil {
				return err
			}
			if s.output == "csv" {
				return core.WriteReportCSV(s.out, result)
			}
			return s.render(result, func(w io.Writer) { repl.PrintCustomReport(w, result) })
		},
	}
	cmd.Flags().String("spec", "", `Path to the JSON specification, or "-" for stdin`)
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func readSpec(cmd *cobra.Command, path string) (core.ReportSpecification, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return core.ReportSpecification{}, fmt.Errorf("failed to open specification: %w", err)
		}
		defer f.Close()
		r = f
	}

	var spec core.ReportSpecification
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return core.ReportSpecification{}, fmt.Errorf("invalid specification: %w", err)
	}
	return spec, nil
}

// ── Standard reports ──────────────────────────────────────────────────────────

func newAgingCommand(factory ServiceFactory, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Example: fmt.Sprintf("  reports %s --as-of 2026-06-30", use),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, true)
			if err != nil {
				return err
			}
			defer cleanup()

			asOf, _ := cmd.Flags().GetString("as-of")
			periodStart, _ := cmd.Flags().GetString("period-start")
			req := app.AgingRequest{CompanyCode: s.company.Code, AsOf: asOf, PeriodStart: periodStart}

			if use == "ap-aging" {
				result, err := s.svc.GetAPAging(cmd.Context(), req)
				if err != nil {
					return err
				}
				return s.render(result, func(w io.Writer) { repl.PrintAPAging(w, result) })
			}
			result, err := s.svc.GetARAging(cmd.Context(), req)
			if err != nil {
				return err
			}
			return s.render(result, func(w io.Writer) { repl.PrintARAging(w, result) })
		},
	}
	cmd.Flags().String("as-of", "", "Aging date (format: YYYY-MM-DD, default: today)")
	cmd.Flags().String("period-start", "", "Start of the average-payment-days window (format: YYYY-MM-DD)")
	return cmd
}

func newStatementCommand(factory ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement <customer-id>",
		Short: "Customer statement with running balance",
		Example: `  reports statement C1 --from 2026-01-01 --to 2026-06-30
  reports statement C1 -o csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, true)
			if err != nil {
				return err
			}
			defer cleanup()

			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			stmt, err := s.svc.GetCustomerStatement(cmd.Context(), app.StatementRequest{
				CompanyCode: s.company.Code,
				CustomerID:  args[0],
				From:        from,
				To:          to,
			})
			if err != nil {
				return err
			}
			if s.output == "csv" {
				return core.WriteStatementCSV(s.out, stmt)
			}
			return s.render(stmt, func(w io.Writer) { repl.PrintStatement(w, stmt) })
		},
	}
	cmd.Flags().String("from", "", "Period start (format: YYYY-MM-DD, default: fiscal year start)")
	cmd.Flags().String("to", "", "Period end (format: YYYY-MM-DD, default: today)")
	return cmd
}

func newDepreciationCommand(factory ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "depreciation",
		Short:   "Fixed-asset depreciation and book values",
		Example: "  reports depreciation --as-of 2026-12-31 --factor 1.5",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, true)
			if err != nil {
				return err
			}
			defer cleanup()

			asOf, _ := cmd.Flags().GetString("as-of")
			factor, _ := cmd.Flags().GetString("factor")
			result, err := s.svc.GetDepreciationReport(cmd.Context(), app.DepreciationRequest{
				CompanyCode: s.company.Code,
				AsOf:        asOf,
				Factor:      factor,
			})
			if err != nil {
				return err
			}
			return s.render(result, func(w io.Writer) { repl.PrintDepreciation(w, result) })
		},
	}
	cmd.Flags().String("as-of", "", "Valuation date (format: YYYY-MM-DD, default: today)")
	cmd.Flags().String("factor", "", "Declining-balance factor (default: DECLINING_BALANCE_FACTOR)")
	return cmd
}

func newValuationCommand(factory ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "valuation",
		Short:   "Inventory valuation under FIFO, LIFO, average and standard cost",
		Example: "  reports valuation --method lifo",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, true)
			if err != nil {
				return err
			}
			defer cleanup()

			asOf, _ := cmd.Flags().GetString("as-of")
			method, _ := cmd.Flags().GetString("method")
			result, err := s.svc.GetInventoryValuation(cmd.Context(), app.ValuationRequest{
				CompanyCode: s.company.Code,
				AsOf:        asOf,
				Method:      method,
			})
			if err != nil {
				return err
			}
			return s.render(result, func(w io.Writer) { repl.PrintValuation(w, result) })
		},
	}
	cmd.Flags().String("as-of", "", "Valuation date (format: YYYY-MM-DD, default: today)")
	cmd.Flags().String("method", "", "Override every item's method: fifo, lifo, average or standard")
	return cmd
}

// ── AI ────────────────────────────────────────────────────────────────────────

func newAskCommand(factory ServiceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <request...>",
		Short: "Describe a report in plain language and let the AI build it",
		Long: `Send a plain-language report request to the AI interpreter. The proposed
specification is printed and validated; with --run it is also executed.

Requires OPENAI_API_KEY.`,
		Example: `  reports ask "open invoices over 500 sorted by due date" --run`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, true)
			if err != nil {
				return err
			}
			defer cleanup()

			run, _ := cmd.Flags().GetBool("run")
			result, err := s.svc.InterpretReportRequest(cmd.Context(), app.InterpretRequest{
				CompanyCode: s.company.Code,
				Text:        strings.Join(args, " "),
				Run:         run,
			})
			if err != nil {
				return err
			}
			return s.render(result, func(w io.Writer) { repl.PrintInterpretation(w, result) })
		},
	}
	cmd.Flags().Bool("run", false, "Execute the proposed report")
	return cmd
}

func newShellCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive report shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := open(cmd, factory, true)
			if err != nil {
				return err
			}
			defer cleanup()

			return repl.Run(cmd.Context(), s.svc, s.company, bufio.NewReader(cmd.InOrStdin()), s.out)
		},
	}
}
