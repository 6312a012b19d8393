package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"accounting-reports/internal/app"
	"accounting-reports/internal/core"
	"accounting-reports/internal/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// ServiceFactory builds the application service for one invocation. dataFile is
// the --data flag: a JSON snapshot to report on instead of the database. The
// returned cleanup func is always non-nil on success.
type ServiceFactory func(ctx context.Context, dataFile string) (app.ApplicationService, func(), error)

// session is what every report command needs once flags are parsed.
type session struct {
	svc     app.ApplicationService
	company *core.Company
	output  string
	out     io.Writer
}

// NewRootCommand returns the reports command tree.
func NewRootCommand(factory ServiceFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "reports",
		Short: "Financial reports over a company's accounting records",
		Long: `reports runs aging schedules, customer statements, depreciation and
inventory valuation reports, and ad-hoc custom reports over one company's
receivables, payables, fixed assets and inventory.

Records are read from PostgreSQL (DATABASE_URL), or from a JSON snapshot
file with --data.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("data", "", "Read records from a JSON snapshot file instead of the database")
	root.PersistentFlags().String("company", "", "Company code (default: COMPANY_CODE, or the only company)")
	root.PersistentFlags().StringP("output", "o", "table", "Output format: table, json or csv")

	root.AddCommand(
		newSourcesCommand(factory),
		newFieldsCommand(factory),
		newSchemaCommand(factory),
		newCustomCommand(factory),
		newAgingCommand(factory, "ap-aging", "Accounts payable aging schedule"),
		newAgingCommand(factory, "ar-aging", "Accounts receivable aging schedule"),
		newStatementCommand(factory),
		newDepreciationCommand(factory),
		newValuationCommand(factory),
		newAskCommand(factory),
		newShellCommand(factory),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context, factory ServiceFactory) error {
	log := logger.WithComponent("cli")

	if err := NewRootCommand(factory).ExecuteContext(ctx); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		return err
	}
	return nil
}

// open builds the service and resolves the company for a report command.
// withCompany is false for catalog commands, which need no company.
func open(cmd *cobra.Command, factory ServiceFactory, withCompany bool) (*session, func(), error) {
	dataFile, _ := cmd.Flags().GetString("data")
	code, _ := cmd.Flags().GetString("company")
	output, _ := cmd.Flags().GetString("output")

	switch output {
	case "table", "json", "csv":
	default:
		return nil, nil, fmt.Errorf("invalid --output %q: want table, json or csv", output)
	}

	svc, cleanup, err := factory(cmd.Context(), dataFile)
	if err != nil {
		return nil, nil, err
	}
	s := &session{svc: svc, output: output, out: cmd.OutOrStdout()}
	if !withCompany {
		return s, cleanup, nil
	}

	if code != "" {
		s.company, err = svc.LoadCompany(cmd.Context(), code)
	} else {
		s.company, err = svc.LoadDefaultCompany(cmd.Context())
	}
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load company: %w", err)
	}
	return s, cleanup, nil
}

// render writes v as indented JSON when --output json, and calls table otherwise.
func (s *session) render(v any, table func(io.Writer)) error {
	switch s.output {
	case "json":
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "csv":
		return fmt.Errorf("csv output is only available for custom and statement")
	}
	table(s.out)
	return nil
}
