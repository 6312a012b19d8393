package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"accounting-reports/internal/app"
	"accounting-reports/internal/core"
)

var errExit = errors.New("exit")

// Run starts the interactive report shell.
// It reads commands from reader, dispatches slash commands deterministically,
// and routes natural language input through the AI report interpreter.
func Run(ctx context.Context, svc app.ApplicationService, company *core.Company, reader *bufio.Reader, w io.Writer) error {
	fmt.Fprintln(w, "Financial Reports")
	fmt.Fprintf(w, "Company: %s — %s (%s)\n", company.Code, company.Name, company.BaseCurrency)
	fmt.Fprintln(w, "Describe the report you need, or use /help for commands.")
	fmt.Fprintln(w, strings.Repeat("-", 70))

	sh := &shell{ctx: ctx, svc: svc, company: company, w: w}

	for {
		fmt.Fprint(w, "\n> ")
		input, readErr := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if readErr != nil {
				return nil
			}
			continue
		}

		// Slash prefix → deterministic command dispatcher, no AI invoked.
		if strings.HasPrefix(input, "/") {
			if err := sh.dispatch(input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(w, "Goodbye!")
					return nil
				}
				fmt.Fprintf(w, "Error: %v\n", err)
			}
			continue
		}

		// No slash prefix → route to AI interpreter.
		if err := sh.ask(reader, input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(w, "Goodbye!")
				return nil
			}
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		if readErr != nil {
			return nil
		}
	}
}

type shell struct {
	ctx     context.Context
	svc     app.ApplicationService
	company *core.Company
	w       io.Writer
}

// arg returns args[i], or "" when absent.
func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func (s *shell) dispatch(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]
	code := s.company.Code

	switch cmd {
	case "sources":
		result, err := s.svc.ListDataSources(s.ctx)
		if err != nil {
			return err
		}
		PrintSources(s.w, result)

	case "fields":
		if len(args) < 1 {
			fmt.Fprintln(s.w, "Usage: /fields <data-source>")
			return nil
		}
		result, err := s.svc.FieldsFor(s.ctx, args[0])
		if err != nil {
			return err
		}
		PrintFields(s.w, result)

	case "ap", "ap-aging":
		result, err := s.svc.GetAPAging(s.ctx, app.AgingRequest{CompanyCode: code, AsOf: arg(args, 0), PeriodStart: arg(args, 1)})
		if err != nil {
			return err
		}
		PrintAPAging(s.w, result)

	case "ar", "ar-aging":
		result, err := s.svc.GetARAging(s.ctx, app.AgingRequest{CompanyCode: code, AsOf: arg(args, 0), PeriodStart: arg(args, 1)})
		if err != nil {
			return err
		}
		PrintARAging(s.w, result)

	case "statement", "stmt":
		if len(args) < 1 {
			fmt.Fprintln(s.w, "Usage: /statement <customer-id> [from] [to]")
			return nil
		}
		result, err := s.svc.GetCustomerStatement(s.ctx, app.StatementRequest{
			CompanyCode: code,
			CustomerID:  args[0],
			From:        arg(args, 1),
			To:          arg(args, 2),
		})
		if err != nil {
			return err
		}
		PrintStatement(s.w, result)

	case "depreciation", "dep":
		result, err := s.svc.GetDepreciationReport(s.ctx, app.DepreciationRequest{CompanyCode: code, AsOf: arg(args, 0), Factor: arg(args, 1)})
		if err != nil {
			return err
		}
		PrintDepreciation(s.w, result)

	case "valuation", "val":
		result, err := s.svc.GetInventoryValuation(s.ctx, app.ValuationRequest{CompanyCode: code, AsOf: arg(args, 0), Method: arg(args, 1)})
		if err != nil {
			return err
		}
		PrintValuation(s.w, result)

	case "help", "h":
		printHelp(s.w)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(s.w, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

// ask sends text to the interpreter, following up on clarification requests for
// at most three rounds.
func (s *shell) ask(reader *bufio.Reader, text string) error {
	fmt.Fprintln(s.w, "[AI] Processing...")
	accumulated := text

	for round := 1; round <= 3; round++ {
		result, err := s.svc.InterpretReportRequest(s.ctx, app.InterpretRequest{
			CompanyCode: s.company.Code,
			Text:        accumulated,
			Run:         true,
		})
		if err != nil {
			return err
		}

		if !result.IsClarification {
			PrintInterpretation(s.w, result)
			return nil
		}

		fmt.Fprintf(s.w, "\n[AI]: %s\n", result.ClarificationMessage)
		fmt.Fprint(s.w, "> ")
		followUp, _ := reader.ReadString('\n')
		followUp = strings.TrimSpace(followUp)

		// A slash command during clarification cancels the AI flow and runs instead.
		if strings.HasPrefix(followUp, "/") {
			fmt.Fprintln(s.w, "(AI session cancelled)")
			return s.dispatch(followUp)
		}
		if followUp == "" || strings.ToLower(followUp) == "cancel" {
			fmt.Fprintln(s.w, "Cancelled.")
			return nil
		}
		accumulated = fmt.Sprintf("Original request: %s\nClarification requested: %s\nUser response: %s",
			accumulated, result.ClarificationMessage, followUp)
		fmt.Fprintln(s.w, "[AI] Thinking...")
	}
	fmt.Fprintln(s.w, "Could not produce a report. Try a slash command instead — type /help.")
	return nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `
Commands:
  /sources                                   List data sources
  /fields <source>                           List a source's fields and operators
  /ap-aging [as-of] [period-start]           Accounts payable aging
  /ar-aging [as-of] [period-start]           Accounts receivable aging
  /statement <customer> [from] [to]          Customer statement
  /depreciation [as-of] [factor]             Fixed-asset depreciation
  /valuation [as-of] [method]                Inventory valuation (fifo|lifo|average|standard)
  /help                                      Show this help
  /exit                                      Leave the shell

Dates are YYYY-MM-DD. Anything not starting with / is sent to the AI
report interpreter, e.g. "open invoices over 500 sorted by due date".`)
}
