// verify-agent sends one sample report request to the live AI interpreter and
// checks the proposal against the report catalog. It needs OPENAI_API_KEY and
// makes a real API call.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"accounting-reports/internal/ai"
	"accounting-reports/internal/config"
	"accounting-reports/internal/core"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	agent := ai.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	ctx := context.Background()

	request := "Show open invoices over 500 dollars, largest balance first"
	if len(os.Args) > 1 {
		request = strings.Join(os.Args[1:], " ")
	}
	company := core.Company{Code: "DEMO", Name: "Demo Trading", BaseCurrency: "USD"}

	today := core.DateOf(time.Now())

	fmt.Printf("INTERPRETING REQUEST: %s\n", request)
	interp, err := agent.InterpretReportRequest(ctx, request, today, company)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if interp.IsClarification {
		fmt.Printf("\n--- CLARIFICATION ---\n%s\n", interp.ClarificationMessage)
		return
	}

	spec := interp.Specification
	fmt.Printf("\n--- SPECIFICATION ---\n")
	fmt.Printf("Reasoning: %s\n", interp.Reasoning)
	fmt.Printf("Source:    %s\n", spec.DataSource)
	fmt.Printf("Fields:    %s\n", strings.Join(spec.SelectedFields, ", "))
	for _, f := range spec.Filters {
		fmt.Printf("- Filter: %s %s %s %v\n", f.FieldID, f.Operator, f.Value, f.Values)
	}
	for _, s := range spec.Sorts {
		fmt.Printf("- Sort:   %s %s\n", s.FieldID, s.Direction)
	}

	if _, err := core.Compile(*spec, core.ComposeOptions{AsOf: today, Calendar: cfg.ReportingConfig().Calendar}); err != nil {
		log.Fatalf("Proposal does not compile: %v", err)
	}
	fmt.Println("\nProposal compiles against the catalog.")
}
