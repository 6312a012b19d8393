package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"accounting-reports/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// FilterProposal is one filter the model proposes.
type FilterProposal struct {
	FieldID  string   `json:"field_id" jsonschema_description:"A field id of the chosen data source"`
	Operator string   `json:"operator" jsonschema_description:"One of the operators allowed for the field's type"`
	Value    string   `json:"value" jsonschema_description:"Single operand as a string. For in_range, a period name such as 'last_month'. Empty when values is used."`
	Values   []string `json:"values" jsonschema_description:"Exactly two operands [low, high] for 'between' or a two-date 'in_range'; otherwise an empty list"`
}

// SortProposal is one sort clause the model proposes.
type SortProposal struct {
	FieldID   string `json:"field_id" jsonschema_description:"A field id of the chosen data source"`
	Direction string `json:"direction" jsonschema_description:"'asc' or 'desc'"`
}

// SpecProposal is the model's reading of a report request.
type SpecProposal struct {
	DataSource     string           `json:"data_source" jsonschema_description:"The id of one data source from the catalog"`
	SelectedFields []string         `json:"selected_fields" jsonschema_description:"Field ids to show, in display order"`
	Filters        []FilterProposal `json:"filters" jsonschema_description:"Row filters; all must match"`
	Sorts          []SortProposal   `json:"sorts" jsonschema_description:"Sort clauses, primary first"`
	StartDate      string           `json:"start_date" jsonschema_description:"Report period start in YYYY-MM-DD format, or empty for no period"`
	EndDate        string           `json:"end_date" jsonschema_description:"Report period end in YYYY-MM-DD format, or empty for no period"`
	GroupBy        string           `json:"group_by" jsonschema_description:"Field id to group rows by, or empty"`
	Limit          int              `json:"limit" jsonschema_description:"Maximum number of rows; 0 means no limit"`
	Reasoning      string           `json:"reasoning" jsonschema_description:"Short explanation of how the request maps to this report"`
}

// ClarificationRequest is returned when the request cannot be mapped with confidence.
type ClarificationRequest struct {
	Message string `json:"message" jsonschema_description:"A question asking the user for the missing detail (e.g. 'Do you want open invoices or all invoices?')"`
}

// InterpreterResponse wraps the model output: exactly one of Clarification or
// Proposal is meaningful.
type InterpreterResponse struct {
	IsClarificationRequest bool                  `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if the request cannot be mapped to a single data source with confidence."`
	Clarification          *ClarificationRequest `json:"clarification" jsonschema_description:"Required if is_clarification_request is true."`
	Proposal               *SpecProposal         `json:"proposal" jsonschema_description:"Required if is_clarification_request is false."`
}

// Interpretation is the outcome of InterpretReportRequest.
type Interpretation struct {
	Specification        *core.ReportSpecification
	Reasoning            string
	IsClarification      bool
	ClarificationMessage string
}

// Agent turns natural-language report requests into report specifications.
type Agent struct {
	client *openai.Client
	model  string
}

// NewAgent builds an Agent. An empty model uses GPT-4o.
func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	return &Agent{client: &client, model: model}
}

func (a *Agent) InterpretReportRequest(ctx context.Context, request string, today core.Date, company core.Company) (*Interpretation, error) {
	prompt := fmt.Sprintf(`You are an expert financial reporting analyst.
Your goal is to turn a request for a report into a custom report specification.
You MUST use the provided catalog.
Rules:
1. Use ONLY data source ids and field ids from the catalog below.
2. Only use an operator listed for the field's type.
3. Dates are YYYY-MM-DD. Today is %s.
4. Relative periods for in_range: %s.
5. Numbers and amounts are plain decimal strings (e.g. "1000.00").
6. Ask for clarification instead of guessing the data source.

Company: %s (%s), base currency %s

Catalog:
%s

Request: %s`, today, strings.Join(core.NamedRanges, ", "), company.Name, company.Code, company.BaseCurrency, Catalog(), request)

	schemaJSON, err := json.Marshal(generateSchema(InterpreterResponse{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "report_specification",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A custom report specification or a clarification request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var out InterpreterResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	return out.Interpret()
}

// Interpret converts the model response into an Interpretation.
func (r InterpreterResponse) Interpret() (*Interpretation, error) {
	if r.IsClarificationRequest {
		msg := "Please describe the report in more detail."
		if r.Clarification != nil && r.Clarification.Message != "" {
			msg = r.Clarification.Message
		}
		return &Interpretation{IsClarification: true, ClarificationMessage: msg}, nil
	}
	if r.Proposal == nil {
		return nil, fmt.Errorf("model returned neither a proposal nor a clarification")
	}
	spec, err := r.Proposal.ToSpecification()
	if err != nil {
		return nil, err
	}
	return &Interpretation{Specification: spec, Reasoning: r.Proposal.Reasoning}, nil
}

// ToSpecification maps the proposal onto a ReportSpecification. It does not check
// the proposal against the catalog; that happens when the specification is compiled.
func (p SpecProposal) ToSpecification() (*core.ReportSpecification, error) {
	spec := &core.ReportSpecification{
		DataSource:     strings.TrimSpace(p.DataSource),
		SelectedFields: p.SelectedFields,
		GroupBy:        strings.TrimSpace(p.GroupBy),
	}
	for _, f := range p.Filters {
		fc := core.FilterClause{FieldID: f.FieldID, Operator: core.Operator(f.Operator), Value: core.Operand(f.Value)}
		for _, v := range f.Values {
			fc.Values = append(fc.Values, core.Operand(v))
		}
		spec.Filters = append(spec.Filters, fc)
	}
	for _, s := range p.Sorts {
		spec.Sorts = append(spec.Sorts, core.SortClause{FieldID: s.FieldID, Direction: core.SortDirection(strings.ToLower(s.Direction))})
	}
	if p.StartDate != "" || p.EndDate != "" {
		start, err := core.ParseDate(p.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := core.ParseDate(p.EndDate)
		if err != nil {
			return nil, err
		}
		spec.DateRange = &core.DateRange{Start: start, End: end}
	}
	if p.Limit > 0 {
		limit := p.Limit
		spec.Limit = &limit
	}
	return spec, nil
}

// Catalog renders the data sources, their fields and the operator table for the prompt.
func Catalog() string {
	var b strings.Builder
	for _, ds := range core.Sources() {
		fmt.Fprintf(&b, "- %s (%s)", ds.ID, ds.DisplayName)
		if ds.DateField != "" {
			fmt.Fprintf(&b, ", period field %s", ds.DateField)
		}
		b.WriteString("\n")
		for _, f := range ds.Fields {
			fmt.Fprintf(&b, "    %s: %s [%s]\n", f.ID, f.DisplayName, f.Type)
		}
	}
	b.WriteString("Operators by field type:\n")
	for _, t := range core.FieldTypes {
		ops := core.OperatorsFor(t)
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = string(op)
		}
		fmt.Fprintf(&b, "- %s: %s\n", t, strings.Join(names, ", "))
	}
	return b.String()
}

// ReportSpecificationSchema returns the JSON schema of the custom report request body.
func ReportSpecificationSchema() *jsonschema.Schema {
	return generateSchema(core.ReportSpecification{})
}

func generateSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper:                    mapCoreTypes,
	}
	return reflector.Reflect(v)
}

var (
	dateType          = reflect.TypeOf(core.Date{})
	operandType       = reflect.TypeOf(core.Operand(""))
	operatorType      = reflect.TypeOf(core.Operator(""))
	sortDirectionType = reflect.TypeOf(core.SortDirection(""))
)

func mapCoreTypes(t reflect.Type) *jsonschema.Schema {
	switch t {
	case dateType:
		return &jsonschema.Schema{Type: "string", Format: "date"}
	case operandType:
		return &jsonschema.Schema{Type: "string"}
	case operatorType:
		enum := make([]any, len(core.Operators))
		for i, op := range core.Operators {
			enum[i] = string(op)
		}
		return &jsonschema.Schema{Type: "string", Enum: enum}
	case sortDirectionType:
		return &jsonschema.Schema{Type: "string", Enum: []any{string(core.SortAsc), string(core.SortDesc)}}
	}
	return nil
}
