package app

import "accounting-reports/internal/core"

// DataSourceInfo describes one queryable data source.
type DataSourceInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	DateField   string `json:"date_field,omitempty"`
	FieldCount  int    `json:"field_count"`
}

// DataSourceListResult is returned by ListDataSources.
type DataSourceListResult struct {
	Sources []DataSourceInfo `json:"sources"`
}

// FieldListResult is returned by FieldsFor.
type FieldListResult struct {
	DataSource string       `json:"data_source"`
	Fields     []core.Field `json:"fields"`
}

// OperatorListResult is returned by OperatorsFor.
type OperatorListResult struct {
	FieldType core.FieldType  `json:"field_type"`
	Operators []core.Operator `json:"operators"`
}

// InterpretResult is returned by InterpretReportRequest. ValidationError is set
// when the proposed specification does not compile.
type InterpretResult struct {
	Specification        *core.ReportSpecification `json:"specification,omitempty"`
	Reasoning            string                    `json:"reasoning,omitempty"`
	IsClarification      bool                      `json:"is_clarification"`
	ClarificationMessage string                    `json:"clarification_message,omitempty"`
	ValidationError      string                    `json:"validation_error,omitempty"`
	Result               *core.CustomReportResult  `json:"result,omitempty"`
}
