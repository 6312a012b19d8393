package app

// AgingRequest is the input for GetAPAging and GetARAging. Dates are YYYY-MM-DD;
// an empty AsOf means today.
type AgingRequest struct {
	CompanyCode string
	AsOf        string
	PeriodStart string // optional; bounds the average-payment-days window
}

// StatementRequest is the input for GetCustomerStatement. An empty To means today;
// an empty From means the start of the fiscal year containing To.
type StatementRequest struct {
	CompanyCode string
	CustomerID  string
	From        string
	To          string
}

// DepreciationRequest is the input for GetDepreciationReport.
type DepreciationRequest struct {
	CompanyCode string
	AsOf        string
	Factor      string // optional declining-balance factor, e.g. "1.5"
}

// ValuationRequest is the input for GetInventoryValuation.
type ValuationRequest struct {
	CompanyCode string
	AsOf        string
	Method      string // optional override: fifo, lifo, average or standard
}

// InterpretRequest is the input for InterpretReportRequest.
type InterpretRequest struct {
	CompanyCode string
	Text        string
	Run         bool
}
