package constants

// ParsingStatus is the outcome stored on parsed documents and processing logs.
type ParsingStatus string

// Stable values (store these exact strings in DB).
const (
	ParsingStatusSuccess ParsingStatus = "success"
	ParsingStatusPartial ParsingStatus = "partial" // warnings or missing required fields
	ParsingStatusFailed  ParsingStatus = "failed"
)

// SalesOrderStatus is the lifecycle of a submitted sales order.
type SalesOrderStatus string

const (
	SalesOrderDraft     SalesOrderStatus = "DRAFT"
	SalesOrderSubmitted SalesOrderStatus = "SUBMITTED"
	SalesOrderApproved  SalesOrderStatus = "APPROVED"
	SalesOrderRejected  SalesOrderStatus = "REJECTED"
)

// salesOrderTransitions lists the allowed next states per state.
var salesOrderTransitions = map[SalesOrderStatus][]SalesOrderStatus{
	SalesOrderDraft:     {SalesOrderSubmitted},
	SalesOrderSubmitted: {SalesOrderApproved, SalesOrderRejected},
	SalesOrderRejected:  {SalesOrderDraft},
}

// CanTransition reports whether a sales order may move from -> to.
func CanTransition(from, to SalesOrderStatus) bool {
	for _, next := range salesOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidSalesOrderStatus checks a raw value against the known statuses.
func IsValidSalesOrderStatus(s string) bool {
	switch SalesOrderStatus(s) {
	case SalesOrderDraft, SalesOrderSubmitted, SalesOrderApproved, SalesOrderRejected:
		return true
	}
	return false
}

// Who started a parse run.
const (
	TriggeredByAPI     = "api"
	TriggeredByBatch   = "batch"
	TriggeredByWatcher = "watcher"
)
