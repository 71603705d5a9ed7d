package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldAccountID   = "account_id"
	FieldUsername    = "username"
	FieldProductID   = "product_id"
	FieldCategoryID  = "category_id"
	FieldSaleID      = "sale_id"
	FieldExpenseID   = "expense_id"
	FieldQuantity    = "quantity"
	FieldAmountCents = "amount_cents"
	FieldTotalCents  = "total_cents"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentLedger  = "ledger"
	ComponentCart    = "cart"
	ComponentReport  = "report"
	ComponentUploads = "uploads"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentAuth    = "auth"
)
