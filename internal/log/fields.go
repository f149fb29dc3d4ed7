package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldRoute         = "route"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldLoanID        = "loan_id"
	FieldClientID      = "client_id"
	FieldTransactionID = "transaction_id"
	FieldAmountCents   = "amount_cents"
	FieldStatus        = "status"
	FieldEventType     = "event_type"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentLoan      = "loan"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentServicing = "servicing"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentMetrics   = "metrics"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpCalculate  = "calculate"
	OpSchedule   = "schedule"
	OpTransition = "transition"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpAppend     = "append"
	OpLogin      = "login"
	OpRender     = "render"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeArithmetic    = "arithmetic_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithLoan adds loan identification and amount.
func (f LogFields) WithLoan(id, clientID string, principalCents int64, status string) LogFields {
	f[FieldLoanID] = id
	f[FieldClientID] = clientID
	f[FieldAmountCents] = principalCents
	f[FieldStatus] = status
	return f
}

// WithTransaction adds transaction fields.
func (f LogFields) WithTransaction(id, kind string, amountCents int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldEventType] = kind
	f[FieldAmountCents] = amountCents
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
