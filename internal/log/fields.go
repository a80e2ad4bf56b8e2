package log

import "finboard/internal/core"

// Field names shared by every component
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldScope      = "scope"
	FieldMonth      = "month"
	FieldItemID     = "item_id"
	FieldItemType   = "item_type"
	FieldTemplateID = "template_id"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldStatus     = "status"
	FieldCount      = "count"
	FieldSkipped    = "skipped"
)

// Component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentReport    = "report"
)

// Operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpToggle     = "toggle"
	OpConfirm    = "confirm"
	OpReconcile  = "reconcile"
	OpMetrics    = "metrics"
	OpInvalidate = "invalidate"
	OpPublish    = "publish"
	OpDecode     = "decode"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields builds structured log attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message; nil errors are ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithScope(scope core.Scope) LogFields {
	f[FieldScope] = scope.Key()
	return f
}

// WithItem adds the identifying fields of a finance item.
func (f LogFields) WithItem(item core.FinanceItem) LogFields {
	f[FieldItemID] = item.ID
	f[FieldItemType] = string(item.Type)
	f[FieldAmount] = core.FormatAmount(item.Amount)
	f[FieldCategory] = item.Category
	f[FieldStatus] = string(item.Status)
	if !item.Date.IsZero() {
		f[FieldMonth] = item.Date.MonthOf().String()
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to slog key/value arguments.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
