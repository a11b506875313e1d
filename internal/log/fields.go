package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
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

	FieldSnapshotID = "snapshot_id"
	FieldSnapshot   = "snapshot"
	FieldRecords    = "records"
	FieldClients    = "clients"
	FieldBadDates   = "bad_dates"
	FieldBadAmounts = "bad_amounts"
	FieldDelimiter  = "delimiter"
	FieldEncoding   = "encoding"
	FieldCacheHit   = "cache_hit"
	FieldGroupBy    = "group_by"
	FieldFormat     = "format"
	FieldOwner      = "owner"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentIngest  = "ingest"
	ComponentReport  = "report"
	ComponentCompare = "compare"
	ComponentCache   = "cache"
	ComponentStore   = "store"
	ComponentGoal    = "goal"
)

// Operations defines standard operation names
const (
	OpIngest   = "ingest"
	OpReport   = "report"
	OpCompare  = "compare"
	OpExport   = "export"
	OpList     = "list"
	OpDelete   = "delete"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
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

// WithSnapshot adds snapshot identity and size fields
func (f LogFields) WithSnapshot(id string, records, clients int) LogFields {
	f[FieldSnapshotID] = id
	f[FieldRecords] = records
	f[FieldClients] = clients
	return f
}

// WithWarnings adds coercion warning counters
func (f LogFields) WithWarnings(badDates, badAmounts int) LogFields {
	f[FieldBadDates] = badDates
	f[FieldBadAmounts] = badAmounts
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
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
