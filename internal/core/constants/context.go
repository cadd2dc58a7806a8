package constants

const (
	// ContextRequestIdKey tags every query-layer log line for the request.
	ContextRequestIdKey = "request_id"
)
