package constants

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
	ContentTypeForm = "application/x-www-form-urlencoded"

	ContentTypeHeader = "Content-Type"

	HeaderXRequestID        = "X-Request-ID"
	HeaderXLookoutRequestID = "X-Lookout-Request-ID"
	HeaderAuthorization     = "Authorization"
)
